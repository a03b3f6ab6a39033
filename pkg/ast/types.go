package ast

// Type is the scalar classification computed by the type checker
type Type int

const (
	TypeUnknown Type = iota
	TypeInt
	TypeFloat
	TypeString
	TypeBool
	TypeVoid
)

func (t Type) String() string {
	switch t {
	case TypeInt: return "int"
	case TypeFloat: return "float"
	case TypeString: return "string"
	case TypeBool: return "bool"
	case TypeVoid: return "void"
	default: return "unknown"
	}
}

// IsNumeric reports whether t is int or float
func (t Type) IsNumeric() bool { return t == TypeInt || t == TypeFloat }
