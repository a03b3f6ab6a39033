package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// value is one of: nil (None), bool, int64, float64, string, *function, builtin.
type value interface{}

type function struct {
	def *defStmt
}

type builtin struct {
	name string
	call func(in *interp, args []value) (value, error)
}

func typeName(v value) string {
	switch v.(type) {
	case nil: return "NoneType"
	case bool: return "bool"
	case int64: return "int"
	case float64: return "float"
	case string: return "str"
	case *function: return "function"
	case *builtin: return "builtin_function_or_method"
	default: return fmt.Sprintf("%T", v)
	}
}

// formatFloat renders f the way repr does: shortest round-trip digits,
// positional between 1e-4 and 1e16, always with a fractional part or exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1): return "inf"
	case math.IsInf(f, -1): return "-inf"
	case math.IsNaN(f): return "nan"
	}
	if a := math.Abs(f); a != 0 && (a < 1e-4 || a >= 1e16) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		return s
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// str is the str() conversion.
func str(v value) string {
	switch v := v.(type) {
	case nil: return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int64: return strconv.FormatInt(v, 10)
	case float64: return formatFloat(v)
	case string: return v
	case *function: return "<function " + v.def.name + ">"
	case *builtin: return "<built-in function " + v.name + ">"
	}
	return fmt.Sprint(v)
}

func truthy(v value) bool {
	switch v := v.(type) {
	case nil: return false
	case bool: return v
	case int64: return v != 0
	case float64: return v != 0
	case string: return v != ""
	}
	return true
}

// number widens bools and ints for arithmetic. ok is false for non-numbers.
func number(v value) (i int64, f float64, isFloat, ok bool) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case int64: return v, float64(v), false, true
	case float64: return 0, v, true, true
	}
	return 0, 0, false, false
}
