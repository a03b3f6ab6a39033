package token

type Type int

const (
	EOF Type = iota
	Comment
	Ident
	Number
	FloatNumber
	String
	// Keywords
	Check
	Otherwise
	Keep
	Repeat
	Create
	Say
	Ask
	Give
	Is
	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	Semi
	Comma
	// Operators
	Plus
	Minus
	Star
	Slash
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
	AndAnd
	OrOr
	Not
)

var KeywordMap = map[string]Type{
	"check":     Check,
	"otherwise": Otherwise,
	"keep":      Keep,
	"repeat":    Repeat,
	"create":    Create,
	"say":       Say,
	"ask":       Ask,
	"give":      Give,
	"is":        Is,
}

var symbols = map[Type]string{
	EOF: "EOF", LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", Semi: ";", Comma: ",",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", EqEq: "==", Neq: "!=",
	Lt: "<", Gt: ">", Lte: "<=", Gte: ">=", AndAnd: "&&", OrOr: "||", Not: "!",
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range symbols {
		TypeStrings[typ] = str
	}
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// Text is the token as it should appear in a diagnostic.
func (t Token) Text() string {
	if t.Value != "" {
		return t.Value
	}
	return TypeStrings[t.Type]
}
