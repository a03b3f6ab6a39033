package sandbox

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokType int

const (
	tEOF tokType = iota
	tNewline
	tIndent
	tDedent
	tName
	tInt
	tFloat
	tString

	tDef
	tReturn
	tIf
	tElif
	tElse
	tWhile
	tBreak
	tContinue
	tPass
	tTrue
	tFalse
	tNone
	tAnd
	tOr
	tNot

	tPlus
	tMinus
	tStar
	tSlash
	tEq
	tNe
	tLt
	tLe
	tGt
	tGe
	tAssign
	tLParen
	tRParen
	tComma
	tColon
)

var keywords = map[string]tokType{
	"def": tDef, "return": tReturn, "if": tIf, "elif": tElif, "else": tElse,
	"while": tWhile, "break": tBreak, "continue": tContinue, "pass": tPass,
	"True": tTrue, "False": tFalse, "None": tNone,
	"and": tAnd, "or": tOr, "not": tNot,
}

var twoCharOps = map[string]tokType{"==": tEq, "!=": tNe, "<=": tLe, ">=": tGe}

var oneCharOps = map[rune]tokType{
	'+': tPlus, '-': tMinus, '*': tStar, '/': tSlash, '<': tLt, '>': tGt,
	'=': tAssign, '(': tLParen, ')': tRParen, ',': tComma, ':': tColon,
}

type tok struct {
	typ  tokType
	text string
	line int
}

// lexer turns a script into tokens, synthesizing INDENT and DEDENT from
// leading whitespace the way the language does. Tabs count as 8 columns.
type lexer struct {
	lines   []string
	indents []int
	toks    []tok
}

func tokenize(src string) ([]tok, error) {
	l := &lexer{lines: strings.Split(src, "\n"), indents: []int{0}}
	for i, line := range l.lines {
		if err := l.line(i+1, line); err != nil {
			return nil, err
		}
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.toks = append(l.toks, tok{typ: tDedent, line: len(l.lines)})
	}
	l.toks = append(l.toks, tok{typ: tEOF, line: len(l.lines)})
	return l.toks, nil
}

func syntaxErr(line int, format string, args ...interface{}) error {
	return &Error{Kind: "SyntaxError", Msg: fmt.Sprintf(format, args...) + fmt.Sprintf(" (line %d)", line)}
}

func (l *lexer) line(n int, text string) error {
	text = strings.TrimRight(text, "\r")
	width, pos := 0, 0
indent:
	for ; pos < len(text); pos++ {
		switch text[pos] {
		case ' ': width++
		case '\t': width = (width/8 + 1) * 8
		default: break indent
		}
	}
	rest := text[pos:]
	if rest == "" || rest[0] == '#' {
		return nil
	}

	current := l.indents[len(l.indents)-1]
	switch {
	case width > current:
		l.indents = append(l.indents, width)
		l.toks = append(l.toks, tok{typ: tIndent, line: n})
	case width < current:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.toks = append(l.toks, tok{typ: tDedent, line: n})
		}
		if l.indents[len(l.indents)-1] != width {
			return &Error{Kind: "IndentationError", Msg: fmt.Sprintf("unindent does not match any outer indentation level (line %d)", n)}
		}
	}

	if err := l.scan(n, []rune(rest)); err != nil {
		return err
	}
	l.toks = append(l.toks, tok{typ: tNewline, line: n})
	return nil
}

func (l *lexer) scan(n int, src []rune) error {
	emit := func(t tokType, text string) { l.toks = append(l.toks, tok{typ: t, text: text, line: n}) }
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			return nil
		case unicode.IsDigit(c):
			start := i
			for i < len(src) && unicode.IsDigit(src[i]) {
				i++
			}
			typ := tInt
			if i < len(src) && src[i] == '.' {
				typ = tFloat
				for i++; i < len(src) && unicode.IsDigit(src[i]); i++ {
				}
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && unicode.IsDigit(src[j]) {
					typ = tFloat
					for i = j; i < len(src) && unicode.IsDigit(src[i]); i++ {
					}
				}
			}
			emit(typ, string(src[start:i]))
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(src) && (unicode.IsLetter(src[i]) || unicode.IsDigit(src[i]) || src[i] == '_') {
				i++
			}
			word := string(src[start:i])
			if kw, ok := keywords[word]; ok {
				emit(kw, word)
			} else {
				emit(tName, word)
			}
		case c == '"' || c == '\'':
			s, next, err := scanString(src, i)
			if err != nil {
				return syntaxErr(n, "%s", err.Error())
			}
			emit(tString, s)
			i = next
		default:
			if i+1 < len(src) {
				if t, ok := twoCharOps[string(src[i:i+2])]; ok {
					emit(t, string(src[i:i+2]))
					i += 2
					continue
				}
			}
			t, ok := oneCharOps[c]
			if !ok {
				return syntaxErr(n, "invalid character '%c'", c)
			}
			emit(t, string(c))
			i++
		}
	}
	return nil
}

// scanString reads a quoted literal starting at src[start] and returns its
// value and the index just past the closing quote.
func scanString(src []rune, start int) (string, int, error) {
	quote := src[start]
	i := start + 1
	for ; i < len(src) && src[i] != quote; i++ {
		if src[i] == '\\' {
			i++
		}
	}
	if i >= len(src) {
		return "", 0, fmt.Errorf("unterminated string literal")
	}
	var body strings.Builder
	for j := start + 1; j < i; j++ {
		switch {
		case src[j] == '\\' && src[j+1] == '\'':
			body.WriteRune('\'')
			j++
		case src[j] == '\\':
			body.WriteRune(src[j])
			body.WriteRune(src[j+1])
			j++
		case src[j] == '"':
			body.WriteString(`\"`)
		default:
			body.WriteRune(src[j])
		}
	}
	s, err := strconv.Unquote(`"` + body.String() + `"`)
	if err != nil {
		return "", 0, fmt.Errorf("invalid string literal")
	}
	return s, i + 1, nil
}
