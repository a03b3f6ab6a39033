package lexer

import (
	"strings"
	"unicode"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Tokenize scans the whole source, returning every token up to and including EOF.
func Tokenize(source []rune, fileIndex int, cfg *config.Config) ([]token.Token, error) {
	l := NewLexer(source, fileIndex, cfg)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
		}

		if l.peek() == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatComments) {
			l.lineComment()
			continue
		}

		ch := l.peek()
		if unicode.IsLetter(ch) || ch == '_' {
			return l.identifierOrKeyword(startPos, startCol, startLine), nil
		}
		if isDigit(ch) {
			return l.numberLiteral(startPos, startCol, startLine), nil
		}

		l.advance()
		switch ch {
		case '(': return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
		case ')': return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
		case '{': return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
		case '}': return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
		case ';': return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
		case ',': return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
		case '+': return l.makeToken(token.Plus, "", startPos, startCol, startLine), nil
		case '-': return l.makeToken(token.Minus, "", startPos, startCol, startLine), nil
		case '*': return l.makeToken(token.Star, "", startPos, startCol, startLine), nil
		case '/': return l.makeToken(token.Slash, "", startPos, startCol, startLine), nil
		case '!': return l.matchThen('=', token.Neq, token.Not, startPos, startCol, startLine), nil
		case '<': return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
		case '>': return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
		case '"': return l.stringLiteral(startPos, startCol, startLine)
		case '=':
			if l.match('=') {
				return l.makeToken(token.EqEq, "", startPos, startCol, startLine), nil
			}
		case '&':
			if l.match('&') {
				return l.makeToken(token.AndAnd, "", startPos, startCol, startLine), nil
			}
		case '|':
			if l.match('|') {
				return l.makeToken(token.OrOr, "", startPos, startCol, startLine), nil
			}
		}

		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.SyntaxError, tok, "Illegal character '%c'", ch)
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected rune, then, otherwise token.Type, startPos, startCol, startLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(then, "", startPos, startCol, startLine)
	}
	return l.makeToken(otherwise, "", startPos, startCol, startLine)
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		default:
			return
		}
	}
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		return l.makeToken(tokType, "", startPos, startCol, startLine)
	}
	return l.makeToken(token.Ident, value, startPos, startCol, startLine)
}

// numberLiteral scans `\d+` or `\d+\.\d+`. A trailing dot without digits is not consumed.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) token.Token {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
		return l.makeToken(token.FloatNumber, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
	}
	return l.makeToken(token.Number, string(l.source[startPos:l.pos]), startPos, startCol, startLine)
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb strings.Builder
	for !l.isAtEnd() && l.peek() != '"' && l.peek() != '\n' {
		ch := l.advance()
		if ch != '\\' {
			sb.WriteRune(ch)
			continue
		}
		if l.isAtEnd() || l.peek() == '\n' {
			break
		}
		esc := l.advance()
		switch esc {
		case 'n': sb.WriteRune('\n')
		case 't': sb.WriteRune('\t')
		case 'r': sb.WriteRune('\r')
		case '0': sb.WriteRune(0)
		case '\\', '"', '\'': sb.WriteRune(esc)
		default:
			sb.WriteRune('\\')
			sb.WriteRune(esc)
		}
	}
	if !l.match('"') {
		tok := l.makeToken(token.String, "", startPos, startCol, startLine)
		return tok, util.Errorf(util.SyntaxError, tok, "Unterminated string literal")
	}
	return l.makeToken(token.String, sb.String(), startPos, startCol, startLine), nil
}
