package parser

import (
	"strconv"

	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// bailout carries the first syntax error up to Parse
type bailout struct{ err error }

// NewParser creates and initializes a new Parser from a token stream ending in EOF
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0]}
}

// Parse builds the program tree. It stops at the first syntax error.
func (p *Parser) Parse() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	tok := p.current
	var stmts []ast.Stmt
	for !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	return ast.NewProgram(tok, stmts), nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, what string) token.Token {
	if p.check(tokType) {
		p.advance()
		return p.previous
	}
	p.syntaxError(what)
	return token.Token{}
}

func (p *Parser) syntaxError(what string) {
	if p.current.Type == token.EOF {
		panic(bailout{util.Errorf(util.SyntaxError, p.current, "Syntax error at EOF: %s", what)})
	}
	panic(bailout{util.Errorf(util.SyntaxError, p.current, "Syntax error at '%s': %s", p.current.Text(), what)})
}

// Expression Parsing
const precNot = 3

func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash: return 6
	case token.Plus, token.Minus: return 5
	case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte: return 4
	case token.AndAnd: return 2
	case token.OrOr: return 1
	default: return -1
	}
}

func (p *Parser) parseExpr() ast.Expr { return p.parseBinaryExpr(1) }

func (p *Parser) parseBinaryExpr(minPrec int) ast.Expr {
	left := p.parseUnaryExpr()
	for {
		op := p.current
		prec := getBinaryOpPrecedence(op.Type)
		if prec < minPrec {
			return left
		}
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		if op.Type == token.AndAnd || op.Type == token.OrOr {
			left = ast.NewLogicalOp(op, op.Type, left, right)
		} else {
			left = ast.NewBinaryOp(op, op.Type, left, right)
		}
	}
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	if tok := p.current; p.match(token.Not) {
		return ast.NewNot(tok, p.parseBinaryExpr(precNot+1))
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() ast.Expr {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			panic(bailout{util.Errorf(util.SyntaxError, tok, "Number '%s' is too big", tok.Value)})
		}
		return ast.NewNumber(tok, val)
	case p.match(token.FloatNumber):
		val, _ := strconv.ParseFloat(tok.Value, 64)
		return ast.NewFloat(tok, val, tok.Value)
	case p.match(token.String):
		return ast.NewString(tok, tok.Value)
	case p.match(token.Ident):
		if p.match(token.LParen) {
			return ast.NewCall(tok, tok.Value, p.parseArgs())
		}
		return ast.NewIdent(tok, tok.Value)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "expected ')' after expression")
		return expr
	}
	p.syntaxError("expected an expression")
	return nil
}

func (p *Parser) parseArgs() []ast.Expr {
	var args []ast.Expr
	if !p.check(token.RParen) {
		for {
			args = append(args, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "expected ')' after arguments")
	return args
}

// Statement Parsing
func (p *Parser) parseBlock() []ast.Stmt {
	p.expect(token.LBrace, "expected '{'")
	stmts := []ast.Stmt{}
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "expected '}'")
	return stmts
}

func (p *Parser) parseCondition(keyword string) ast.Expr {
	p.expect(token.LParen, "expected '(' after '"+keyword+"'")
	cond := p.parseExpr()
	p.expect(token.RParen, "expected ')' after condition")
	return cond
}

func (p *Parser) parseStmt() ast.Stmt {
	tok := p.current
	switch {
	case p.check(token.Ident) && p.peek().Type == token.Is:
		p.advance()
		p.advance()
		if p.match(token.Ask) {
			p.expect(token.LParen, "expected '(' after 'ask'")
			var prompt ast.Expr
			if !p.check(token.RParen) {
				prompt = p.parseExpr()
			}
			p.expect(token.RParen, "expected ')' after prompt")
			p.expect(token.Semi, "expected ';'")
			return ast.NewInput(tok, tok.Value, prompt)
		}
		value := p.parseExpr()
		p.expect(token.Semi, "expected ';'")
		return ast.NewAssign(tok, tok.Value, value)

	case p.match(token.Say):
		p.expect(token.LParen, "expected '(' after 'say'")
		x := p.parseExpr()
		p.expect(token.RParen, "expected ')'")
		p.expect(token.Semi, "expected ';'")
		return ast.NewPrint(tok, x)

	case p.match(token.Check):
		cond := p.parseCondition("check")
		then := p.parseBlock()
		if p.match(token.Otherwise) {
			return ast.NewIf(tok, cond, then, p.parseBlock(), true)
		}
		return ast.NewIf(tok, cond, then, nil, false)

	case p.match(token.Keep):
		cond := p.parseCondition("keep")
		return ast.NewWhile(tok, cond, p.parseBlock())

	case p.match(token.Repeat):
		count := p.parseExpr()
		return ast.NewRepeat(tok, count, p.parseBlock())

	case p.match(token.Create):
		name := p.expect(token.Ident, "expected a function name after 'create'")
		p.expect(token.LParen, "expected '(' after function name")
		var params []string
		if !p.check(token.RParen) {
			for {
				params = append(params, p.expect(token.Ident, "expected a parameter name").Value)
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.expect(token.RParen, "expected ')' after parameters")
		return ast.NewFuncDecl(name, name.Value, params, p.parseBlock())

	case p.match(token.Give):
		x := p.parseExpr()
		p.expect(token.Semi, "expected ';'")
		return ast.NewReturn(tok, x)
	}

	x := p.parseExpr()
	p.expect(token.Semi, "expected ';'")
	return ast.NewExprStmt(tok, x)
}
