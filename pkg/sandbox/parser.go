package sandbox

import (
	"strconv"
)

type node interface{ line() int }

type pos struct{ ln int }

func (p pos) line() int { return p.ln }

type (
	assignStmt struct {
		pos
		name string
		x    node
	}
	exprStmt struct {
		pos
		x node
	}
	ifStmt struct {
		pos
		cond node
		then []node
		els  []node
	}
	whileStmt struct {
		pos
		cond node
		body []node
	}
	defStmt struct {
		pos
		name   string
		params []string
		body   []node
		locals map[string]bool
	}
	returnStmt struct {
		pos
		x node
	}
	passStmt     struct{ pos }
	breakStmt    struct{ pos }
	continueStmt struct{ pos }

	literal struct {
		pos
		v value
	}
	nameExpr struct {
		pos
		name string
	}
	binaryExpr struct {
		pos
		op   tokType
		l, r node
	}
	// compareExpr is a possibly chained comparison: a < b <= c.
	compareExpr struct {
		pos
		ops      []tokType
		operands []node
	}
	boolExpr struct {
		pos
		op   tokType
		l, r node
	}
	notExpr struct {
		pos
		x node
	}
	negExpr struct {
		pos
		x node
	}
	callExpr struct {
		pos
		fn   node
		args []node
	}
)

type parser struct {
	toks  []tok
	pos   int
	loops int
	funcs int
}

func parse(src string) (stmts []node, err error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			stmts, err = nil, e
		}
	}()
	for p.cur().typ == tNewline {
		p.pos++
	}
	for p.cur().typ != tEOF {
		stmts = append(stmts, p.statement())
	}
	return stmts, nil
}

func (p *parser) cur() tok { return p.toks[p.pos] }

func (p *parser) next() tok {
	t := p.toks[p.pos]
	if t.typ != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(t tokType) bool {
	if p.cur().typ == t {
		p.pos++
		return true
	}
	return false
}

func (p *parser) fail(format string, args ...interface{}) {
	panic(syntaxErr(p.cur().line, format, args...))
}

func (p *parser) expect(t tokType, what string) tok {
	if p.cur().typ != t {
		p.fail("expected %s", what)
	}
	return p.next()
}

func (p *parser) block() []node {
	p.expect(tColon, "':'")
	p.expect(tNewline, "a newline")
	p.expect(tIndent, "an indented block")
	var body []node
	for p.cur().typ != tDedent && p.cur().typ != tEOF {
		body = append(body, p.statement())
	}
	p.accept(tDedent)
	return body
}

func (p *parser) statement() node {
	t := p.cur()
	at := pos{t.line}
	switch t.typ {
	case tIf:
		p.next()
		return p.ifTail(at)
	case tWhile:
		p.next()
		cond := p.expr()
		p.loops++
		body := p.block()
		p.loops--
		return &whileStmt{at, cond, body}
	case tDef:
		p.next()
		name := p.expect(tName, "a function name").text
		p.expect(tLParen, "'('")
		var params []string
		for p.cur().typ != tRParen {
			params = append(params, p.expect(tName, "a parameter name").text)
			if !p.accept(tComma) {
				break
			}
		}
		p.expect(tRParen, "')'")
		loops := p.loops
		p.loops = 0
		p.funcs++
		body := p.block()
		p.funcs--
		p.loops = loops
		d := &defStmt{pos: at, name: name, params: params, body: body, locals: make(map[string]bool)}
		for _, prm := range params {
			d.locals[prm] = true
		}
		collectAssigned(body, d.locals)
		return d
	}

	var s node
	switch t.typ {
	case tReturn:
		p.next()
		if p.funcs == 0 {
			panic(syntaxErr(t.line, "'return' outside function"))
		}
		var x node
		if p.cur().typ != tNewline {
			x = p.expr()
		}
		s = &returnStmt{at, x}
	case tPass:
		p.next()
		s = &passStmt{at}
	case tBreak, tContinue:
		p.next()
		if p.loops == 0 {
			panic(syntaxErr(t.line, "'%s' outside loop", t.text))
		}
		if t.typ == tBreak {
			s = &breakStmt{at}
		} else {
			s = &continueStmt{at}
		}
	default:
		if t.typ == tName && p.toks[p.pos+1].typ == tAssign {
			p.pos += 2
			s = &assignStmt{at, t.text, p.expr()}
		} else {
			s = &exprStmt{at, p.expr()}
		}
	}
	p.expect(tNewline, "end of statement")
	return s
}

func (p *parser) ifTail(at pos) node {
	cond := p.expr()
	s := &ifStmt{pos: at, cond: cond, then: p.block()}
	switch t := p.cur(); t.typ {
	case tElif:
		p.next()
		s.els = []node{p.ifTail(pos{t.line})}
	case tElse:
		p.next()
		s.els = p.block()
	}
	return s
}

// collectAssigned records every name bound by an assignment in body, the
// names that are local to a function.
func collectAssigned(body []node, into map[string]bool) {
	for _, s := range body {
		switch s := s.(type) {
		case *assignStmt: into[s.name] = true
		case *defStmt: into[s.name] = true
		case *ifStmt:
			collectAssigned(s.then, into)
			collectAssigned(s.els, into)
		case *whileStmt:
			collectAssigned(s.body, into)
		}
	}
}

// Expressions, loosest first.
func (p *parser) expr() node { return p.or() }

func (p *parser) or() node {
	l := p.and()
	for t := p.cur(); p.accept(tOr); t = p.cur() {
		l = &boolExpr{pos{t.line}, tOr, l, p.and()}
	}
	return l
}

func (p *parser) and() node {
	l := p.not()
	for t := p.cur(); p.accept(tAnd); t = p.cur() {
		l = &boolExpr{pos{t.line}, tAnd, l, p.not()}
	}
	return l
}

func (p *parser) not() node {
	if t := p.cur(); p.accept(tNot) {
		return &notExpr{pos{t.line}, p.not()}
	}
	return p.comparison()
}

func isCompare(t tokType) bool {
	switch t {
	case tEq, tNe, tLt, tLe, tGt, tGe: return true
	}
	return false
}

func (p *parser) comparison() node {
	first := p.arith()
	if !isCompare(p.cur().typ) {
		return first
	}
	c := &compareExpr{pos: pos{p.cur().line}, operands: []node{first}}
	for isCompare(p.cur().typ) {
		c.ops = append(c.ops, p.next().typ)
		c.operands = append(c.operands, p.arith())
	}
	return c
}

func (p *parser) arith() node {
	l := p.term()
	for t := p.cur(); t.typ == tPlus || t.typ == tMinus; t = p.cur() {
		p.next()
		l = &binaryExpr{pos{t.line}, t.typ, l, p.term()}
	}
	return l
}

func (p *parser) term() node {
	l := p.unary()
	for t := p.cur(); t.typ == tStar || t.typ == tSlash; t = p.cur() {
		p.next()
		l = &binaryExpr{pos{t.line}, t.typ, l, p.unary()}
	}
	return l
}

func (p *parser) unary() node {
	if t := p.cur(); p.accept(tMinus) {
		return &negExpr{pos{t.line}, p.unary()}
	}
	if p.accept(tPlus) {
		return p.unary()
	}
	return p.postfix()
}

func (p *parser) postfix() node {
	x := p.primary()
	for t := p.cur(); p.accept(tLParen); t = p.cur() {
		call := &callExpr{pos: pos{t.line}, fn: x}
		for p.cur().typ != tRParen {
			call.args = append(call.args, p.expr())
			if !p.accept(tComma) {
				break
			}
		}
		p.expect(tRParen, "')'")
		x = call
	}
	return x
}

func (p *parser) primary() node {
	t := p.next()
	at := pos{t.line}
	switch t.typ {
	case tInt:
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			panic(&Error{Kind: "OverflowError", Msg: "integer literal too large: " + t.text})
		}
		return &literal{at, v}
	case tFloat:
		v, _ := strconv.ParseFloat(t.text, 64)
		return &literal{at, v}
	case tString: return &literal{at, t.text}
	case tTrue: return &literal{at, true}
	case tFalse: return &literal{at, false}
	case tNone: return &literal{at, nil}
	case tName: return &nameExpr{at, t.text}
	case tLParen:
		x := p.expr()
		p.expect(tRParen, "')'")
		return x
	}
	if t.typ != tEOF {
		p.pos--
	}
	p.fail("invalid syntax")
	return nil
}
