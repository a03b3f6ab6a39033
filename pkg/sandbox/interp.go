package sandbox

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const maxDepth = 1000

type control int

const (
	ctlNone control = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

type frame struct {
	def    *defStmt
	locals map[string]value
}

type interp struct {
	ctx      context.Context
	opts     Options
	globals  map[string]value
	frames   []*frame
	out      strings.Builder
	steps    int
	retValue value
}

func runtimeErr(kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func newInterp(ctx context.Context, opts Options) *interp {
	in := &interp{ctx: ctx, opts: opts, globals: make(map[string]value)}
	for _, b := range builtins {
		in.globals[b.name] = b
	}
	return in
}

var builtins = []*builtin{
	{"print", builtinPrint},
	{"str", builtinStr},
	{"input", builtinInput},
	{"int", builtinInt},
	{"float", builtinFloat},
}

func builtinPrint(in *interp, args []value) (value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = str(a)
	}
	in.out.WriteString(strings.Join(parts, " "))
	in.out.WriteByte('\n')
	return nil, nil
}

func builtinStr(in *interp, args []value) (value, error) {
	if len(args) > 1 {
		return nil, runtimeErr("TypeError", "str() takes at most 1 argument (%d given)", len(args))
	}
	if len(args) == 0 {
		return "", nil
	}
	return str(args[0]), nil
}

func builtinInput(in *interp, args []value) (value, error) {
	if len(args) > 1 {
		return nil, runtimeErr("TypeError", "input expected at most 1 argument, got %d", len(args))
	}
	prompt := ""
	if len(args) == 1 {
		prompt = str(args[0])
	}
	if in.opts.Input == nil {
		return "", nil
	}
	return in.opts.Input(prompt), nil
}

func builtinInt(in *interp, args []value) (value, error) {
	if len(args) != 1 {
		return nil, runtimeErr("TypeError", "int() takes exactly one argument (%d given)", len(args))
	}
	switch v := args[0].(type) {
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case int64: return v, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, runtimeErr("ValueError", "cannot convert float %s to integer", formatFloat(v))
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, runtimeErr("ValueError", "invalid literal for int() with base 10: %s", strconv.Quote(v))
		}
		return n, nil
	}
	return nil, runtimeErr("TypeError", "int() argument must be a string or a number, not '%s'", typeName(args[0]))
}

func builtinFloat(in *interp, args []value) (value, error) {
	if len(args) != 1 {
		return nil, runtimeErr("TypeError", "float() takes exactly one argument (%d given)", len(args))
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, runtimeErr("ValueError", "could not convert string to float: %s", strconv.Quote(s))
		}
		return f, nil
	}
	if _, f, _, ok := number(args[0]); ok {
		return f, nil
	}
	return nil, runtimeErr("TypeError", "float() argument must be a string or a number, not '%s'", typeName(args[0]))
}

func (in *interp) tick() error {
	in.steps++
	if in.opts.MaxSteps > 0 && in.steps > in.opts.MaxSteps {
		return runtimeErr("TimeoutError", "step limit of %d exceeded", in.opts.MaxSteps)
	}
	if in.steps%1024 == 0 {
		if err := in.ctx.Err(); err != nil {
			return runtimeErr("TimeoutError", "execution cancelled: %v", err)
		}
	}
	return nil
}

func (in *interp) top() *frame {
	if len(in.frames) == 0 {
		return nil
	}
	return in.frames[len(in.frames)-1]
}

func (in *interp) lookup(name string) (value, error) {
	if f := in.top(); f != nil && f.def.locals[name] {
		v, ok := f.locals[name]
		if !ok {
			return nil, runtimeErr("UnboundLocalError", "local variable '%s' referenced before assignment", name)
		}
		return v, nil
	}
	v, ok := in.globals[name]
	if !ok {
		return nil, runtimeErr("NameError", "name '%s' is not defined", name)
	}
	return v, nil
}

func (in *interp) store(name string, v value) {
	if f := in.top(); f != nil {
		f.locals[name] = v
		return
	}
	in.globals[name] = v
}

func (in *interp) execBlock(stmts []node) (control, error) {
	for _, s := range stmts {
		ctl, err := in.exec(s)
		if err != nil || ctl != ctlNone {
			return ctl, err
		}
	}
	return ctlNone, nil
}

func (in *interp) exec(s node) (control, error) {
	if err := in.tick(); err != nil {
		return ctlNone, err
	}
	switch s := s.(type) {
	case *assignStmt:
		v, err := in.eval(s.x)
		if err != nil {
			return ctlNone, err
		}
		in.store(s.name, v)
	case *exprStmt:
		_, err := in.eval(s.x)
		return ctlNone, err
	case *ifStmt:
		c, err := in.eval(s.cond)
		if err != nil {
			return ctlNone, err
		}
		if truthy(c) {
			return in.execBlock(s.then)
		}
		return in.execBlock(s.els)
	case *whileStmt:
		for {
			c, err := in.eval(s.cond)
			if err != nil {
				return ctlNone, err
			}
			if !truthy(c) {
				return ctlNone, nil
			}
			ctl, err := in.execBlock(s.body)
			if err != nil {
				return ctlNone, err
			}
			switch ctl {
			case ctlBreak: return ctlNone, nil
			case ctlReturn: return ctl, nil
			}
			if err := in.tick(); err != nil {
				return ctlNone, err
			}
		}
	case *defStmt:
		in.store(s.name, &function{def: s})
	case *returnStmt:
		in.retValue = nil
		if s.x != nil {
			v, err := in.eval(s.x)
			if err != nil {
				return ctlNone, err
			}
			in.retValue = v
		}
		return ctlReturn, nil
	case *passStmt:
	case *breakStmt: return ctlBreak, nil
	case *continueStmt: return ctlContinue, nil
	default: return ctlNone, runtimeErr("SyntaxError", "unexpected statement %T", s)
	}
	return ctlNone, nil
}

func (in *interp) eval(n node) (value, error) {
	switch n := n.(type) {
	case *literal: return n.v, nil
	case *nameExpr: return in.lookup(n.name)
	case *notExpr:
		v, err := in.eval(n.x)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case *negExpr:
		v, err := in.eval(n.x)
		if err != nil {
			return nil, err
		}
		i, f, isFloat, ok := number(v)
		if !ok {
			return nil, runtimeErr("TypeError", "bad operand type for unary -: '%s'", typeName(v))
		}
		if isFloat {
			return -f, nil
		}
		return -i, nil
	case *boolExpr:
		l, err := in.eval(n.l)
		if err != nil {
			return nil, err
		}
		if truthy(l) == (n.op == tOr) {
			return l, nil
		}
		return in.eval(n.r)
	case *binaryExpr:
		l, err := in.eval(n.l)
		if err != nil {
			return nil, err
		}
		r, err := in.eval(n.r)
		if err != nil {
			return nil, err
		}
		return binaryOp(n.op, l, r)
	case *compareExpr:
		l, err := in.eval(n.operands[0])
		if err != nil {
			return nil, err
		}
		for i, op := range n.ops {
			r, err := in.eval(n.operands[i+1])
			if err != nil {
				return nil, err
			}
			ok, err := compare(op, l, r)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
			l = r
		}
		return true, nil
	case *callExpr: return in.call(n)
	}
	return nil, runtimeErr("SyntaxError", "unexpected expression %T", n)
}

func (in *interp) call(n *callExpr) (value, error) {
	fn, err := in.eval(n.fn)
	if err != nil {
		return nil, err
	}
	args := make([]value, len(n.args))
	for i, a := range n.args {
		if args[i], err = in.eval(a); err != nil {
			return nil, err
		}
	}

	switch fn := fn.(type) {
	case *builtin: return fn.call(in, args)
	case *function:
		def := fn.def
		if len(args) != len(def.params) {
			return nil, runtimeErr("TypeError", "%s() takes %d positional arguments but %d were given", def.name, len(def.params), len(args))
		}
		if len(in.frames) >= maxDepth {
			return nil, runtimeErr("RecursionError", "maximum recursion depth exceeded")
		}
		f := &frame{def: def, locals: make(map[string]value, len(def.locals))}
		for i, p := range def.params {
			f.locals[p] = args[i]
		}
		in.frames = append(in.frames, f)
		ctl, err := in.execBlock(def.body)
		in.frames = in.frames[:len(in.frames)-1]
		if err != nil {
			return nil, err
		}
		if ctl == ctlReturn {
			v := in.retValue
			in.retValue = nil
			return v, nil
		}
		return nil, nil
	}
	return nil, runtimeErr("TypeError", "'%s' object is not callable", typeName(fn))
}

var opSymbols = map[tokType]string{
	tPlus: "+", tMinus: "-", tStar: "*", tSlash: "/",
	tEq: "==", tNe: "!=", tLt: "<", tLe: "<=", tGt: ">", tGe: ">=",
}

func binaryOp(op tokType, l, r value) (value, error) {
	ls, lstr := l.(string)
	rs, rstr := r.(string)
	switch {
	case op == tPlus && lstr && rstr:
		return ls + rs, nil
	case op == tPlus && lstr:
		return nil, runtimeErr("TypeError", "can only concatenate str (not \"%s\") to str", typeName(r))
	case op == tStar && (lstr || rstr):
		s, count := ls, r
		if rstr {
			s, count = rs, l
		}
		if lstr && rstr {
			break
		}
		n, _, isFloat, ok := number(count)
		if !ok || isFloat {
			break
		}
		if n <= 0 {
			return "", nil
		}
		return strings.Repeat(s, int(n)), nil
	}

	li, lf, lfloat, lok := number(l)
	ri, rf, rfloat, rok := number(r)
	if !lok || !rok {
		return nil, runtimeErr("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", opSymbols[op], typeName(l), typeName(r))
	}

	if op == tSlash {
		if rf == 0 {
			return nil, runtimeErr("ZeroDivisionError", "division by zero")
		}
		return lf / rf, nil
	}
	if lfloat || rfloat {
		switch op {
		case tPlus: return lf + rf, nil
		case tMinus: return lf - rf, nil
		case tStar: return lf * rf, nil
		}
	}
	switch op {
	case tPlus: return li + ri, nil
	case tMinus: return li - ri, nil
	case tStar: return li * ri, nil
	}
	return nil, runtimeErr("TypeError", "unsupported operator %s", opSymbols[op])
}

func compare(op tokType, l, r value) (bool, error) {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			c := strings.Compare(ls, rs)
			return cmpResult(op, c), nil
		}
	}
	_, lf, _, lok := number(l)
	_, rf, _, rok := number(r)
	if lok && rok {
		li, _, lfloat, _ := number(l)
		ri, _, rfloat, _ := number(r)
		c := 0
		if lfloat || rfloat {
			switch {
			case lf < rf: c = -1
			case lf > rf: c = 1
			case lf != rf:
				// NaN compares false with everything except !=.
				return op == tNe, nil
			}
		} else {
			switch {
			case li < ri: c = -1
			case li > ri: c = 1
			}
		}
		return cmpResult(op, c), nil
	}
	switch op {
	case tEq: return l == r, nil
	case tNe: return l != r, nil
	}
	return false, runtimeErr("TypeError", "'%s' not supported between instances of '%s' and '%s'", opSymbols[op], typeName(l), typeName(r))
}

func cmpResult(op tokType, c int) bool {
	switch op {
	case tEq: return c == 0
	case tNe: return c != 0
	case tLt: return c < 0
	case tLe: return c <= 0
	case tGt: return c > 0
	default: return c >= 0
	}
}
