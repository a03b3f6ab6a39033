package codegen

import (
	"fmt"

	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

// valueKind is the machine representation the native backends pick for a value.
type valueKind int

const (
	kindUnknown valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindStr
	kindVoid
)

func (k valueKind) String() string {
	switch k {
	case kindInt: return "int"
	case kindFloat: return "float"
	case kindBool: return "bool"
	case kindStr: return "string"
	case kindVoid: return "void"
	default: return "unknown"
	}
}

// nativeFunc is one function of a native program. Top-level code becomes the
// function "main", whose variables are globals readable from every function.
type nativeFunc struct {
	name     string
	params   []string
	body     []ir.Instr
	isMain   bool
	locals   map[string]bool
	vars     map[string]valueKind
	varOrder []string
	temps    map[int]valueKind
	tempDefs map[int]int
	ret      valueKind
}

type nativeProgram struct {
	target   string
	main     *nativeFunc
	funcs    []*nativeFunc
	byName   map[string]*nativeFunc
	strIndex map[string]int
	strs     []string
}

func unsupported(target, format string, args ...interface{}) error {
	return util.Errorf(util.UnsupportedConstructError, token.Token{}, "the %s target does not support %s", target, fmt.Sprintf(format, args...))
}

// buildNative hoists function definitions and infers a kind for every
// variable, temporary, parameter and return value.
func buildNative(prog *ir.Program, target string) (*nativeProgram, error) {
	p := &nativeProgram{target: target, byName: make(map[string]*nativeFunc), strIndex: make(map[string]int)}
	p.main = p.newFunc("main", nil, prog.Instrs, true)

	for {
		if err := p.infer(); err != nil {
			return nil, err
		}
		if !p.defaultUnknowns() {
			break
		}
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *nativeProgram) newFunc(name string, params []string, instrs []ir.Instr, isMain bool) *nativeFunc {
	f := &nativeFunc{
		name: name, params: params, isMain: isMain, ret: kindVoid,
		locals: make(map[string]bool), vars: make(map[string]valueKind),
		temps: make(map[int]valueKind), tempDefs: make(map[int]int),
	}
	for _, prm := range params {
		f.declare(prm)
	}
	for _, in := range instrs {
		switch in := in.(type) {
		case *ir.FuncDef:
			fn := p.newFunc(in.Name, in.Params, in.Body, false)
			p.funcs = append(p.funcs, fn)
			p.byName[in.Name] = fn
			continue
		case *ir.Assign:
			switch dst := in.Dst.(type) {
			case *ir.Temp: f.tempDefs[dst.ID]++
			case *ir.Var: f.declare(dst.Name)
			}
		case *ir.Return:
			f.ret = kindUnknown
		}
		f.body = append(f.body, in)
	}
	return f
}

func (f *nativeFunc) declare(name string) {
	if !f.locals[name] {
		f.locals[name] = true
		f.varOrder = append(f.varOrder, name)
	}
}

func (p *nativeProgram) all() []*nativeFunc { return append([]*nativeFunc{p.main}, p.funcs...) }

// owner returns the function whose frame holds variable name as seen from f.
func (p *nativeProgram) owner(f *nativeFunc, name string) *nativeFunc {
	if f.locals[name] {
		return f
	}
	return p.main
}

func (p *nativeProgram) intern(s string) int {
	if i, ok := p.strIndex[s]; ok {
		return i
	}
	p.strIndex[s] = len(p.strs)
	p.strs = append(p.strs, s)
	return len(p.strs) - 1
}

// unify merges k into *slot. Known kinds never change.
func (p *nativeProgram) unify(slot *valueKind, k valueKind, what string) (bool, error) {
	switch {
	case k == kindUnknown || *slot == k: return false, nil
	case *slot == kindUnknown:
		*slot = k
		return true, nil
	default: return false, unsupported(p.target, "%s holding both %s and %s values", what, *slot, k)
	}
}

func (p *nativeProgram) infer() error {
	for changed := true; changed; {
		changed = false
		for _, f := range p.all() {
			for _, in := range f.body {
				c, err := p.inferInstr(f, in)
				if err != nil {
					return err
				}
				changed = changed || c
			}
		}
	}
	return nil
}

func (p *nativeProgram) inferInstr(f *nativeFunc, in ir.Instr) (bool, error) {
	switch in := in.(type) {
	case *ir.Assign:
		k, err := p.kindOf(f, in.Src)
		if err != nil {
			return false, err
		}
		changed := false
		if call, ok := in.Src.(*ir.Call); ok {
			callee := p.byName[call.Func]
			for i, a := range call.Args {
				ak, _ := p.kindOf(f, a)
				k := callee.vars[callee.params[i]]
				c, err := p.unify(&k, ak, fmt.Sprintf("parameter '%s' of '%s'", callee.params[i], callee.name))
				if err != nil {
					return false, err
				}
				callee.vars[callee.params[i]] = k
				changed = changed || c
			}
		}
		switch dst := in.Dst.(type) {
		case *ir.Temp:
			slot := f.temps[dst.ID]
			c, err := p.unify(&slot, k, "temporary '"+dst.String()+"'")
			f.temps[dst.ID] = slot
			return changed || c, err
		case *ir.Var:
			if k == kindVoid {
				return false, unsupported(p.target, "storing the result of '%s', which returns nothing", in.Src)
			}
			o := p.owner(f, dst.Name)
			slot := o.vars[dst.Name]
			c, err := p.unify(&slot, k, "variable '"+dst.Name+"'")
			o.vars[dst.Name] = slot
			return changed || c, err
		}
	case *ir.Return:
		k, err := p.kindOf(f, in.X)
		if err != nil {
			return false, err
		}
		return p.unify(&f.ret, k, "function '"+f.name+"'")
	}
	return false, nil
}

func (p *nativeProgram) kindOf(f *nativeFunc, e ir.Expr) (valueKind, error) {
	switch e := e.(type) {
	case *ir.IntConst: return kindInt, nil
	case *ir.FloatConst: return kindFloat, nil
	case *ir.StrConst:
		p.intern(e.Value)
		return kindStr, nil
	case *ir.Var: return p.owner(f, e.Name).vars[e.Name], nil
	case *ir.Temp: return f.temps[e.ID], nil
	case *ir.Binary:
		l, err := p.kindOf(f, e.L)
		if err != nil {
			return kindUnknown, err
		}
		r, err := p.kindOf(f, e.R)
		if err != nil {
			return kindUnknown, err
		}
		return p.binaryKind(e, l, r)
	case *ir.Not:
		_, err := p.kindOf(f, e.X)
		return kindBool, err
	case *ir.Call:
		callee, ok := p.byName[e.Func]
		if !ok {
			return kindUnknown, unsupported(p.target, "calling '%s', which is not defined at top level", e.Func)
		}
		for _, a := range e.Args {
			if _, err := p.kindOf(f, a); err != nil {
				return kindUnknown, err
			}
		}
		return callee.ret, nil
	case *ir.Concat: return kindUnknown, unsupported(p.target, "string concatenation ('%s')", e)
	case *ir.Input: return kindUnknown, unsupported(p.target, "reading input ('%s')", e)
	}
	return kindUnknown, unsupported(p.target, "'%s'", e)
}

func (p *nativeProgram) binaryKind(e *ir.Binary, l, r valueKind) (valueKind, error) {
	switch e.Op {
	case "&&", "||": return kindBool, nil
	case "==", "!=", "<", ">", "<=", ">=":
		if l == kindStr || r == kindStr {
			return kindUnknown, unsupported(p.target, "comparing strings ('%s')", e)
		}
		return kindBool, nil
	}
	for _, k := range []valueKind{l, r} {
		if k == kindStr || k == kindBool || k == kindVoid {
			return kindUnknown, unsupported(p.target, "'%s' on a %s operand", e.Op, k)
		}
	}
	switch {
	case l == kindUnknown || r == kindUnknown: return kindUnknown, nil
	case e.Op == "/" || l == kindFloat || r == kindFloat: return kindFloat, nil
	default: return kindInt, nil
	}
}

// defaultUnknowns gives parameters of uncalled functions, then results of
// functions that only return through recursion, the int kind.
func (p *nativeProgram) defaultUnknowns() bool {
	changed := false
	for _, f := range p.funcs {
		for _, prm := range f.params {
			if f.vars[prm] == kindUnknown {
				f.vars[prm] = kindInt
				changed = true
			}
		}
	}
	if changed {
		return true
	}
	for _, f := range p.funcs {
		if f.ret == kindUnknown {
			f.ret = kindInt
			changed = true
		}
	}
	return changed
}

func (p *nativeProgram) validate() error {
	for _, f := range p.all() {
		for _, in := range f.body {
			for _, op := range ir.Reads(in) {
				k, err := p.kindOf(f, op)
				if err != nil {
					return err
				}
				if k == kindUnknown || k == kindVoid {
					return unsupported(p.target, "'%s', whose operand %s has no value type", in, op)
				}
			}
		}
	}
	return nil
}

// operandKind is kindOf for operands, which cannot fail after validation.
func (p *nativeProgram) operandKind(f *nativeFunc, op ir.Operand) valueKind {
	k, _ := p.kindOf(f, op)
	return k
}
