package typeChecker

import (
	"fmt"
	"strings"

	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

type Symbol struct {
	Name string
	Type ast.Type
	Next *Symbol
}

type Scope struct{ Symbols *Symbol; Parent *Scope }

func NewScope(parent *Scope) *Scope { return &Scope{Parent: parent} }

// Lookup searches this scope, then its parents.
func (s *Scope) Lookup(name string) (*Symbol, bool) {
	for scope := s; scope != nil; scope = scope.Parent {
		for sym := scope.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym, true
			}
		}
	}
	return nil, false
}

// Define binds name in this scope only, rebinding an existing entry.
func (s *Scope) Define(name string, typ ast.Type) {
	for sym := s.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name {
			sym.Type = typ
			return
		}
	}
	s.Symbols = &Symbol{Name: name, Type: typ, Next: s.Symbols}
}

type Function struct {
	Decl   *ast.FuncDecl
	Called bool
}

// Info is what lowering needs to know about a checked program.
type Info struct {
	// CondTypes holds the type of every branch and loop condition. A condition
	// seen as int by any walk stays int.
	CondTypes map[ast.Expr]ast.Type
	// Concat marks '+' nodes that had a string operand in some walk.
	Concat map[*ast.BinaryOp]bool
}

func newInfo() *Info {
	return &Info{CondTypes: make(map[ast.Expr]ast.Type), Concat: make(map[*ast.BinaryOp]bool)}
}

type TypeChecker struct {
	cfg      *config.Config
	globals  *Scope
	funcs    map[string]*Function
	order    []*Function
	info     *Info
	adds     map[*ast.BinaryOp]bool
	active   map[string]bool
	depth    int
	warned   map[token.Token]bool
	Warnings []util.Warning
}

// NewTypeChecker returns a checker with empty tables. Each compilation job
// needs its own.
func NewTypeChecker(cfg *config.Config) *TypeChecker {
	return &TypeChecker{
		cfg:     cfg,
		globals: NewScope(nil),
		funcs:   make(map[string]*Function),
		info:    newInfo(),
		adds:    make(map[*ast.BinaryOp]bool),
		active:  make(map[string]bool),
		warned:  make(map[token.Token]bool),
	}
}

// Globals exposes the global scope.
func (tc *TypeChecker) Globals() *Scope { return tc.globals }

// Info returns what has been recorded so far.
func (tc *TypeChecker) Info() *Info { return tc.info }

// Check validates a whole program.
func (tc *TypeChecker) Check(prog *ast.Program) (*Info, error) {
	if _, err := tc.Analyze(prog, nil); err != nil {
		return nil, err
	}
	for _, fn := range tc.order {
		if !fn.Called {
			tc.warn(config.WarnUncalledFunction, fn.Decl.Pos(), "Function '%s' is never called, so its body was not checked", fn.Decl.Name)
		}
	}
	return tc.info, nil
}

func (tc *TypeChecker) warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !tc.cfg.IsWarningEnabled(wt) || tc.warned[tok] {
		return
	}
	tc.warned[tok] = true
	tc.Warnings = append(tc.Warnings, util.Warning{Name: tc.cfg.Warnings[wt].Name, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func (tc *TypeChecker) checkBlock(stmts []ast.Stmt, scope *Scope) error {
	returned := false
	for _, s := range stmts {
		if returned {
			tc.warn(config.WarnUnreachableCode, s.Pos(), "Unreachable code after 'give'")
			returned = false
		}
		if _, err := tc.Analyze(s, scope); err != nil {
			return err
		}
		if _, ok := s.(*ast.Return); ok {
			returned = true
		}
	}
	return nil
}

func (tc *TypeChecker) checkCondition(cond ast.Expr, keyword string, scope *Scope) error {
	typ, err := tc.Analyze(cond, scope)
	if err != nil {
		return err
	}
	switch typ {
	case ast.TypeBool, ast.TypeUnknown:
	case ast.TypeInt:
		tc.warn(config.WarnIntCondition, cond.Pos(), "Integer used as the condition of '%s'; nonzero counts as true", keyword)
	default:
		return util.Errorf(util.ValidationError, cond.Pos(), "Condition in '%s' must evaluate to an integer or boolean.", keyword)
	}
	if prev, seen := tc.info.CondTypes[cond]; !seen || (prev != ast.TypeInt && typ != ast.TypeUnknown) {
		tc.info.CondTypes[cond] = typ
	}
	return nil
}

// Analyze returns the type of node. A nil scope means top level: names
// resolve in and bind to the global scope.
func (tc *TypeChecker) Analyze(node ast.Node, scope *Scope) (ast.Type, error) {
	if scope == nil {
		scope = tc.globals
	}

	switch n := node.(type) {
	case *ast.Program:
		return ast.TypeVoid, tc.checkBlock(n.Stmts, scope)
	case *ast.Number: return ast.TypeInt, nil
	case *ast.Float: return ast.TypeFloat, nil
	case *ast.String: return ast.TypeString, nil

	case *ast.Ident:
		sym, ok := scope.Lookup(n.Name)
		if !ok {
			return ast.TypeUnknown, util.Errorf(util.NameError, n.Pos(), "Oops! You forgot to create the variable '%s' before using it.", n.Name)
		}
		return sym.Type, nil

	case *ast.Assign:
		typ, err := tc.Analyze(n.Value, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		scope.Define(n.Name, typ)
		return typ, nil

	case *ast.BinaryOp: return tc.checkBinaryOp(n, scope)
	case *ast.LogicalOp:
		l, err := tc.Analyze(n.Left, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		r, err := tc.Analyze(n.Right, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		if !boolish(l) || !boolish(r) {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Logical operator '%s' requires boolean operands, got %s and %s", ast.OpString(n.Op), l, r)
		}
		return ast.TypeBool, nil

	case *ast.Not:
		typ, err := tc.Analyze(n.X, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		if !boolish(typ) {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "NOT operation requires boolean, got %s", typ)
		}
		return ast.TypeBool, nil

	case *ast.ExprStmt:
		return tc.Analyze(n.X, scope)

	case *ast.Print:
		typ, err := tc.Analyze(n.X, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		if typ == ast.TypeVoid {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.X.Pos(), "Cannot print value of type %s", typ)
		}
		return ast.TypeVoid, nil

	case *ast.Input:
		if n.Prompt != nil {
			if _, err := tc.Analyze(n.Prompt, scope); err != nil {
				return ast.TypeUnknown, err
			}
		}
		scope.Define(n.Name, ast.TypeString)
		return ast.TypeString, nil

	case *ast.If:
		if err := tc.checkCondition(n.Cond, "check", scope); err != nil {
			return ast.TypeUnknown, err
		}
		if err := tc.checkBlock(n.Then, scope); err != nil {
			return ast.TypeUnknown, err
		}
		return ast.TypeVoid, tc.checkBlock(n.Else, scope)

	case *ast.While:
		if err := tc.checkCondition(n.Cond, "keep", scope); err != nil {
			return ast.TypeUnknown, err
		}
		return ast.TypeVoid, tc.checkBlock(n.Body, scope)

	case *ast.Repeat:
		typ, err := tc.Analyze(n.Count, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		if typ != ast.TypeInt && typ != ast.TypeUnknown {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Count.Pos(), "Repeat count must be an integer, got %s", typ)
		}
		return ast.TypeVoid, tc.checkBlock(n.Body, scope)

	case *ast.FuncDecl:
		if fn, exists := tc.funcs[n.Name]; exists {
			if fn.Decl == n {
				return ast.TypeVoid, nil
			}
			return ast.TypeUnknown, util.Errorf(util.NameError, n.Pos(), "Oops! The function '%s' is already defined.", n.Name)
		}
		fn := &Function{Decl: n}
		tc.funcs[n.Name] = fn
		tc.order = append(tc.order, fn)
		return ast.TypeVoid, nil

	case *ast.Call: return tc.checkCall(n, scope)

	case *ast.Return:
		if tc.depth == 0 {
			return ast.TypeUnknown, util.Errorf(util.ValidationError, n.Pos(), "'give' can only be used inside a function")
		}
		return tc.Analyze(n.X, scope)

	default:
		return ast.TypeUnknown, util.Errorf(util.UnsupportedConstructError, node.Pos(), "Semantic analysis not implemented for %T", node)
	}
}

func boolish(t ast.Type) bool { return t == ast.TypeBool || t == ast.TypeUnknown }

func (tc *TypeChecker) checkBinaryOp(n *ast.BinaryOp, scope *Scope) (ast.Type, error) {
	l, err := tc.Analyze(n.Left, scope)
	if err != nil {
		return ast.TypeUnknown, err
	}
	r, err := tc.Analyze(n.Right, scope)
	if err != nil {
		return ast.TypeUnknown, err
	}
	op := ast.OpString(n.Op)

	switch n.Op {
	case token.Plus:
		if l == ast.TypeString || r == ast.TypeString {
			if !stringable(l) || !stringable(r) {
				return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Oops! You can only use numbers or strings with '%s'.", op)
			}
			if tc.adds[n] {
				return ast.TypeUnknown, mixedPlus(n)
			}
			if l != r {
				tc.warn(config.WarnImplicitStr, n.Pos(), "'+' turns a number into a string here")
			}
			tc.info.Concat[n] = true
			return ast.TypeString, nil
		}
		if l == ast.TypeUnknown || r == ast.TypeUnknown {
			if !stringable(l) || !stringable(r) {
				return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Oops! You can only use numbers or strings with '%s'.", op)
			}
			return ast.TypeUnknown, nil
		}
		if !l.IsNumeric() || !r.IsNumeric() {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Oops! You can only use numbers or strings with '%s'.", op)
		}
		if tc.info.Concat[n] {
			return ast.TypeUnknown, mixedPlus(n)
		}
		tc.adds[n] = true
		return widen(l, r), nil

	case token.Minus, token.Star, token.Slash:
		if l == ast.TypeUnknown || r == ast.TypeUnknown {
			if (l.IsNumeric() || l == ast.TypeUnknown) && (r.IsNumeric() || r == ast.TypeUnknown) {
				return ast.TypeUnknown, nil
			}
		}
		if !l.IsNumeric() || !r.IsNumeric() {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Oops! You can only use numbers with '%s'. Got types %s and %s.", op, l, r)
		}
		return widen(l, r), nil

	default:
		if l != r && l != ast.TypeUnknown && r != ast.TypeUnknown {
			return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Comparison '%s' requires operands of the same type", op)
		}
		return ast.TypeBool, nil
	}
}

// mixedPlus reports a '+' that joins text for one call of its function and
// adds numbers for another. It is lowered once, so it cannot do both.
func mixedPlus(n *ast.BinaryOp) error {
	return util.Errorf(util.TypeError, n.Pos(), "Oops! This '+' joins text in one call and adds numbers in another.")
}

func stringable(t ast.Type) bool {
	return t == ast.TypeString || t.IsNumeric() || t == ast.TypeUnknown
}

func widen(l, r ast.Type) ast.Type {
	if l == ast.TypeFloat || r == ast.TypeFloat {
		return ast.TypeFloat
	}
	return ast.TypeInt
}

// checkCall walks the callee body in a fresh scope layered over the globals.
// A recursive call whose signature is already being walked yields unknown.
func (tc *TypeChecker) checkCall(n *ast.Call, scope *Scope) (ast.Type, error) {
	fn, ok := tc.funcs[n.Name]
	if !ok {
		return ast.TypeUnknown, util.Errorf(util.NameError, n.Pos(), "Oops! You tried to call the function '%s', but it is not defined.", n.Name)
	}
	params := fn.Decl.Params
	if len(n.Args) != len(params) {
		return ast.TypeUnknown, util.Errorf(util.TypeError, n.Pos(), "Oops! The function '%s' expects %d arguments, but got %d.", n.Name, len(params), len(n.Args))
	}

	argTypes := make([]string, len(n.Args))
	call := NewScope(tc.globals)
	for i, arg := range n.Args {
		typ, err := tc.Analyze(arg, scope)
		if err != nil {
			return ast.TypeUnknown, err
		}
		call.Define(params[i], typ)
		argTypes[i] = typ.String()
	}
	fn.Called = true

	sig := n.Name + "(" + strings.Join(argTypes, ",") + ")"
	if tc.active[sig] {
		return ast.TypeUnknown, nil
	}
	tc.active[sig] = true
	tc.depth++
	defer func() {
		delete(tc.active, sig)
		tc.depth--
	}()

	for i, s := range fn.Decl.Body {
		if ret, ok := s.(*ast.Return); ok {
			if i+1 < len(fn.Decl.Body) {
				tc.warn(config.WarnUnreachableCode, fn.Decl.Body[i+1].Pos(), "Unreachable code after 'give'")
			}
			return tc.Analyze(ret, call)
		}
		if _, err := tc.Analyze(s, call); err != nil {
			return ast.TypeUnknown, err
		}
	}
	return ast.TypeVoid, nil
}
