package codegen

import (
	"fmt"

	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/typeChecker"
	"github.com/xplshn/kidc/pkg/util"
)

// Context lowers one checked program. Temporaries and labels share a single
// counter, so every generated name is unique within the job.
type Context struct {
	cfg     *config.Config
	info    *typeChecker.Info
	counter int
}

// NewContext returns a lowering context. info may be nil, in which case '+'
// concatenates only when an operand is a string literal and no condition is
// treated as an integer.
func NewContext(cfg *config.Config, info *typeChecker.Info) *Context {
	if info == nil {
		info = &typeChecker.Info{CondTypes: map[ast.Expr]ast.Type{}, Concat: map[*ast.BinaryOp]bool{}}
	}
	return &Context{cfg: cfg, info: info}
}

func (ctx *Context) newTemp() *ir.Temp {
	ctx.counter++
	return &ir.Temp{ID: ctx.counter}
}

func (ctx *Context) newLabel() string {
	ctx.counter++
	return fmt.Sprintf("L%d", ctx.counter)
}

// GenerateIR lowers root. The tree must already have passed the type checker.
func (ctx *Context) GenerateIR(root *ast.Program) (*ir.Program, error) {
	instrs, err := ctx.lowerBlock(root.Stmts)
	if err != nil {
		return nil, err
	}
	return &ir.Program{Instrs: instrs}, nil
}

func (ctx *Context) lowerBlock(stmts []ast.Stmt) ([]ir.Instr, error) {
	var out []ir.Instr
	for _, s := range stmts {
		code, err := ctx.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, code...)
	}
	return out, nil
}

func (ctx *Context) lowerStmt(node ast.Stmt) ([]ir.Instr, error) {
	switch n := node.(type) {
	case *ast.Program: return ctx.lowerBlock(n.Stmts)
	case *ast.Assign:
		res, code, err := ctx.lowerExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return append(code, &ir.Assign{Dst: &ir.Var{Name: n.Name}, Src: res}), nil
	case *ast.ExprStmt:
		_, code, err := ctx.lowerExpr(n.X)
		return code, err
	case *ast.Print:
		res, code, err := ctx.lowerExpr(n.X)
		if err != nil {
			return nil, err
		}
		return append(code, &ir.Print{X: res}), nil
	case *ast.Input:
		in := &ir.Input{}
		var code []ir.Instr
		if n.Prompt != nil {
			res, pcode, err := ctx.lowerExpr(n.Prompt)
			if err != nil {
				return nil, err
			}
			in.Prompt, code = res, pcode
		}
		return append(code, &ir.Assign{Dst: &ir.Var{Name: n.Name}, Src: in}), nil
	case *ast.Return:
		res, code, err := ctx.lowerExpr(n.X)
		if err != nil {
			return nil, err
		}
		return append(code, &ir.Return{X: res}), nil
	case *ast.If: return ctx.lowerIf(n)
	case *ast.While: return ctx.lowerWhile(n)
	case *ast.Repeat: return ctx.lowerRepeat(n)
	case *ast.FuncDecl:
		body, err := ctx.lowerBlock(n.Body)
		if err != nil {
			return nil, err
		}
		params := append([]string(nil), n.Params...)
		return []ir.Instr{&ir.FuncDef{Name: n.Name, Params: params, Body: body}}, nil
	default:
		return nil, util.Errorf(util.UnsupportedConstructError, node.Pos(), "IR generation not implemented for %T", node)
	}
}

// lowerExpr returns the operand holding the value of node and the code that
// computes it.
func (ctx *Context) lowerExpr(node ast.Expr) (ir.Operand, []ir.Instr, error) {
	switch n := node.(type) {
	case *ast.Number: return &ir.IntConst{Value: n.Value}, nil, nil
	case *ast.Float: return &ir.FloatConst{Value: n.Value, Text: n.Text}, nil, nil
	case *ast.String: return &ir.StrConst{Value: n.Value}, nil, nil
	case *ast.Ident: return &ir.Var{Name: n.Name}, nil, nil

	case *ast.BinaryOp:
		l, r, code, err := ctx.lowerOperands(n.Left, n.Right)
		if err != nil {
			return nil, nil, err
		}
		var src ir.Expr = &ir.Binary{Op: ast.OpString(n.Op), L: l, R: r}
		if n.Op == token.Plus && ctx.concatenates(n) {
			src = &ir.Concat{L: l, R: r}
		}
		t := ctx.newTemp()
		return t, append(code, &ir.Assign{Dst: t, Src: src}), nil

	case *ast.LogicalOp:
		l, r, code, err := ctx.lowerOperands(n.Left, n.Right)
		if err != nil {
			return nil, nil, err
		}
		t := ctx.newTemp()
		return t, append(code, &ir.Assign{Dst: t, Src: &ir.Binary{Op: ast.OpString(n.Op), L: l, R: r}}), nil

	case *ast.Not:
		x, code, err := ctx.lowerExpr(n.X)
		if err != nil {
			return nil, nil, err
		}
		t := ctx.newTemp()
		return t, append(code, &ir.Assign{Dst: t, Src: &ir.Not{X: x}}), nil

	case *ast.Call:
		var code []ir.Instr
		args := make([]ir.Operand, 0, len(n.Args))
		for _, a := range n.Args {
			res, acode, err := ctx.lowerExpr(a)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, res)
			code = append(code, acode...)
		}
		t := ctx.newTemp()
		return t, append(code, &ir.Assign{Dst: t, Src: &ir.Call{Func: n.Name, Args: args}}), nil

	default:
		return nil, nil, util.Errorf(util.UnsupportedConstructError, node.Pos(), "IR generation not implemented for %T", node)
	}
}

func (ctx *Context) lowerOperands(left, right ast.Expr) (l, r ir.Operand, code []ir.Instr, err error) {
	l, lcode, err := ctx.lowerExpr(left)
	if err != nil {
		return nil, nil, nil, err
	}
	r, rcode, err := ctx.lowerExpr(right)
	if err != nil {
		return nil, nil, nil, err
	}
	return l, r, append(lcode, rcode...), nil
}

func (ctx *Context) concatenates(n *ast.BinaryOp) bool {
	if ctx.info.Concat[n] {
		return true
	}
	_, ls := n.Left.(*ast.String)
	_, rs := n.Right.(*ast.String)
	return ls || rs
}
