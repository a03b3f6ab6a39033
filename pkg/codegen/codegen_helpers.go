package codegen

import (
	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
)

// lowerCond evaluates a branch or loop condition into an operand that is
// false exactly when the branch must not be taken. Integer conditions are
// compared against zero.
func (ctx *Context) lowerCond(cond ast.Expr) (ir.Operand, []ir.Instr, error) {
	c, code, err := ctx.lowerExpr(cond)
	if err != nil {
		return nil, nil, err
	}
	if ctx.info.CondTypes[cond] == ast.TypeInt && ctx.cfg.IsFeatureEnabled(config.FeatIntTruthiness) {
		t := ctx.newTemp()
		code = append(code, &ir.Assign{Dst: t, Src: &ir.Binary{Op: "!=", L: c, R: &ir.IntConst{Value: 0}}})
		c = t
	}
	return c, code, nil
}

func (ctx *Context) lowerIf(n *ast.If) ([]ir.Instr, error) {
	c, code, err := ctx.lowerCond(n.Cond)
	if err != nil {
		return nil, err
	}
	elseL := ctx.newLabel()
	then, err := ctx.lowerBlock(n.Then)
	if err != nil {
		return nil, err
	}

	code = append(code, &ir.IfFalseGoto{Cond: c, Target: elseL})
	code = append(code, then...)
	if !n.HasElse {
		return append(code, &ir.Label{Name: elseL}), nil
	}

	endL := ctx.newLabel()
	els, err := ctx.lowerBlock(n.Else)
	if err != nil {
		return nil, err
	}
	code = append(code, &ir.Goto{Target: endL}, &ir.Label{Name: elseL})
	code = append(code, els...)
	return append(code, &ir.Label{Name: endL}), nil
}

// loop emits the while skeleton around an already lowered header and body.
func loop(startL, endL string, header []ir.Instr, c ir.Operand, body []ir.Instr) []ir.Instr {
	code := []ir.Instr{&ir.Label{Name: startL}}
	code = append(code, header...)
	code = append(code, &ir.IfFalseGoto{Cond: c, Target: endL})
	code = append(code, body...)
	return append(code, &ir.Goto{Target: startL}, &ir.Label{Name: endL})
}

func (ctx *Context) lowerWhile(n *ast.While) ([]ir.Instr, error) {
	startL := ctx.newLabel()
	c, header, err := ctx.lowerCond(n.Cond)
	if err != nil {
		return nil, err
	}
	endL := ctx.newLabel()
	body, err := ctx.lowerBlock(n.Body)
	if err != nil {
		return nil, err
	}
	return loop(startL, endL, header, c, body), nil
}

// lowerRepeat turns `repeat N { body }` into a while loop over a counter.
func (ctx *Context) lowerRepeat(n *ast.Repeat) ([]ir.Instr, error) {
	count, code, err := ctx.lowerExpr(n.Count)
	if err != nil {
		return nil, err
	}
	counter := ctx.newTemp()
	code = append(code, &ir.Assign{Dst: counter, Src: &ir.IntConst{Value: 0}})

	startL := ctx.newLabel()
	cond := ctx.newTemp()
	header := []ir.Instr{&ir.Assign{Dst: cond, Src: &ir.Binary{Op: "<", L: counter, R: count}}}
	endL := ctx.newLabel()

	body, err := ctx.lowerBlock(n.Body)
	if err != nil {
		return nil, err
	}
	body = append(body, &ir.Assign{Dst: counter, Src: &ir.Binary{Op: "+", L: counter, R: &ir.IntConst{Value: 1}}})
	return append(code, loop(startL, endL, header, cond, body)...), nil
}
