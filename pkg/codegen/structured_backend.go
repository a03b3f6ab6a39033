package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

type structuredBackend struct{}

func NewStructuredBackend() Backend { return &structuredBackend{} }

func (b *structuredBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	text, err := EmitStructured(prog.Instrs, cfg)
	if err != nil {
		return nil, err
	}
	return textBuffer(text), nil
}

// EmitStructured rebuilds if/else and while blocks from the label and jump
// skeleton produced by Context.GenerateIR and renders the result as an
// indentation-scoped script.
func EmitStructured(instrs []ir.Instr, cfg *config.Config) (string, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	e := &structuredEmitter{cfg: cfg, defs: make(map[int]int), uses: make(map[int]int)}
	e.count(instrs)
	if err := e.emitBlock(instrs, 0); err != nil {
		return "", err
	}
	return strings.Join(e.lines, "\n"), nil
}

// Python operator precedence, loosest first.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCmp
	precAdd
	precMul
	precAtom
)

var pyOps = map[string]struct {
	text string
	prec int
}{
	"||": {"or", precOr}, "&&": {"and", precAnd},
	"==": {"==", precCmp}, "!=": {"!=", precCmp}, "<": {"<", precCmp},
	">": {">", precCmp}, "<=": {"<=", precCmp}, ">=": {">=", precCmp},
	"+": {"+", precAdd}, "-": {"-", precAdd},
	"*": {"*", precMul}, "/": {"/", precMul},
}

type pyExpr struct {
	text string
	prec int
}

func (x pyExpr) paren(cond bool) string {
	if cond {
		return "(" + x.text + ")"
	}
	return x.text
}

// cursor walks one lowering unit. Labels are unique inside a unit, so
// terminators are located by name.
type cursor struct {
	instrs []ir.Instr
	pos    int
}

func (c *cursor) done() bool     { return c.pos >= len(c.instrs) }
func (c *cursor) peek() ir.Instr { return c.instrs[c.pos] }
func (c *cursor) next() ir.Instr {
	in := c.instrs[c.pos]
	c.pos++
	return in
}

// find returns the index of the definition of label name at or after from, or -1.
func (c *cursor) find(name string, from int) int {
	for i := from; i < len(c.instrs); i++ {
		if l, ok := c.instrs[i].(*ir.Label); ok && l.Name == name {
			return i
		}
	}
	return -1
}

type whileLoop struct {
	header []*ir.Assign
	test   *ir.IfFalseGoto
	body   []ir.Instr
	end    int
}

// matchWhile recognizes LABEL L, temp assignments, IF_FALSE t GOTO E, body,
// GOTO L, LABEL E at the cursor.
func (c *cursor) matchWhile() (whileLoop, bool) {
	start, ok := c.peek().(*ir.Label)
	if !ok {
		return whileLoop{}, false
	}
	var w whileLoop
	j := c.pos + 1
	for ; j < len(c.instrs); j++ {
		a, ok := c.instrs[j].(*ir.Assign)
		if !ok {
			break
		}
		if _, ok := a.Dst.(*ir.Temp); !ok {
			break
		}
		w.header = append(w.header, a)
	}
	if j >= len(c.instrs) {
		return whileLoop{}, false
	}
	if w.test, ok = c.instrs[j].(*ir.IfFalseGoto); !ok {
		return whileLoop{}, false
	}
	if n := len(w.header); n > 0 {
		t, ok := w.test.Cond.(*ir.Temp)
		if !ok || t.ID != w.header[n-1].Dst.(*ir.Temp).ID {
			return whileLoop{}, false
		}
	}
	k := c.find(w.test.Target, j+1)
	if k < 0 {
		return whileLoop{}, false
	}
	if g, ok := c.instrs[k-1].(*ir.Goto); !ok || g.Target != start.Name {
		return whileLoop{}, false
	}
	w.body, w.end = c.instrs[j+1:k-1], k+1
	return w, true
}

type heldTemp struct {
	name  string
	expr  pyExpr
	reads map[string]bool
}

// region holds folded temporaries that have been defined but not yet used.
// It never spans a label.
type region struct {
	held  map[int]*heldTemp
	order []int
}

func newRegion() *region { return &region{held: make(map[int]*heldTemp)} }

func (r *region) hold(id int, h *heldTemp) {
	r.held[id] = h
	r.order = append(r.order, id)
}

func (r *region) take(id int) (*heldTemp, bool) {
	h, ok := r.held[id]
	if ok {
		delete(r.held, id)
	}
	return h, ok
}

type structuredEmitter struct {
	cfg        *config.Config
	defs, uses map[int]int
	lines      []string
}

func (e *structuredEmitter) count(instrs []ir.Instr) {
	for _, in := range instrs {
		if f, ok := in.(*ir.FuncDef); ok {
			e.count(f.Body)
			continue
		}
		if a, ok := in.(*ir.Assign); ok {
			if t, ok := a.Dst.(*ir.Temp); ok {
				e.defs[t.ID]++
			}
		}
		for _, op := range ir.Reads(in) {
			if t, ok := op.(*ir.Temp); ok {
				e.uses[t.ID]++
			}
		}
	}
}

func (e *structuredEmitter) inlinable(t *ir.Temp, src ir.Expr) bool {
	return e.cfg.IsFeatureEnabled(config.FeatInlineTemps) &&
		e.defs[t.ID] == 1 && e.uses[t.ID] == 1 && !ir.HasEffects(src)
}

func (e *structuredEmitter) line(depth int, s string) {
	e.lines = append(e.lines, strings.Repeat(" ", e.cfg.IndentWidth*depth)+s)
}

// flush writes out every held temporary, or only those reading variable name
// when name is not empty.
func (e *structuredEmitter) flush(r *region, depth int, name string) {
	kept := r.order[:0]
	for _, id := range r.order {
		h, ok := r.held[id]
		if !ok {
			continue
		}
		if name != "" && !h.reads[name] {
			kept = append(kept, id)
			continue
		}
		delete(r.held, id)
		e.line(depth, h.name+" = "+h.expr.text)
	}
	r.order = kept
}

func (e *structuredEmitter) operand(op ir.Operand, r *region, reads map[string]bool) pyExpr {
	switch op := op.(type) {
	case *ir.Temp:
		if h, ok := r.take(op.ID); ok {
			for v := range h.reads {
				if reads != nil {
					reads[v] = true
				}
			}
			return h.expr
		}
	case *ir.Var:
		if reads != nil {
			reads[op.Name] = true
		}
	}
	return pyExpr{op.String(), precAtom}
}

func (e *structuredEmitter) render(x ir.Expr, r *region, reads map[string]bool) pyExpr {
	switch x := x.(type) {
	case ir.Operand: return e.operand(x, r, reads)
	case *ir.Binary:
		l, rt := e.operand(x.L, r, reads), e.operand(x.R, r, reads)
		op, ok := pyOps[x.Op]
		if !ok {
			op.text, op.prec = x.Op, precCmp
		}
		lp, rp := l.prec < op.prec, rt.prec <= op.prec
		if op.prec == precCmp {
			lp = l.prec <= precCmp
		}
		return pyExpr{l.paren(lp) + " " + op.text + " " + rt.paren(rp), op.prec}
	case *ir.Not:
		v := e.operand(x.X, r, reads)
		return pyExpr{"not " + v.paren(v.prec < precAtom), precNot}
	case *ir.Concat:
		l, rt := e.operand(x.L, r, reads), e.operand(x.R, r, reads)
		return pyExpr{"str(" + l.text + ") + str(" + rt.text + ")", precAdd}
	case *ir.Call:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = e.operand(a, r, reads).text
		}
		return pyExpr{x.Func + "(" + strings.Join(args, ", ") + ")", precAtom}
	case *ir.Input:
		if x.Prompt == nil {
			return pyExpr{"input()", precAtom}
		}
		return pyExpr{"input(" + e.operand(x.Prompt, r, reads).text + ")", precAtom}
	}
	return pyExpr{x.String(), precAtom}
}

func (e *structuredEmitter) emitBlock(instrs []ir.Instr, depth int) error {
	cur := &cursor{instrs: instrs}
	r := newRegion()
	for !cur.done() {
		switch in := cur.peek().(type) {
		case *ir.Label:
			e.flush(r, depth, "")
			if w, ok := cur.matchWhile(); ok {
				cur.pos = w.end
				if err := e.emitWhile(w, depth); err != nil {
					return err
				}
				continue
			}
			e.line(depth, "# LABEL "+in.Name)
			cur.next()
		case *ir.Goto:
			e.flush(r, depth, "")
			e.line(depth, "# GOTO "+in.Target)
			cur.next()
		case *ir.IfFalseGoto:
			if err := e.emitIf(cur, r, depth); err != nil {
				return err
			}
		case *ir.FuncDef:
			e.flush(r, depth, "")
			cur.next()
			e.line(depth, fmt.Sprintf("def %s(%s):", in.Name, strings.Join(in.Params, ", ")))
			if err := e.emitBody(in.Body, depth+1); err != nil {
				return err
			}
		default:
			e.emitSimple(cur.next(), r, depth)
		}
	}
	e.flush(r, depth, "")
	return nil
}

// emitBody emits a nested block, adding pass when it has no statement.
func (e *structuredEmitter) emitBody(instrs []ir.Instr, depth int) error {
	mark := len(e.lines)
	if err := e.emitBlock(instrs, depth); err != nil {
		return err
	}
	for _, l := range e.lines[mark:] {
		if !strings.HasPrefix(strings.TrimSpace(l), "#") {
			return nil
		}
	}
	e.line(depth, "pass")
	return nil
}

func (e *structuredEmitter) emitSimple(in ir.Instr, r *region, depth int) {
	switch in := in.(type) {
	case *ir.Assign:
		reads := make(map[string]bool)
		src := e.render(in.Src, r, reads)
		// Held temps were computed earlier in the source and must not move
		// past a call or input.
		if ir.HasEffects(in.Src) {
			e.flush(r, depth, "")
		}
		if t, ok := in.Dst.(*ir.Temp); ok && e.inlinable(t, in.Src) {
			r.hold(t.ID, &heldTemp{name: t.String(), expr: src, reads: reads})
			return
		}
		if v, ok := in.Dst.(*ir.Var); ok {
			e.flush(r, depth, v.Name)
		}
		e.line(depth, in.Dst.String()+" = "+src.text)
	case *ir.Print:
		e.line(depth, "print("+e.operand(in.X, r, nil).text+")")
	case *ir.Return:
		e.line(depth, "return "+e.operand(in.X, r, nil).text)
	}
}

func (e *structuredEmitter) emitIf(cur *cursor, r *region, depth int) error {
	test := cur.next().(*ir.IfFalseGoto)
	start := cur.pos
	k := cur.find(test.Target, start)
	if k < 0 {
		return util.Errorf(util.StructuralError, token.Token{}, "conditional jump to '%s' has no matching label", test.Target)
	}
	then, end := cur.instrs[start:k], k
	var els []ir.Instr
	if k > start {
		if g, ok := cur.instrs[k-1].(*ir.Goto); ok {
			m := cur.find(g.Target, k+1)
			if m < 0 {
				return util.Errorf(util.StructuralError, token.Token{}, "else branch starting at '%s' never reaches label '%s'", test.Target, g.Target)
			}
			then, els, end = cur.instrs[start:k-1], cur.instrs[k+1:m], m
		}
	}
	cur.pos = end + 1

	cond := e.operand(test.Cond, r, nil)
	e.flush(r, depth, "")
	e.line(depth, "if "+cond.text+":")
	if err := e.emitBody(then, depth+1); err != nil {
		return err
	}
	if len(els) == 0 {
		return nil
	}
	e.line(depth, "else:")
	return e.emitBody(els, depth+1)
}

// foldable reports whether a loop header can be rendered as a single expression.
func (e *structuredEmitter) foldable(header []*ir.Assign) bool {
	if len(header) == 1 {
		return true
	}
	if !e.cfg.IsFeatureEnabled(config.FeatInlineTemps) {
		return false
	}
	for _, a := range header {
		id := a.Dst.(*ir.Temp).ID
		if ir.HasEffects(a.Src) || e.defs[id] != 1 || e.uses[id] != 1 {
			return false
		}
	}
	return true
}

func (e *structuredEmitter) emitWhile(w whileLoop, depth int) error {
	r := newRegion()
	if !e.foldable(w.header) {
		e.line(depth, "while True:")
		for _, a := range w.header {
			e.emitSimple(a, r, depth+1)
		}
		cond := e.operand(w.test.Cond, r, nil)
		e.flush(r, depth+1, "")
		e.line(depth+1, "if not "+cond.paren(cond.prec < precAtom)+":")
		e.line(depth+2, "break")
		return e.emitBlock(w.body, depth+1)
	}

	for _, a := range w.header {
		t := a.Dst.(*ir.Temp)
		r.hold(t.ID, &heldTemp{name: t.String(), expr: e.render(a.Src, r, nil)})
	}
	cond := e.operand(w.test.Cond, r, nil)
	e.line(depth, "while "+cond.text+":")
	return e.emitBody(w.body, depth+1)
}
