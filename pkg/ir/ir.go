package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is the right-hand side of an assignment
type Expr interface {
	isExpr()
	String() string
}

// Operand is an Expr with no operator: a temporary, a variable or a constant
type Operand interface {
	Expr
	isOperand()
}

// Instr is one line of three-address code
type Instr interface {
	isInstr()
	String() string
}

type Temp struct{ ID int }
type Var struct{ Name string }
type IntConst struct{ Value int64 }
type FloatConst struct {
	Value float64
	Text  string
}
type StrConst struct{ Value string }

type Binary struct {
	Op   string
	L, R Operand
}
type Not struct{ X Operand }
type Concat struct{ L, R Operand }
type Call struct {
	Func string
	Args []Operand
}
type Input struct{ Prompt Operand }

// Assign stores Src into Dst, which is always a *Temp or a *Var
type Assign struct {
	Dst Operand
	Src Expr
}
type Print struct{ X Operand }
type Label struct{ Name string }
type Goto struct{ Target string }
type IfFalseGoto struct {
	Cond   Operand
	Target string
}
type Return struct{ X Operand }

// FuncDef is a whole function. Its body is its own lowering unit: labels
// inside it are only targeted from inside it
type FuncDef struct {
	Name   string
	Params []string
	Body   []Instr
}

func (*Temp) isExpr()       {}
func (*Var) isExpr()        {}
func (*IntConst) isExpr()   {}
func (*FloatConst) isExpr() {}
func (*StrConst) isExpr()   {}
func (*Binary) isExpr()     {}
func (*Not) isExpr()        {}
func (*Concat) isExpr()     {}
func (*Call) isExpr()       {}
func (*Input) isExpr()      {}

func (*Temp) isOperand()       {}
func (*Var) isOperand()        {}
func (*IntConst) isOperand()   {}
func (*FloatConst) isOperand() {}
func (*StrConst) isOperand()   {}

func (*Assign) isInstr()      {}
func (*Print) isInstr()       {}
func (*Label) isInstr()       {}
func (*Goto) isInstr()        {}
func (*IfFalseGoto) isInstr() {}
func (*Return) isInstr()      {}
func (*FuncDef) isInstr()     {}

func (t *Temp) String() string     { return fmt.Sprintf("t%d", t.ID) }
func (v *Var) String() string      { return v.Name }
func (c *IntConst) String() string { return strconv.FormatInt(c.Value, 10) }
func (c *FloatConst) String() string {
	if c.Text != "" {
		return c.Text
	}
	s := strconv.FormatFloat(c.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIN") {
		s += ".0"
	}
	return s
}
func (c *StrConst) String() string { return strconv.Quote(c.Value) }

func (b *Binary) String() string { return fmt.Sprintf("%s %s %s", b.L, b.Op, b.R) }
func (n *Not) String() string    { return "! " + n.X.String() }
func (c *Concat) String() string { return fmt.Sprintf("str(%s) + str(%s)", c.L, c.R) }
func (c *Call) String() string   { return fmt.Sprintf("%s(%s)", c.Func, JoinOperands(c.Args)) }
func (in *Input) String() string {
	if in.Prompt == nil {
		return "input()"
	}
	return fmt.Sprintf("input(%s)", in.Prompt)
}

func (a *Assign) String() string      { return fmt.Sprintf("%s = %s", a.Dst, a.Src) }
func (p *Print) String() string       { return "PRINT " + p.X.String() }
func (l *Label) String() string       { return "LABEL " + l.Name }
func (g *Goto) String() string        { return "GOTO " + g.Target }
func (i *IfFalseGoto) String() string { return fmt.Sprintf("IF_FALSE %s GOTO %s", i.Cond, i.Target) }
func (r *Return) String() string      { return "return " + r.X.String() }
func (f *FuncDef) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "def %s(%s):", f.Name, strings.Join(f.Params, ", "))
	if len(f.Body) == 0 {
		sb.WriteString("\n    pass")
	}
	for _, line := range Lines(f.Body) {
		sb.WriteString("\n    " + line)
	}
	return sb.String()
}

func JoinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, ", ")
}

// Lines renders instrs one per line, with function bodies spread over several
func Lines(instrs []Instr) []string {
	var lines []string
	for _, in := range instrs {
		lines = append(lines, strings.Split(in.String(), "\n")...)
	}
	return lines
}

// Program is the output of lowering
type Program struct {
	Instrs []Instr
}

func (p *Program) String() string { return strings.Join(Lines(p.Instrs), "\n") }

// Operands lists the operands read by e, left to right
func Operands(e Expr) []Operand {
	switch e := e.(type) {
	case Operand: return []Operand{e}
	case *Binary: return []Operand{e.L, e.R}
	case *Not: return []Operand{e.X}
	case *Concat: return []Operand{e.L, e.R}
	case *Call: return e.Args
	case *Input:
		if e.Prompt != nil {
			return []Operand{e.Prompt}
		}
	}
	return nil
}

// Reads lists the operands an instruction reads. Function bodies are not entered
func Reads(in Instr) []Operand {
	switch in := in.(type) {
	case *Assign: return Operands(in.Src)
	case *Print: return []Operand{in.X}
	case *IfFalseGoto: return []Operand{in.Cond}
	case *Return: return []Operand{in.X}
	}
	return nil
}

// HasEffects reports whether evaluating e can do anything besides produce a value
func HasEffects(e Expr) bool {
	switch e.(type) {
	case *Call, *Input: return true
	}
	return false
}
