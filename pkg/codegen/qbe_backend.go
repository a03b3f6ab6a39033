package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
)

type qbeBackend struct {
	out   *strings.Builder
	prog  *nativeProgram
	fn    *nativeFunc
	tmp   int
	ended bool
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIL renders prog as QBE intermediate language.
func (b *qbeBackend) GenerateIL(prog *ir.Program, cfg *config.Config) (string, error) {
	np, err := buildNative(prog, "qbe")
	if err != nil {
		return "", err
	}
	var qbeIRBuilder strings.Builder
	b.out, b.prog = &qbeIRBuilder, np

	b.genData()
	b.genBoolHelper()
	for _, fn := range np.funcs {
		b.genFunc(fn)
	}
	b.genFunc(np.main)
	return qbeIRBuilder.String(), nil
}

// qbeString quotes s for a QBE data definition. Anything outside printable
// ASCII is written as an octal escape, which the assembler understands.
func qbeString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\%03o", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func (b *qbeBackend) genString(name, s string) {
	if s == "" {
		fmt.Fprintf(b.out, "data $%s = { b 0 }\n", name)
		return
	}
	fmt.Fprintf(b.out, "data $%s = { b %s, b 0 }\n", name, qbeString(s))
}

func (b *qbeBackend) genData() {
	b.genString("kid_fmt_int", "%ld\n")
	b.genString("kid_fmt_float", "%.17g\n")
	b.genString("kid_fmt_str", "%s\n")
	b.genString("kid_true", "True")
	b.genString("kid_false", "False")
	for i, s := range b.prog.strs {
		b.genString(fmt.Sprintf("kid_str%d", i), s)
	}
	if len(b.prog.main.varOrder) > 0 {
		b.out.WriteString("\n")
	}
	for _, name := range b.prog.main.varOrder {
		fmt.Fprintf(b.out, "data $kid_var_%s = { l 0 }\n", name)
	}
}

func (b *qbeBackend) genBoolHelper() {
	b.out.WriteString("\nfunction l $kid_bool(l %b) {\n@start\n\tjnz %b, @yes, @no\n@yes\n\tret $kid_true\n@no\n\tret $kid_false\n}\n")
}

func qbeType(k valueKind) string {
	if k == kindFloat {
		return "d"
	}
	return "l"
}

func qbeZero(k valueKind) string {
	if k == kindFloat {
		return "d_0"
	}
	return "0"
}

func (b *qbeBackend) temp() string {
	b.tmp++
	return fmt.Sprintf("%%.%d", b.tmp)
}

func (b *qbeBackend) label() string {
	b.tmp++
	return fmt.Sprintf(".%d", b.tmp)
}

func (b *qbeBackend) isLocal(name string) bool {
	return !b.fn.isMain && b.prog.owner(b.fn, name) == b.fn
}

func (b *qbeBackend) genFunc(f *nativeFunc) {
	b.fn, b.tmp, b.ended = f, 0, false

	if f.isMain {
		b.out.WriteString("\nexport function w $main() {\n@start\n")
	} else {
		ret := ""
		if f.ret != kindVoid {
			ret = " " + qbeType(f.ret)
		}
		params := make([]string, len(f.params))
		for i, prm := range f.params {
			params[i] = fmt.Sprintf("%s %%p_%s", qbeType(f.vars[prm]), prm)
		}
		fmt.Fprintf(b.out, "\nfunction%s $kid_%s(%s) {\n@start\n", ret, f.name, strings.Join(params, ", "))
		for _, name := range f.varOrder {
			k := f.vars[name]
			if indexOf(f.params, name) >= 0 {
				fmt.Fprintf(b.out, "\t%%v_%s =%s copy %%p_%s\n", name, qbeType(k), name)
			} else {
				fmt.Fprintf(b.out, "\t%%v_%s =%s copy %s\n", name, qbeType(k), qbeZero(k))
			}
		}
	}

	for _, in := range f.body {
		b.genInstr(in)
	}

	if !b.ended {
		switch {
		case f.isMain: b.out.WriteString("\tret 0\n")
		case f.ret == kindVoid: b.out.WriteString("\tret\n")
		default: fmt.Fprintf(b.out, "\tret %s\n", qbeZero(f.ret))
		}
	}
	b.out.WriteString("}\n")
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func (b *qbeBackend) genInstr(in ir.Instr) {
	if _, isLabel := in.(*ir.Label); b.ended && !isLabel {
		fmt.Fprintf(b.out, "@%s\n", b.label())
		b.ended = false
	}

	switch in := in.(type) {
	case *ir.Label:
		fmt.Fprintf(b.out, "@%s\n", in.Name)
		b.ended = false
	case *ir.Goto:
		fmt.Fprintf(b.out, "\tjmp @%s\n", in.Target)
		b.ended = true
	case *ir.IfFalseGoto:
		c := b.value(in.Cond, kindUnknown)
		t, next := b.temp(), b.label()
		fmt.Fprintf(b.out, "\t%s =w cnel %s, 0\n", t, c)
		fmt.Fprintf(b.out, "\tjnz %s, @%s, @%s\n@%s\n", t, next, in.Target, next)
	case *ir.Return:
		fmt.Fprintf(b.out, "\tret %s\n", b.value(in.X, b.fn.ret))
		b.ended = true
	case *ir.Print:
		b.genPrint(in)
	case *ir.Assign:
		b.genAssign(in)
	}
}

// value renders op, loading globals and widening ints when want is float.
func (b *qbeBackend) value(op ir.Operand, want valueKind) string {
	k := b.prog.operandKind(b.fn, op)
	var v string
	switch op := op.(type) {
	case *ir.IntConst: v = strconv.FormatInt(op.Value, 10)
	case *ir.FloatConst: v = "d_" + strconv.FormatFloat(op.Value, 'g', -1, 64)
	case *ir.StrConst: v = fmt.Sprintf("$kid_str%d", b.prog.intern(op.Value))
	case *ir.Temp: v = "%" + op.String()
	case *ir.Var:
		if b.isLocal(op.Name) {
			v = "%v_" + op.Name
		} else {
			v = b.temp()
			fmt.Fprintf(b.out, "\t%s =%s load%s $kid_var_%s\n", v, qbeType(k), qbeType(k), op.Name)
		}
	}
	if want == kindFloat && k == kindInt {
		t := b.temp()
		fmt.Fprintf(b.out, "\t%s =d sltof %s\n", t, v)
		return t
	}
	return v
}

func (b *qbeBackend) genPrint(in *ir.Print) {
	v := b.value(in.X, kindUnknown)
	switch b.prog.operandKind(b.fn, in.X) {
	case kindInt: fmt.Fprintf(b.out, "\tcall $printf(l $kid_fmt_int, ..., l %s)\n", v)
	case kindFloat: fmt.Fprintf(b.out, "\tcall $printf(l $kid_fmt_float, ..., d %s)\n", v)
	case kindStr: fmt.Fprintf(b.out, "\tcall $printf(l $kid_fmt_str, ..., l %s)\n", v)
	case kindBool:
		s := b.temp()
		fmt.Fprintf(b.out, "\t%s =l call $kid_bool(l %s)\n", s, v)
		fmt.Fprintf(b.out, "\tcall $printf(l $kid_fmt_str, ..., l %s)\n", s)
	}
}

func (b *qbeBackend) dstKind(dst ir.Operand) valueKind {
	switch dst := dst.(type) {
	case *ir.Temp: return b.fn.temps[dst.ID]
	case *ir.Var: return b.prog.owner(b.fn, dst.Name).vars[dst.Name]
	}
	return kindUnknown
}

func (b *qbeBackend) genAssign(in *ir.Assign) {
	k := b.dstKind(in.Dst)
	var rhs string
	switch src := in.Src.(type) {
	case ir.Operand: rhs = "copy " + b.value(src, k)
	case *ir.Binary: rhs = b.binary(src)
	case *ir.Not: rhs = "ceql " + b.value(src.X, kindUnknown) + ", 0"
	case *ir.Call:
		callee := b.prog.byName[src.Func]
		args := make([]string, len(src.Args))
		for i, a := range src.Args {
			pk := callee.vars[callee.params[i]]
			args[i] = qbeType(pk) + " " + b.value(a, pk)
		}
		call := fmt.Sprintf("call $kid_%s(%s)", callee.name, strings.Join(args, ", "))
		if callee.ret == kindVoid {
			b.out.WriteString("\t" + call + "\n")
			return
		}
		rhs = call
	}

	switch dst := in.Dst.(type) {
	case *ir.Temp:
		fmt.Fprintf(b.out, "\t%%%s =%s %s\n", dst, qbeType(k), rhs)
	case *ir.Var:
		if b.isLocal(dst.Name) {
			fmt.Fprintf(b.out, "\t%%v_%s =%s %s\n", dst.Name, qbeType(k), rhs)
			return
		}
		t := b.temp()
		fmt.Fprintf(b.out, "\t%s =%s %s\n", t, qbeType(k), rhs)
		fmt.Fprintf(b.out, "\tstore%s %s, $kid_var_%s\n", qbeType(k), t, dst.Name)
	}
}

var qbeArith = map[string]string{"+": "add", "-": "sub", "*": "mul", "/": "div"}

var qbeCompare = map[string][2]string{
	"==": {"ceql", "ceqd"}, "!=": {"cnel", "cned"},
	"<": {"csltl", "cltd"}, ">": {"csgtl", "cgtd"},
	"<=": {"cslel", "cled"}, ">=": {"csgel", "cged"},
}

func (b *qbeBackend) binary(src *ir.Binary) string {
	lk, rk := b.prog.operandKind(b.fn, src.L), b.prog.operandKind(b.fn, src.R)
	wide := kindInt
	if lk == kindFloat || rk == kindFloat {
		wide = kindFloat
	}

	switch src.Op {
	case "&&", "||":
		l, r := b.value(src.L, kindUnknown), b.value(src.R, kindUnknown)
		op := "and"
		if src.Op == "||" {
			op = "or"
		}
		return fmt.Sprintf("%s %s, %s", op, l, r)
	case "+", "-", "*", "/":
		if src.Op == "/" {
			wide = kindFloat
		}
		l, r := b.value(src.L, wide), b.value(src.R, wide)
		return fmt.Sprintf("%s %s, %s", qbeArith[src.Op], l, r)
	}

	l, r := b.value(src.L, wide), b.value(src.R, wide)
	ops := qbeCompare[src.Op]
	if wide == kindFloat {
		return fmt.Sprintf("%s %s, %s", ops[1], l, r)
	}
	return fmt.Sprintf("%s %s, %s", ops[0], l, r)
}
