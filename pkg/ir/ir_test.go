package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestString(t *testing.T) {
	x, t1 := &Var{Name: "x"}, &Temp{ID: 1}
	tests := []struct {
		name string
		in   interface{ String() string }
		want string
	}{
		{"Int", &IntConst{Value: -4}, "-4"},
		{"Whole float", &FloatConst{Value: 2}, "2.0"},
		{"Float keeps source text", &FloatConst{Value: 0.5, Text: "0.50"}, "0.50"},
		{"Quoted string", &StrConst{Value: "say \"hi\"\n"}, `"say \"hi\"\n"`},
		{"Binary", &Assign{Dst: t1, Src: &Binary{Op: "<=", L: x, R: &IntConst{Value: 3}}}, "t1 = x <= 3"},
		{"Not", &Assign{Dst: t1, Src: &Not{X: x}}, "t1 = ! x"},
		{"Concat", &Assign{Dst: t1, Src: &Concat{L: &StrConst{Value: "a"}, R: x}}, `t1 = str("a") + str(x)`},
		{"Call", &Assign{Dst: t1, Src: &Call{Func: "f", Args: []Operand{x, t1}}}, "t1 = f(x, t1)"},
		{"Input without prompt", &Assign{Dst: x, Src: &Input{}}, "x = input()"},
		{"Print", &Print{X: t1}, "PRINT t1"},
		{"Jumps", &IfFalseGoto{Cond: t1, Target: "L2"}, "IF_FALSE t1 GOTO L2"},
		{"Return", &Return{X: x}, "return x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLines(t *testing.T) {
	prog := &Program{Instrs: []Instr{
		&FuncDef{Name: "f", Params: []string{"a"}, Body: []Instr{&Return{X: &Var{Name: "a"}}}},
		&FuncDef{Name: "g"},
		&Label{Name: "L1"},
		&Goto{Target: "L1"},
	}}
	want := []string{"def f(a):", "    return a", "def g():", "    pass", "LABEL L1", "GOTO L1"}
	if diff := cmp.Diff(want, Lines(prog.Instrs)); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestReads(t *testing.T) {
	x, y, t1 := &Var{Name: "x"}, &Var{Name: "y"}, &Temp{ID: 1}
	tests := []struct {
		name string
		in   Instr
		want []string
	}{
		{"Binary", &Assign{Dst: t1, Src: &Binary{Op: "+", L: x, R: y}}, []string{"x", "y"}},
		{"Copy", &Assign{Dst: x, Src: t1}, []string{"t1"}},
		{"Input with prompt", &Assign{Dst: x, Src: &Input{Prompt: y}}, []string{"y"}},
		{"Input", &Assign{Dst: x, Src: &Input{}}, nil},
		{"Branch", &IfFalseGoto{Cond: t1, Target: "L1"}, []string{"t1"}},
		{"Label", &Label{Name: "L1"}, nil},
		{"Function", &FuncDef{Name: "f", Body: []Instr{&Print{X: x}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, op := range Reads(tt.in) {
				got = append(got, op.String())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("reads mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHasEffects(t *testing.T) {
	if !HasEffects(&Call{Func: "f"}) || !HasEffects(&Input{}) {
		t.Errorf("calls and input have effects")
	}
	if HasEffects(&Binary{Op: "+", L: &IntConst{Value: 1}, R: &IntConst{Value: 2}}) {
		t.Errorf("arithmetic has no effects")
	}
}
