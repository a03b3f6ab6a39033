package typeChecker

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/lexer"
	"github.com/xplshn/kidc/pkg/parser"
	"github.com/xplshn/kidc/pkg/util"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize([]rune(src), 0, config.NewConfig())
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	prog, err := parser.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return prog
}

func TestCheckAccepts(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"Arithmetic", "x is 1 + 2 * 3; y is x / 2; say(y - 1.5);"},
		{"Concatenation", "name is \"Ada\"; say(\"Hi \" + name + \"!\");"},
		{"Number to string", "say(\"n = \" + 3);"},
		{"Globals seen by functions", "g is 2; create f() { give g; } say(f());"},
		{"Recursion", "create fact(n) { check (n < 2) { give 1; } give n * fact(n - 1); } say(fact(5));"},
		{"Mutual recursion", "create a(n) { give b(n); } create b(n) { give a(n); } say(a(1));"},
		{"Logical", "x is 3; check (x > 1 && !(x == 2) || x < 0) { say(x); }"},
		{"Int condition", "x is 3; keep (x) { x is x - 1; }"},
		{"Input is a string", "n is ask(\"Name?\"); say(\"Hi \" + n);"},
		{"Repeat", "repeat 2 + 1 { say(1); }"},
		{"Empty program", ""},
		{"Uncalled body is not checked", "create f() { say(nowhere); }"},
		{"Same '+' adds ints and floats", "create add(a, b) { give a + b; } say(add(1, 2)); say(add(1.5, 2));"},
		{"Same '+' always joins text", "create tag(n) { give \"#\" + n; } say(tag(1)); say(tag(\"x\"));"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTypeChecker(config.NewConfig()).Check(parse(t, tt.src)); err != nil {
				t.Errorf("Check failed: %v", err)
			}
		})
	}
}

func TestCheckRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind util.Kind
		msg  string
	}{
		{
			name: "Undefined function",
			src:  "say(foo(1));",
			kind: util.NameError,
			msg:  "Oops! You tried to call the function 'foo', but it is not defined.",
		},
		{
			name: "Arity mismatch",
			src:  "create add(a, b) { give a + b; } say(add(1));",
			kind: util.TypeError,
			msg:  "Oops! The function 'add' expects 2 arguments, but got 1.",
		},
		{
			name: "Plus joins text in one call and adds in another",
			src:  "create f(a, b) { give a + b; } s is f(\"x\", 1); y is f(1, 2) - 1; say(y);",
			kind: util.TypeError,
			msg:  "Oops! This '+' joins text in one call and adds numbers in another.",
		},
		{
			name: "Plus adds in one call and joins text in another",
			src:  "create f(a, b) { give a + b; } y is f(1, 2); s is f(\"x\", 1);",
			kind: util.TypeError,
			msg:  "Oops! This '+' joins text in one call and adds numbers in another.",
		},
		{
			name: "Undefined variable",
			src:  "say(y);",
			kind: util.NameError,
			msg:  "Oops! You forgot to create the variable 'y' before using it.",
		},
		{
			name: "Function locals stay local",
			src:  "create f() { y is 1; give y; } z is f(); say(y);",
			kind: util.NameError,
			msg:  "Oops! You forgot to create the variable 'y' before using it.",
		},
		{
			name: "Parameters stay local",
			src:  "create f(a) { give a; } say(f(1)); say(a);",
			kind: util.NameError,
			msg:  "Oops! You forgot to create the variable 'a' before using it.",
		},
		{
			name: "Caller locals are not visible",
			src:  "create g() { give v; } create f() { v is 1; give g(); } say(f());",
			kind: util.NameError,
			msg:  "Oops! You forgot to create the variable 'v' before using it.",
		},
		{
			name: "String minus number",
			src:  "x is \"a\" - 1;",
			kind: util.TypeError,
			msg:  "Oops! You can only use numbers with '-'. Got types string and int.",
		},
		{
			name: "Comparing different types",
			src:  "x is \"a\" < 1;",
			kind: util.TypeError,
			msg:  "Comparison '<' requires operands of the same type",
		},
		{
			name: "String condition",
			src:  "check (\"yes\") { say(1); }",
			kind: util.ValidationError,
			msg:  "Condition in 'check' must evaluate to an integer or boolean.",
		},
		{
			name: "Logical on numbers",
			src:  "x is 1 && 2;",
			kind: util.TypeError,
			msg:  "Logical operator '&&' requires boolean operands, got int and int",
		},
		{
			name: "Not on a string",
			src:  "x is !\"a\";",
			kind: util.TypeError,
			msg:  "NOT operation requires boolean, got string",
		},
		{
			name: "Repeat count",
			src:  "repeat \"3\" { say(1); }",
			kind: util.TypeError,
			msg:  "Repeat count must be an integer, got string",
		},
		{
			name: "Give at top level",
			src:  "give 1;",
			kind: util.ValidationError,
			msg:  "'give' can only be used inside a function",
		},
		{
			name: "Printing nothing",
			src:  "create f() { say(1); } say(f());",
			kind: util.TypeError,
			msg:  "Cannot print value of type void",
		},
		{
			name: "Duplicate function",
			src:  "create f() { give 1; } create f() { give 2; }",
			kind: util.NameError,
			msg:  "Oops! The function 'f' is already defined.",
		},
		{
			name: "Called body is checked",
			src:  "create f() { say(nowhere); } f();",
			kind: util.NameError,
			msg:  "Oops! You forgot to create the variable 'nowhere' before using it.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := NewTypeChecker(config.NewConfig()).Check(parse(t, tt.src))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if info != nil {
				t.Errorf("expected no info on failure")
			}
			ce, ok := err.(*util.CompileError)
			if !ok {
				t.Fatalf("expected *util.CompileError, got %T", err)
			}
			if ce.Kind != tt.kind {
				t.Errorf("got kind %s, want %s", ce.Kind, tt.kind)
			}
			if ce.Msg != tt.msg {
				t.Errorf("got message %q, want %q", ce.Msg, tt.msg)
			}
		})
	}
}

func TestConcatRecorded(t *testing.T) {
	prog := parse(t, "n is 1; s is \"a\" + n; m is n + 2;")
	info, err := NewTypeChecker(config.NewConfig()).Check(prog)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	concat := prog.Stmts[1].(*ast.Assign).Value.(*ast.BinaryOp)
	sum := prog.Stmts[2].(*ast.Assign).Value.(*ast.BinaryOp)
	if !info.Concat[concat] {
		t.Errorf("\"a\" + n should be recorded as a concatenation")
	}
	if info.Concat[sum] {
		t.Errorf("n + 2 should not be recorded as a concatenation")
	}
}

func TestConcatThroughParameter(t *testing.T) {
	prog := parse(t, "create greet(who) { give \"Hi \" + who; } say(greet(\"Ada\")); say(greet(3));")
	info, err := NewTypeChecker(config.NewConfig()).Check(prog)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	plus := prog.Stmts[0].(*ast.FuncDecl).Body[0].(*ast.Return).X.(*ast.BinaryOp)
	if !info.Concat[plus] {
		t.Errorf("the '+' inside greet should be recorded as a concatenation")
	}
}

func TestCondTypes(t *testing.T) {
	prog := parse(t, "x is 3; keep (x) { x is x - 1; } check (x == 0) { say(x); }")
	info, err := NewTypeChecker(config.NewConfig()).Check(prog)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	loop := prog.Stmts[1].(*ast.While)
	branch := prog.Stmts[2].(*ast.If)
	if got := info.CondTypes[loop.Cond]; got != ast.TypeInt {
		t.Errorf("keep condition: got %s, want int", got)
	}
	if got := info.CondTypes[branch.Cond]; got != ast.TypeBool {
		t.Errorf("check condition: got %s, want bool", got)
	}
}

func TestFreshTablesPerJob(t *testing.T) {
	src := "create f(a) { b is a; give b; } say(f(1));"
	for i := 0; i < 2; i++ {
		if _, err := NewTypeChecker(config.NewConfig()).Check(parse(t, src)); err != nil {
			t.Fatalf("run %d: Check failed: %v", i, err)
		}
	}

	// A second checker must not see names bound by the first.
	first := NewTypeChecker(config.NewConfig())
	if _, err := first.Check(parse(t, "x is 1;")); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	_, err := NewTypeChecker(config.NewConfig()).Check(parse(t, "say(x);"))
	if !util.IsKind(err, util.NameError) {
		t.Errorf("expected a NameError, got %v", err)
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		flags []string
		want  []string
	}{
		{
			name: "Uncalled function",
			src:  "create f() { give 1; }",
			want: []string{"uncalled-function: Function 'f' is never called, so its body was not checked"},
		},
		{
			name: "Unreachable after give",
			src:  "create f() { give 1; say(2); } say(f());",
			want: []string{"unreachable-code: Unreachable code after 'give'"},
		},
		{
			name:  "Int condition when enabled",
			src:   "x is 1; check (x) { say(x); }",
			flags: []string{"-Wint-condition"},
			want:  []string{"int-condition: Integer used as the condition of 'check'; nonzero counts as true"},
		},
		{
			name: "Int condition off by default",
			src:  "x is 1; check (x) { say(x); }",
		},
		{
			name:  "Implicit str",
			src:   "say(\"n=\" + 1);",
			flags: []string{"-Wimplicit-str"},
			want:  []string{"implicit-str: '+' turns a number into a string here"},
		},
		{
			name:  "Silenced by -Wno-all",
			src:   "create f() { give 1; }",
			flags: []string{"-Wno-all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			for _, f := range tt.flags {
				if err := cfg.ApplyFlag(f); err != nil {
					t.Fatalf("ApplyFlag(%s): %v", f, err)
				}
			}
			tc := NewTypeChecker(cfg)
			if _, err := tc.Check(parse(t, tt.src)); err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			var got []string
			for _, w := range tc.Warnings {
				got = append(got, w.Name+": "+w.Msg)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScope(t *testing.T) {
	global := NewScope(nil)
	global.Define("x", ast.TypeInt)
	local := NewScope(global)
	local.Define("x", ast.TypeString)
	local.Define("x", ast.TypeFloat)

	if sym, _ := local.Lookup("x"); sym.Type != ast.TypeFloat {
		t.Errorf("local x: got %s, want float", sym.Type)
	}
	if sym, _ := global.Lookup("x"); sym.Type != ast.TypeInt {
		t.Errorf("global x: got %s, want int", sym.Type)
	}
	if _, ok := local.Lookup("y"); ok {
		t.Errorf("y should not resolve")
	}
}
