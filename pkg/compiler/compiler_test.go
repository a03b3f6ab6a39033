package compiler

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/sandbox"
	"github.com/xplshn/kidc/pkg/util"
)

func compileRun(t *testing.T, src, target string, input ...string) string {
	t.Helper()
	cfg := config.NewConfig()
	if err := cfg.SetBackend(target); err != nil {
		t.Fatalf("SetBackend: %v", err)
	}
	res, err := Compile("test.kid", []byte(src), cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	out, err := Run(context.Background(), res, input)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Err != nil {
		t.Fatalf("execution failed: %v\noutput so far:\n%s", out.Err, out.Output)
	}
	return out.Output
}

func TestCompileAndRun(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		input []string
		want  string
	}{
		{
			name: "If else",
			src:  `x is 3; check (x > 2) { say("big"); } otherwise { say("small"); }`,
			want: "big\n",
		},
		{
			name: "Countdown",
			src:  "count is 3; keep (count > 0) { say(count); count is count - 1; }",
			want: "3\n2\n1\n",
		},
		{
			name: "Repeat",
			src:  `repeat 2 { say("hip"); } say("hooray");`,
			want: "hip\nhip\nhooray\n",
		},
		{
			name: "Repeat zero times",
			src:  `repeat 0 { say("never"); } say("done");`,
			want: "done\n",
		},
		{
			name: "Functions",
			src:  "create add(a, b) { give a + b; } create square(n) { give n * n; } say(square(add(1, 2)));",
			want: "9\n",
		},
		{
			name: "Recursion",
			src:  "create fib(n) { check (n < 2) { give n; } give fib(n - 1) + fib(n - 2); } say(fib(10));",
			want: "55\n",
		},
		{
			name: "Concatenation",
			src:  `n is 4; say("n is " + n); say(1 + 2 + "!");`,
			want: "n is 4\n3!\n",
		},
		{
			name: "Division",
			src:  "say(7 / 2); say(6 / 3);",
			want: "3.5\n2.0\n",
		},
		{
			name: "Int condition",
			src:  "n is 2; keep (n) { say(n); n is n - 1; }",
			want: "2\n1\n",
		},
		{
			name: "Logic",
			src:  "a is 3; check (a > 1 && !(a == 2) || a < 0) { say(\"yes\"); }",
			want: "yes\n",
		},
		{
			name:  "Input",
			src:   `name is ask("Name? "); say("Hi " + name);`,
			input: []string{"Ada"},
			want:  "Hi Ada\n",
		},
		{
			name: "Input runs out",
			src:  `a is ask(); say("[" + a + "]");`,
			want: "[]\n",
		},
		{
			name: "Empty program",
			src:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileRun(t, tt.src, "structured", tt.input...)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunReemitsOtherTargets(t *testing.T) {
	src := "count is 3; keep (count > 0) { say(count); count is count - 1; }"
	for _, target := range []string{"linear", "llvm"} {
		t.Run(target, func(t *testing.T) {
			if got := compileRun(t, src, target); got != "3\n2\n1\n" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestRunKeepsEvaluationOrder(t *testing.T) {
	src := `create f() { say("side"); give 1; } b is 0; x is 1 / b + f();`
	res, err := Compile("order.kid", []byte(src), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	out, err := Run(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	e, ok := out.Err.(*sandbox.Error)
	if !ok || e.Kind != "ZeroDivisionError" {
		t.Fatalf("expected the division to fail first, got %v", out.Err)
	}
	if out.Output != "" {
		t.Errorf("f ran before the division: got output %q", out.Output)
	}
}

func TestCompileQBEWithDefaults(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the qbe target shells out to a system qbe on windows")
	}
	cfg := config.NewConfig()
	if err := cfg.SetBackend("qbe"); err != nil {
		t.Fatalf("SetBackend: %v", err)
	}
	res, err := Compile("q.kid", []byte("count is 3; keep (count > 0) { say(count); count is count - 1; }"), cfg)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !strings.Contains(res.Output, "main:") {
		t.Errorf("expected assembly with a main symbol, got:\n%s", res.Output)
	}
}

func TestCompileOutput(t *testing.T) {
	src := `x is 3; check (x > 2) { say("big"); } otherwise { say("small"); }`
	res, err := Compile("a.kid", []byte(src), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := "x = 3\nif x > 2:\n    print(\"big\")\nelse:\n    print(\"small\")\n"
	if diff := cmp.Diff(want, res.Output); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if res.Backend != "structured" || res.AST == nil || res.Info == nil || res.IR == nil {
		t.Errorf("incomplete result: %+v", res)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target string
		kind   util.Kind
		msg    string
	}{
		{
			name: "Undefined function",
			src:  "say(foo(1));",
			kind: util.NameError,
			msg:  "NameError: Oops! You tried to call the function 'foo', but it is not defined.",
		},
		{
			name: "Arity mismatch",
			src:  "create add(a, b) { give a + b; } say(add(1));",
			kind: util.TypeError,
			msg:  "TypeError: Oops! The function 'add' expects 2 arguments, but got 1.",
		},
		{
			name: "Syntax error",
			src:  "x is 3",
			kind: util.SyntaxError,
			msg:  "SyntaxError: Syntax error at EOF: expected ';'",
		},
		{
			name:   "Function on the linear target",
			src:    "create f() { give 1; } say(f());",
			target: "linear",
			kind:   util.UnsupportedConstructError,
			msg:    "UnsupportedConstructError: the linear target cannot express function 'f'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			if tt.target != "" {
				if err := cfg.SetBackend(tt.target); err != nil {
					t.Fatalf("SetBackend: %v", err)
				}
			}
			res, err := Compile("bad.kid", []byte(tt.src), cfg)
			if err == nil {
				t.Fatalf("expected an error, got output:\n%s", res.Output)
			}
			if !util.IsKind(err, tt.kind) || err.Error() != tt.msg {
				t.Errorf("got %q, want %q", err, tt.msg)
			}
			if res == nil {
				t.Fatalf("expected a partial result")
			}
			if tt.kind == util.NameError || tt.kind == util.TypeError {
				if res.IR != nil {
					t.Errorf("no IR should be produced after a semantic error")
				}
			}
			if _, err := Run(context.Background(), res, nil); tt.target == "" && err == nil {
				t.Errorf("running an unfinished job should fail")
			}
		})
	}
}

func TestReportedPosition(t *testing.T) {
	src := "x is 1;\nsay(y);"
	res, err := Compile("pos.kid", []byte(src), nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var buf bytes.Buffer
	res.Sources.Report(&buf, err)
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasPrefix(first, "pos.kid:2:5: ") {
		t.Errorf("got %q, want a pos.kid:2:5 location", first)
	}
	if !strings.Contains(buf.String(), "say(y);") {
		t.Errorf("report should quote the source line:\n%s", buf.String())
	}
}

func TestWarningsCollected(t *testing.T) {
	res, err := Compile("w.kid", []byte("create unused() { give 1; }"), nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Name != "uncalled-function" {
		t.Errorf("got warnings %+v", res.Warnings)
	}
}
