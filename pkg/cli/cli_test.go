package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type parsed struct {
	Output string
	Run    bool
	Jobs   int
	Inputs []string
	Wall   bool
	NoWall bool
	Args   []string
}

func newTestSet() (*FlagSet, *parsed) {
	p := &parsed{}
	fs := NewFlagSet("test")
	fs.String(&p.Output, "output", "o", "", "Output file", "file")
	fs.Bool(&p.Run, "run", "r", false, "Run it")
	fs.Int(&p.Jobs, "jobs", "j", 1, "Workers", "n")
	fs.List(&p.Inputs, "input", "i", []string{}, "Input line", "line")
	fs.AddFlagGroup("Warning Flags", "", "warning", []FlagGroupEntry{
		{Name: "all", Prefix: "W", Usage: "Everything", Enabled: &p.Wall, Disabled: &p.NoWall},
	})
	return fs, p
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want parsed
	}{
		{
			name: "Long forms",
			args: []string{"--output=a.py", "--run", "--jobs", "4", "prog.kid"},
			want: parsed{Output: "a.py", Run: true, Jobs: 4, Inputs: []string{}, Args: []string{"prog.kid"}},
		},
		{
			name: "Short forms",
			args: []string{"-o", "a.py", "-r", "-j8", "x.kid", "y.kid"},
			want: parsed{Output: "a.py", Run: true, Jobs: 8, Inputs: []string{}, Args: []string{"x.kid", "y.kid"}},
		},
		{
			name: "Repeated list",
			args: []string{"-i", "Ada", "--input=7", "-iz"},
			want: parsed{Jobs: 1, Inputs: []string{"Ada", "7", "z"}, Args: []string{}},
		},
		{
			name: "Group switches",
			args: []string{"-Wall", "-Wno-all"},
			want: parsed{Jobs: 1, Inputs: []string{}, Wall: true, NoWall: true, Args: []string{}},
		},
		{
			name: "Explicit bool value",
			args: []string{"--run=false", "-"},
			want: parsed{Jobs: 1, Inputs: []string{}, Args: []string{"-"}},
		},
		{
			name: "Double dash ends flags",
			args: []string{"--", "-r", "--output"},
			want: parsed{Jobs: 1, Inputs: []string{}, Args: []string{"-r", "--output"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, p := newTestSet()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			p.Args = fs.Args()
			if diff := cmp.Diff(tt.want, *p); diff != "" {
				t.Errorf("parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"Unknown long flag", []string{"--nope"}, "unknown flag: --nope"},
		{"Unknown short flag", []string{"-z"}, "unknown flag: -z"},
		{"Missing value", []string{"--output"}, "flag needs an argument: --output"},
		{"Bad integer", []string{"-j", "many"}, "-j: invalid integer value 'many'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, _ := newTestSet()
			err := fs.Parse(tt.args)
			if err == nil || err.Error() != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestAppRun(t *testing.T) {
	var got []string
	app := NewApp("kidc")
	app.Synopsis = "[options] <input.kid> ..."
	var stdout, stderr bytes.Buffer
	app.Stdout, app.Stderr = &stdout, &stderr
	run := false
	app.FlagSet.Bool(&run, "run", "r", false, "Run it")
	app.Action = func(args []string) error {
		got = args
		return nil
	}

	if err := app.Run([]string{"-r", "a.kid"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !run || len(got) != 1 || got[0] != "a.kid" {
		t.Errorf("got run=%v args=%v", run, got)
	}
}

func TestAppRunBadFlag(t *testing.T) {
	app := NewApp("kidc")
	app.Synopsis = "[options] <input.kid> ..."
	var stderr bytes.Buffer
	app.Stderr = &stderr
	called := false
	app.Action = func([]string) error { called = true; return nil }

	err := app.Run([]string{"--bogus"})
	if err == nil || called {
		t.Fatalf("expected a parse error before the action runs")
	}
	want := "unknown flag: --bogus\nUsage: kidc [options] <input.kid> ...\nRun 'kidc --help' for all available options and flags.\n"
	if diff := cmp.Diff(want, stderr.String()); diff != "" {
		t.Errorf("usage mismatch (-want +got):\n%s", diff)
	}
}

func TestAppActionError(t *testing.T) {
	app := NewApp("kidc")
	boom := errors.New("boom")
	app.Action = func([]string) error { return boom }
	if err := app.Run(nil); !errors.Is(err, boom) {
		t.Errorf("got %v, want the action's error", err)
	}
}

func TestWriteHelp(t *testing.T) {
	fs, _ := newTestSet()
	app := NewApp("kidc")
	app.FlagSet = fs
	app.Synopsis = "[options] <input.kid> ..."
	app.Description = "A compiler for the kid teaching language."
	app.Authors = []string{"xplshn"}

	var buf bytes.Buffer
	app.writeHelp(&buf, 100)
	out := buf.String()
	for _, want := range []string{
		"kidc [options] <input.kid> ...",
		"A compiler for the kid teaching language.",
		"-o, --output <file>",
		"-r, --run",
		"|1|",
		"-W<warning>",
		"-Wno-<warning>",
		"|-|",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("help is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "--Wall") {
		t.Errorf("group switches should not be listed as options:\n%s", out)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("the quick brown fox jumps", 10)
	want := []string{"the quick", "brown fox", "jumps"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrap mismatch (-want +got):\n%s", diff)
	}
}
