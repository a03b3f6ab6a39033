package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/kidc/pkg/cli"
	"modernc.org/libqbe"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.BackendName != "structured" || cfg.IndentWidth != 4 {
		t.Errorf("got backend %q indent %d", cfg.BackendName, cfg.IndentWidth)
	}
	for _, ft := range []Feature{FeatComments, FeatInlineTemps, FeatIntTruthiness} {
		if !cfg.IsFeatureEnabled(ft) {
			t.Errorf("feature %s should be on by default", cfg.Features[ft].Name)
		}
	}
	if cfg.IsWarningEnabled(WarnIntCondition) || cfg.IsWarningEnabled(WarnImplicitStr) {
		t.Errorf("int-condition and implicit-str should be off by default")
	}
	if want := libqbe.DefaultTarget(runtime.GOOS, runtime.GOARCH); cfg.QbeTarget != want {
		t.Errorf("got QBE target %q, want the host's %q", cfg.QbeTarget, want)
	}
	if cfg.LLVMTriple != llvmTriple(runtime.GOOS, runtime.GOARCH) || cfg.TargetOS != runtime.GOOS {
		t.Errorf("got triple %q for %s", cfg.LLVMTriple, cfg.TargetOS)
	}
}

func TestApplyFlag(t *testing.T) {
	tests := []struct {
		flag    string
		check   func(*Config) bool
		wantErr string
	}{
		{flag: "-Wint-condition", check: func(c *Config) bool { return c.IsWarningEnabled(WarnIntCondition) }},
		{flag: "-Wno-extra", check: func(c *Config) bool { return !c.IsWarningEnabled(WarnExtra) }},
		{flag: "-Fno-comments", check: func(c *Config) bool { return !c.IsFeatureEnabled(FeatComments) }},
		{flag: "-Wall", check: func(c *Config) bool {
			return c.IsWarningEnabled(WarnIntCondition) && c.IsWarningEnabled(WarnImplicitStr)
		}},
		{flag: "-Wno-all", check: func(c *Config) bool {
			return !c.IsWarningEnabled(WarnUnreachableCode) && !c.IsWarningEnabled(WarnUncalledFunction)
		}},
		{flag: "-Wbogus", wantErr: "unknown warning 'bogus'"},
		{flag: "-Fbogus", wantErr: "unknown feature 'bogus'"},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			cfg := NewConfig()
			err := cfg.ApplyFlag(tt.flag)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Errorf("got %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFlag failed: %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("%s was not applied", tt.flag)
			}
		})
	}
}

func TestSetBackend(t *testing.T) {
	cfg := NewConfig()
	for _, b := range Backends {
		if err := cfg.SetBackend(b); err != nil || cfg.BackendName != b {
			t.Errorf("SetBackend(%s): %v", b, err)
		}
	}
	want := "unsupported target 'wasm'. Supported: structured, linear, qbe, llvm"
	if err := cfg.SetBackend("wasm"); err == nil || err.Error() != want {
		t.Errorf("got %v, want %q", err, want)
	}
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	cfg.SetTarget("linux", "arm64", "arm64")
	if cfg.QbeTarget != "arm64" || cfg.LLVMTriple != "aarch64-unknown-linux-gnu" {
		t.Errorf("got qbe %q llvm %q", cfg.QbeTarget, cfg.LLVMTriple)
	}
	cfg.SetTarget("darwin", "amd64", "amd64_apple")
	if cfg.LLVMTriple != "x86_64-apple-macosx" {
		t.Errorf("got llvm %q", cfg.LLVMTriple)
	}
	cfg.SetTarget("linux", "amd64", "")
	if cfg.QbeTarget == "" {
		t.Errorf("an empty QBE target should default to the host")
	}
}

func TestLoadProject(t *testing.T) {
	data := []byte(`
[build]
target = "linear"
output = "out.txt"
indent = 2
run = true
linker-args = ["-lm"]

[features]
inline-temps = false

[warnings]
int-condition = true
extra = false
`)
	cfg := NewConfig()
	if err := cfg.LoadProject(data); err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	got := struct {
		Backend, Out string
		Indent       int
		Run          bool
		Linker       []string
		Inline       bool
		IntCond      bool
		Extra        bool
	}{cfg.BackendName, cfg.OutFile, cfg.IndentWidth, cfg.Run, cfg.LinkerArgs,
		cfg.IsFeatureEnabled(FeatInlineTemps), cfg.IsWarningEnabled(WarnIntCondition), cfg.IsWarningEnabled(WarnExtra)}
	want := got
	want.Backend, want.Out, want.Indent, want.Run, want.Linker = "linear", "out.txt", 2, true, []string{"-lm"}
	want.Inline, want.IntCond, want.Extra = false, true, false
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("project mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadProjectErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"Unknown target", "[build]\ntarget = \"wasm\"\n", "unsupported target 'wasm'. Supported: structured, linear, qbe, llvm"},
		{"Negative indent", "[build]\nindent = -1\n", "invalid project file: indent must not be negative, got -1"},
		{"Unknown feature", "[features]\nteleport = true\n", "invalid project file: unknown feature 'teleport'"},
		{"Unknown warning", "[warnings]\nnoise = true\n", "invalid project file: unknown warning 'noise'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig().LoadProject([]byte(tt.data))
			if err == nil || err.Error() != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}

	if err := NewConfig().LoadProject([]byte("[build\n")); err == nil {
		t.Errorf("malformed toml should fail")
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "kid.toml")
	if err := NewConfig().LoadProjectFile(missing, true); err != nil {
		t.Errorf("an optional missing file is not an error: %v", err)
	}
	if err := NewConfig().LoadProjectFile(missing, false); err == nil {
		t.Errorf("a required missing file is an error")
	}

	if err := os.WriteFile(missing, []byte("[build]\ntarget = \"qbe\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewConfig()
	if err := cfg.LoadProjectFile(missing, true); err != nil || cfg.BackendName != "qbe" {
		t.Errorf("got backend %q, err %v", cfg.BackendName, err)
	}
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("kidc")
	warnings, features := cfg.SetupFlagGroups(fs)
	if warnings[0].Name != "all" {
		t.Errorf("the 'all' switch should come first, got %q", warnings[0].Name)
	}
	if len(warnings) != int(WarnCount)+1 || len(features) != int(FeatCount) {
		t.Errorf("got %d warning and %d feature switches", len(warnings), len(features))
	}

	if err := fs.Parse([]string{"-Wall", "-Wno-extra", "-Fno-inline-temps", "a.kid"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := cfg.ApplyFlagGroups(warnings, features); err != nil {
		t.Fatalf("ApplyFlagGroups failed: %v", err)
	}
	if !cfg.IsWarningEnabled(WarnImplicitStr) {
		t.Errorf("-Wall should enable implicit-str")
	}
	if cfg.IsWarningEnabled(WarnExtra) {
		t.Errorf("-Wno-extra should win over -Wall")
	}
	if cfg.IsFeatureEnabled(FeatInlineTemps) {
		t.Errorf("-Fno-inline-temps should disable folding")
	}
	if diff := cmp.Diff([]string{"a.kid"}, fs.Args()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}
