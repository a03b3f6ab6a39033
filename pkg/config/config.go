package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/xplshn/kidc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatInlineTemps
	FeatIntTruthiness
	FeatCount
)

type Warning int

const (
	WarnUnreachableCode Warning = iota
	WarnUncalledFunction
	WarnIntCondition
	WarnImplicitStr
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Backends understood by the driver.
var Backends = []string{"structured", "linear", "qbe", "llvm"}

type Config struct {
	Features    map[Feature]Info
	Warnings    map[Warning]Info
	FeatureMap  map[string]Feature
	WarningMap  map[string]Warning
	BackendName string
	QbeTarget   string
	LLVMTriple  string
	TargetArch  string
	TargetOS    string
	IndentWidth int
	OutFile     string
	Run         bool
	LinkerArgs  []string
	// Log receives informational output. Nil discards it.
	Log io.Writer
}

func NewConfig() *Config {
	cfg := &Config{
		Features:    make(map[Feature]Info),
		Warnings:    make(map[Warning]Info),
		FeatureMap:  make(map[string]Feature),
		WarningMap:  make(map[string]Warning),
		BackendName: "structured",
		IndentWidth: 4,
	}

	features := map[Feature]Info{
		FeatComments:      {"comments", true, "Recognize '//' line comments in source files."},
		FeatInlineTemps:   {"inline-temps", true, "Fold single-use temporaries back into expressions in the structured target."},
		FeatIntTruthiness: {"int-truthiness", true, "Lower integer conditions to an explicit '!= 0' test."},
	}

	warnings := map[Warning]Info{
		WarnUnreachableCode:  {"unreachable-code", true, "Warn about statements that follow 'give' in the same block."},
		WarnUncalledFunction: {"uncalled-function", true, "Warn about functions that are never called and therefore never checked."},
		WarnIntCondition:     {"int-condition", false, "Warn when an integer is used as a condition."},
		WarnImplicitStr:      {"implicit-str", false, "Warn when '+' turns a number into a string."},
		WarnExtra:            {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	return cfg
}

func (c *Config) logf(format string, args ...interface{}) {
	if c.Log != nil {
		fmt.Fprintf(c.Log, format, args...)
	}
}

// SetTarget configures the native targets for an architecture and an optional QBE ABI name.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		c.logf("kidc: info: no target specified, defaulting to host target '%s'\n", c.QbeTarget)
	} else {
		c.QbeTarget = qbeTarget
		c.logf("kidc: info: using specified target '%s'\n", c.QbeTarget)
	}
	c.TargetOS, c.TargetArch = goos, goarch
	c.LLVMTriple = llvmTriple(goos, goarch)

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
	default:
		c.logf("kidc: warning: unrecognized or unsupported QBE target '%s'.\n", c.QbeTarget)
	}
}

func llvmTriple(goos, goarch string) string {
	arch := map[string]string{"amd64": "x86_64", "arm64": "aarch64", "riscv64": "riscv64", "386": "i386"}[goarch]
	if arch == "" {
		arch = goarch
	}
	switch goos {
	case "darwin": return arch + "-apple-macosx"
	case "windows": return arch + "-pc-windows-msvc"
	default: return arch + "-unknown-" + goos + "-gnu"
	}
}

// SetBackend selects the code generator by name.
func (c *Config) SetBackend(name string) error {
	for _, b := range Backends {
		if b == name {
			c.BackendName = name
			return nil
		}
	}
	return fmt.Errorf("unsupported target '%s'. Supported: %s", name, strings.Join(Backends, ", "))
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag applies one -W<name>, -Wno-<name>, -F<name> or -Fno-<name> flag.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	isWarning := true
	switch {
	case strings.HasPrefix(trimmed, "W"): trimmed = trimmed[1:]
	case strings.HasPrefix(trimmed, "F"): trimmed, isWarning = trimmed[1:], false
	}
	name := strings.TrimPrefix(trimmed, "no-")
	enable := name == trimmed

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers the -W and -F switch families on fs. The
// returned entries are read back by ApplyFlagGroups after parsing.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features []cli.FlagGroupEntry) {
	entry := func(prefix string, info Info) cli.FlagGroupEntry {
		return cli.FlagGroupEntry{Name: info.Name, Prefix: prefix, Usage: info.Description, Enabled: new(bool), Disabled: new(bool), Default: info.Enabled}
	}
	warnings = append(warnings, entry("W", Info{Name: "all", Description: "Enable every warning."}))
	for i := Warning(0); i < WarnCount; i++ {
		warnings = append(warnings, entry("W", c.Warnings[i]))
	}
	for i := Feature(0); i < FeatCount; i++ {
		features = append(features, entry("F", c.Features[i]))
	}
	fs.AddFlagGroup("Warning Flags", "Available Warning Flags:", "warning", warnings)
	fs.AddFlagGroup("Feature Flags", "Available Feature Flags:", "feature", features)
	return warnings, features
}

// ApplyFlagGroups applies the switches set on the command line, in the
// order they were registered, so -Wall comes before individual warnings.
func (c *Config) ApplyFlagGroups(groups ...[]cli.FlagGroupEntry) error {
	for _, entries := range groups {
		for _, e := range entries {
			if e.Enabled != nil && *e.Enabled {
				if err := c.ApplyFlag("-" + e.Prefix + e.Name); err != nil {
					return err
				}
			}
			if e.Disabled != nil && *e.Disabled {
				if err := c.ApplyFlag("-" + e.Prefix + "no-" + e.Name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type tomlBuild struct {
	Target    string   `toml:"target"`
	QbeTarget string   `toml:"qbe-target"`
	Output    string   `toml:"output"`
	Indent    int      `toml:"indent"`
	Run       bool     `toml:"run"`
	Linker    []string `toml:"linker-args"`
}

type tomlProject struct {
	Build    tomlBuild       `toml:"build"`
	Features map[string]bool `toml:"features"`
	Warnings map[string]bool `toml:"warnings"`
}

// LoadProject merges a kid.toml project file into c.
func (c *Config) LoadProject(data []byte) error {
	proj := &tomlProject{}
	if err := toml.Unmarshal(data, proj); err != nil {
		return fmt.Errorf("invalid project file: %w", err)
	}

	b := proj.Build
	if b.Target != "" {
		if err := c.SetBackend(b.Target); err != nil {
			return err
		}
	}
	if b.QbeTarget != "" {
		c.QbeTarget = b.QbeTarget
	}
	if b.Output != "" {
		c.OutFile = b.Output
	}
	if b.Indent < 0 {
		return fmt.Errorf("invalid project file: indent must not be negative, got %d", b.Indent)
	}
	if b.Indent > 0 {
		c.IndentWidth = b.Indent
	}
	c.Run = c.Run || b.Run
	c.LinkerArgs = append(c.LinkerArgs, b.Linker...)

	for name, on := range proj.Features {
		f, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("invalid project file: unknown feature '%s'", name)
		}
		c.SetFeature(f, on)
	}
	for name, on := range proj.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("invalid project file: unknown warning '%s'", name)
		}
		c.SetWarning(w, on)
	}
	return nil
}

// LoadProjectFile reads path with LoadProject. A missing file is not an error
// when optional is set.
func (c *Config) LoadProjectFile(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return c.LoadProject(data)
}
