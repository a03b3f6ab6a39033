package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/pterm/pterm"
	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/cli"
	"github.com/xplshn/kidc/pkg/compiler"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/util"
)

func main() {
	app := cli.NewApp("kidc")
	app.Synopsis = "[options] <input.kid> ..."
	app.Description = "A compiler for the kid teaching language. It checks programs for name and type mistakes, lowers them to three-address code and emits a readable script, a toy assembly listing, QBE IL or LLVM IR."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/kidc>"
	app.Since = 2025

	var (
		outFile    string
		target     string
		qbeTarget  string
		configPath string
		inputs     []string
		linkerArgs []string
		dumpIR     bool
		dumpAST    bool
		run        bool
		link       bool
		noColor    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>. Text targets default to stdout, --link to 'a.out'.", "file")
	fs.String(&target, "target", "t", "", "Select the back end: structured, linear, qbe or llvm.", "backend")
	fs.String(&qbeTarget, "qbe-target", "", "", "Set the QBE ABI (amd64_sysv, arm64, rv64, ...).", "abi")
	fs.String(&configPath, "config", "c", "", "Read project settings from <file> instead of ./kid.toml.", "file")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Dump the intermediate representation and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Dump the syntax tree and exit.")
	fs.Bool(&run, "run", "r", false, "Run the program in the built-in sandbox after compiling.")
	fs.List(&inputs, "input", "i", []string{}, "Feed a line to 'ask'. Repeat for more lines.", "line")
	fs.Bool(&link, "link", "", false, "Assemble and link the qbe output into an executable with 'cc'.")
	fs.List(&linkerArgs, "linker-arg", "L", []string{}, "Pass an argument to the linker.", "arg")
	fs.Bool(&noColor, "no-color", "", false, "Disable colored diagnostics.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(files []string) error {
		if noColor {
			pterm.DisableColor()
		}
		log := os.Stderr
		cfg.Log = log

		if configPath != "" {
			if err := cfg.LoadProjectFile(configPath, false); err != nil {
				return fail(log, err)
			}
		} else if err := cfg.LoadProjectFile("kid.toml", true); err != nil {
			return fail(log, err)
		}

		// Command-line settings override the project file.
		if err := cfg.ApplyFlagGroups(warningFlags, featureFlags); err != nil {
			return fail(log, err)
		}
		if target != "" {
			if err := cfg.SetBackend(target); err != nil {
				return fail(log, err)
			}
		}
		if qbeTarget == "" {
			qbeTarget = cfg.QbeTarget
		}
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, qbeTarget)
		if outFile != "" {
			cfg.OutFile = outFile
		}
		cfg.Run = cfg.Run || run
		cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)

		if len(files) == 0 {
			return fail(log, fmt.Errorf("no input files specified"))
		}
		if link && cfg.BackendName != "qbe" {
			return fail(log, fmt.Errorf("--link needs the qbe target, not '%s'", cfg.BackendName))
		}
		if link && len(files) > 1 {
			return fail(log, fmt.Errorf("--link takes a single input file"))
		}

		for _, file := range files {
			if err := compileFile(file, cfg, log, dumpAST, dumpIR, link, inputs); err != nil {
				return err
			}
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func fail(w io.Writer, err error) error {
	fmt.Fprintf(w, "%s %v\n", pterm.FgRed.Sprint("kidc: error:"), err)
	return err
}

func compileFile(file string, cfg *config.Config, log io.Writer, dumpAST, dumpIR, link bool, inputs []string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return fail(log, fmt.Errorf("could not read file '%s': %w", file, err))
	}

	util.Info(log, " KIDC ", "Compiling '%s' for the '%s' target...", file, cfg.BackendName)
	res, err := compiler.Compile(file, src, cfg)
	for _, w := range res.Warnings {
		res.Sources.Warn(log, w)
	}
	if dumpAST && res.AST != nil {
		fmt.Println(ast.Dump(res.AST))
		return nil
	}
	if dumpIR && res.IR != nil {
		fmt.Println(res.IR.String())
		return nil
	}
	if err != nil {
		res.Sources.Report(log, err)
		return err
	}

	switch {
	case link:
		out := cfg.OutFile
		if out == "" {
			out = "a.out"
		}
		util.Info(log, " LINK ", "Linking to create '%s'...", out)
		if err := assembleAndLink(out, res.Output, cfg.LinkerArgs); err != nil {
			return fail(log, fmt.Errorf("assembler/linker failed: %w", err))
		}
	case cfg.OutFile != "":
		if err := os.WriteFile(cfg.OutFile, []byte(res.Output), 0o644); err != nil {
			return fail(log, err)
		}
		util.Info(log, " WRITE ", "Wrote '%s'", cfg.OutFile)
	case !cfg.Run:
		fmt.Print(res.Output)
	}

	if cfg.Run {
		util.Info(log, " RUN ", "Running '%s' in the sandbox...", file)
		result, err := compiler.Run(context.Background(), res, inputs)
		if err != nil {
			return fail(log, err)
		}
		fmt.Print(result.Output)
		if result.Err != nil {
			fmt.Fprintf(log, "%s %v\n", pterm.FgRed.Sprint("Execution Error:"), result.Err)
			return result.Err
		}
	}
	util.Success(log, "Done!")
	return nil
}

func assembleAndLink(outFile, asm string, linkerArgs []string) error {
	asmFile, err := os.CreateTemp("", "kidc-main-*.s")
	if err != nil {
		return fmt.Errorf("failed to create temp file for asm: %w", err)
	}
	defer os.Remove(asmFile.Name())
	if _, err := asmFile.WriteString(asm); err != nil {
		return fmt.Errorf("failed to write asm: %w", err)
	}
	asmFile.Close()

	ccArgs := append([]string{"-no-pie", "-o", outFile, asmFile.Name()}, linkerArgs...)
	cmd := exec.Command("cc", ccArgs...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("cc command failed: %w\nOutput:\n%s", err, string(output))
	}
	return nil
}
