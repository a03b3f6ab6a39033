// Package compiler chains the stages into one job: lex, parse, check, lower
// and generate with the configured back end.
package compiler

import (
	"context"
	"fmt"

	"github.com/xplshn/kidc/pkg/ast"
	"github.com/xplshn/kidc/pkg/codegen"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/lexer"
	"github.com/xplshn/kidc/pkg/parser"
	"github.com/xplshn/kidc/pkg/sandbox"
	"github.com/xplshn/kidc/pkg/typeChecker"
	"github.com/xplshn/kidc/pkg/util"
)

type Result struct {
	AST      *ast.Program
	Info     *typeChecker.Info
	IR       *ir.Program
	Backend  string
	Output   string
	Warnings []util.Warning
	// Sources resolves diagnostic positions back to this file.
	Sources util.Sources

	cfg *config.Config
}

// Compile runs one job. The result is returned alongside an error too, with
// whatever stages completed, so callers can still report warnings and
// positions. A nil cfg means the defaults.
func Compile(name string, src []byte, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	content := []rune(string(src))
	res := &Result{
		Backend: cfg.BackendName,
		cfg:     cfg,
		Sources: util.Sources{{Name: name, Content: content}},
	}

	toks, err := lexer.Tokenize(content, 0, cfg)
	if err != nil {
		return res, err
	}
	if res.AST, err = parser.NewParser(toks).Parse(); err != nil {
		return res, err
	}

	tc := typeChecker.NewTypeChecker(cfg)
	res.Info, err = tc.Check(res.AST)
	res.Warnings = tc.Warnings
	if err != nil {
		return res, err
	}

	if res.IR, err = codegen.NewContext(cfg, res.Info).GenerateIR(res.AST); err != nil {
		return res, err
	}

	backend, err := codegen.NewBackend(cfg.BackendName)
	if err != nil {
		return res, err
	}
	out, err := backend.Generate(res.IR, cfg)
	if err != nil {
		return res, err
	}
	res.Output = out.String()
	return res, nil
}

// Run executes a compiled job in the sandbox. Jobs built for another target
// are re-emitted as structured scripts first. input feeds 'ask' one line at a
// time and answers "" once it runs out.
func Run(ctx context.Context, res *Result, input []string) (*sandbox.Result, error) {
	if res == nil || res.IR == nil {
		return nil, fmt.Errorf("nothing to run: compilation did not finish")
	}
	script := res.Output
	if res.Backend != "structured" {
		var err error
		if script, err = codegen.EmitStructured(res.IR.Instrs, res.cfg); err != nil {
			return nil, err
		}
	}

	next := 0
	opts := sandbox.Options{
		Input: func(string) string {
			if next >= len(input) {
				return ""
			}
			next++
			return input[next-1]
		},
	}
	return sandbox.Run(ctx, script, opts), nil
}
