// Package sandbox runs generated structured scripts in-process. It
// interprets the subset of the scripting language the structured back end
// emits: assignments, if/elif/else, while with break and continue,
// functions, and the print, str, input, int and float builtins.
//
// Every script runs under a step budget and stops when its context is
// cancelled. Embeddable Python interpreters such as gpython expose neither
// hook, so scripts are interpreted here instead.
package sandbox

import (
	"context"
	"fmt"
)

// DefaultMaxSteps bounds the statements a script may execute.
const DefaultMaxSteps = 1_000_000

// Error is a script failure, named by its error class.
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

type Options struct {
	// Input answers input(prompt). The prompt is not echoed to the output.
	Input    func(prompt string) string
	MaxSteps int
}

type Result struct {
	Output string
	Err    error
}

// String renders the result the way the playground shows it.
func (r *Result) String() string {
	if r.Err != nil {
		return "Execution Error: " + r.Err.Error()
	}
	return "Compilation succeeded!\n\n" + r.Output
}

// Run executes script and captures everything it prints. Output produced
// before a failure is kept in the result.
func Run(ctx context.Context, script string, opts Options) (res *Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.MaxSteps == 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	res = &Result{}
	stmts, err := parse(script)
	if err != nil {
		res.Err = err
		return res
	}

	in := newInterp(ctx, opts)
	defer func() {
		if r := recover(); r != nil {
			res.Output = in.out.String()
			res.Err = &Error{Kind: "InternalError", Msg: fmt.Sprint(r)}
		}
	}()
	_, err = in.execBlock(stmts)
	res.Output = in.out.String()
	res.Err = err
	return res
}
