package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an IR program and a configuration, and produces the target
	// script, assembly or intermediate language as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the backend registered under name (see config.Backends).
func NewBackend(name string) (Backend, error) {
	switch name {
	case "structured": return NewStructuredBackend(), nil
	case "linear": return NewLinearBackend(), nil
	case "qbe": return NewQBEBackend(), nil
	case "llvm": return NewLLVMBackend(), nil
	default: return nil, fmt.Errorf("no backend for target '%s'", name)
	}
}

// textBuffer wraps emitted text, terminating it with a newline when non-empty.
func textBuffer(text string) *bytes.Buffer {
	var buf bytes.Buffer
	buf.WriteString(text)
	if text != "" {
		buf.WriteByte('\n')
	}
	return &buf
}
