//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if cfg.Log != nil {
		fmt.Fprintln(cfg.Log, "Self-contained QBE backend is not supported on Windows. Falling back to the system's 'qbe'.")
	}
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, util.Errorf(util.BackendError, token.Token{}, "qbe not found in PATH: %v", err)
	}

	qbeIR, err := b.GenerateIL(prog, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "kidc-qbe-*.temp.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	if _, err = inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputName := inputFile.Name() + ".asm"
	defer os.Remove(outputName)
	cmd := exec.Command("qbe", "-o", outputName, "-t", cfg.QbeTarget, inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, util.Errorf(util.BackendError, token.Token{}, "qbe rejected the IL for target '%s': %v\n%s", cfg.QbeTarget, err, qbeIR)
	}

	outputFile, err := os.Open(outputName)
	if err != nil {
		return nil, err
	}
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
