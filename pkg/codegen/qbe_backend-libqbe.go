//go:build !windows

package codegen

import (
	"bytes"
	"strings"

	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/ir"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
	"modernc.org/libqbe"
)

// Generate assembles the IL in process for cfg.QbeTarget.
func (b *qbeBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	il, err := b.GenerateIL(prog, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.QbeTarget == "" {
		return nil, util.Errorf(util.BackendError, token.Token{}, "no QBE target selected")
	}

	var asm bytes.Buffer
	if err := libqbe.Main(cfg.QbeTarget, "kid.ssa", strings.NewReader(il), &asm, nil); err != nil {
		return nil, util.Errorf(util.BackendError, token.Token{}, "qbe rejected the IL for target '%s': %v\n%s", cfg.QbeTarget, err, il)
	}
	return &asm, nil
}
