//go:build !windows

package codegen

import (
	"strings"
	"testing"

	"github.com/xplshn/kidc/pkg/util"
)

func TestQBEAssemble(t *testing.T) {
	p, cfg := lower(t, countdownSrc)
	buf, err := NewQBEBackend().Generate(p, cfg)
	if err != nil {
		t.Fatalf("Generate failed with target %q: %v", cfg.QbeTarget, err)
	}
	asm := buf.String()
	for _, want := range []string{"main:", "kid_var_count"} {
		if !strings.Contains(asm, want) {
			t.Errorf("assembly is missing %q:\n%s", want, asm)
		}
	}
}

func TestQBEAssembleErrors(t *testing.T) {
	p, cfg := lower(t, countdownSrc)
	cfg.QbeTarget = ""
	_, err := NewQBEBackend().Generate(p, cfg)
	if !util.IsKind(err, util.BackendError) || err.Error() != "BackendError: no QBE target selected" {
		t.Errorf("got %v", err)
	}

	cfg.QbeTarget = "pdp11"
	_, err = NewQBEBackend().Generate(p, cfg)
	if !util.IsKind(err, util.BackendError) || !strings.Contains(err.Error(), "target 'pdp11'") {
		t.Errorf("got %v", err)
	}
}
