package util

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/xplshn/kidc/pkg/token"
)

func TestKinds(t *testing.T) {
	err := Errorf(NameError, token.Token{}, "name '%s' is not defined", "x")
	if err.Error() != "NameError: name 'x' is not defined" {
		t.Errorf("got %q", err)
	}
	wrapped := fmt.Errorf("compiling: %w", err)
	if !IsKind(wrapped, NameError) || IsKind(wrapped, TypeError) {
		t.Errorf("IsKind should see through wrapping")
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Errorf("a plain error has no kind")
	}
	if got := BackendError.String(); got != "BackendError" {
		t.Errorf("got %q", got)
	}
	if got := Kind(42).String(); got != "Kind(42)" {
		t.Errorf("got %q", got)
	}
}

func TestReport(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	src := Sources{{Name: "a.kid", Content: []rune("x is 1;\nsay(nothing);\n")}}
	tok := token.Token{Type: token.Ident, Value: "nothing", Line: 2, Column: 5, Len: 7}

	var buf bytes.Buffer
	src.Report(&buf, Errorf(NameError, tok, "Oops! You forgot to create the variable 'nothing' before using it."))
	want := strings.Join([]string{
		"a.kid:2:5: error: NameError: Oops! You forgot to create the variable 'nothing' before using it.",
		"  say(nothing);",
		"      ^~~~~~~",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}

	buf.Reset()
	src.Report(&buf, Errorf(StructuralError, token.Token{}, "conditional jump to 'L9' has no matching label"))
	if got := buf.String(); got != "error: StructuralError: conditional jump to 'L9' has no matching label\n" {
		t.Errorf("got %q", got)
	}
}

func TestWarn(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	src := Sources{{Name: "w.kid", Content: []rune("create f() { give 1; }")}}
	var buf bytes.Buffer
	src.Warn(&buf, Warning{Name: "uncalled-function", Tok: token.Token{Line: 1, Column: 8, Len: 1}, Msg: "Function 'f' is never called, so its body was not checked"})
	first := strings.SplitN(buf.String(), "\n", 2)[0]
	if want := "w.kid:1:8: warning: Function 'f' is never called, so its body was not checked [-Wuncalled-function]"; first != want {
		t.Errorf("got %q, want %q", first, want)
	}
}
