package util

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/xplshn/kidc/pkg/token"
)

type Kind int

const (
	SyntaxError Kind = iota
	NameError
	TypeError
	ValidationError
	StructuralError
	UnsupportedConstructError
	// BackendError is a failure of an external assembler, not of the program.
	BackendError
)

func (k Kind) String() string {
	switch k {
	case SyntaxError: return "SyntaxError"
	case NameError: return "NameError"
	case TypeError: return "TypeError"
	case ValidationError: return "ValidationError"
	case StructuralError: return "StructuralError"
	case UnsupportedConstructError: return "UnsupportedConstructError"
	case BackendError: return "BackendError"
	default: return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CompileError is the error type every compiler stage returns. Tok is the
// zero token when the error has no source position (IR and back-end errors).
type CompileError struct {
	Kind Kind
	Tok  token.Token
	Msg  string
}

func (e *CompileError) Error() string { return e.Kind.String() + ": " + e.Msg }

// Errorf builds a *CompileError of the given kind.
func Errorf(kind Kind, tok token.Token, format string, args ...interface{}) error {
	return &CompileError{Kind: kind, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the kind of the first *CompileError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Warning is a non-fatal diagnostic. Name is the -W flag that controls it.
type Warning struct {
	Name string
	Tok  token.Token
	Msg  string
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Sources resolves token positions to file names and source lines.
type Sources []SourceFileRecord

func (s Sources) location(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(s) {
		return "unknown", tok.Line, tok.Column
	}
	return s[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func (s Sources) printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(s) || tok.Line == 0 {
		return
	}

	content := s[tok.FileIndex].Content
	lineNum, lineStart := tok.Line, 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	pad := 0
	if tok.Column > 1 {
		pad = tok.Column - 1
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pad), pterm.FgGreen.Sprint(caret))
}

// Report prints err with its location and a caret under the offending token. Errors without a position print without a location.
func (s Sources) Report(w io.Writer, err error) {
	var ce *CompileError
	if !errors.As(err, &ce) || ce.Tok.Line == 0 {
		fmt.Fprintf(w, "%s %s\n", pterm.FgRed.Sprint("error:"), err)
		return
	}
	filename, line, col := s.location(ce.Tok)
	fmt.Fprintf(w, "%s:%d:%d: %s %s\n", filename, line, col, pterm.FgRed.Sprint("error:"), ce)
	s.printErrorLine(w, ce.Tok)
}

// Warn prints a collected warning.
func (s Sources) Warn(w io.Writer, wn Warning) {
	filename, line, col := s.location(wn.Tok)
	fmt.Fprintf(w, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col, pterm.FgYellow.Sprint("warning:"), wn.Msg, wn.Name)
	s.printErrorLine(w, wn.Tok)
}

var (
	infoStyle    = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	successColor = pterm.FgLightGreen
)

// Info prints a pipeline progress line.
func Info(w io.Writer, tag, format string, args ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", infoStyle.Sprint(tag), fmt.Sprintf(format, args...))
}

func Success(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintln(w, successColor.Sprintf(format, args...))
}
