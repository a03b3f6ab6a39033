package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/kidc/pkg/config"
	"github.com/xplshn/kidc/pkg/token"
	"github.com/xplshn/kidc/pkg/util"
)

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Type
	}{
		{"Assignment", "x is 3;", []token.Type{token.Ident, token.Is, token.Number, token.Semi, token.EOF}},
		{"Keywords", "check otherwise keep repeat create say ask give", []token.Type{
			token.Check, token.Otherwise, token.Keep, token.Repeat, token.Create, token.Say, token.Ask, token.Give, token.EOF,
		}},
		{"Two-char operators", "== != <= >= && || < > !", []token.Type{
			token.EqEq, token.Neq, token.Lte, token.Gte, token.AndAnd, token.OrOr, token.Lt, token.Gt, token.Not, token.EOF,
		}},
		{"Float and int", "1.5 7", []token.Type{token.FloatNumber, token.Number, token.EOF}},
		{"Comment skipped", "say(1); // trailing\nsay(2);", []token.Type{
			token.Say, token.LParen, token.Number, token.RParen, token.Semi,
			token.Say, token.LParen, token.Number, token.RParen, token.Semi, token.EOF,
		}},
		{"Empty", "", []token.Type{token.EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Tokenize([]rune(tt.src), 0, config.NewConfig())
			if err != nil {
				t.Fatalf("Tokenize failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, types(toks)); diff != "" {
				t.Errorf("token types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenPositions(t *testing.T) {
	toks, err := Tokenize([]rune("x is 10;\n  say(x);"), 2, config.NewConfig())
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	got := []token.Token{toks[2], toks[4]}
	want := []token.Token{
		{Type: token.Number, Value: "10", FileIndex: 2, Line: 1, Column: 6, Len: 2},
		{Type: token.Say, FileIndex: 2, Line: 2, Column: 3, Len: 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestStringEscapes(t *testing.T) {
	toks, err := Tokenize([]rune(`"a\tb\n\"q\" \x"`), 0, config.NewConfig())
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if got, want := toks[0].Value, "a\tb\n\"q\" \\x"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"Illegal character", "x is 3 @ 4;", "SyntaxError: Illegal character '@'"},
		{"Trailing dot", "x is 2.;", "SyntaxError: Illegal character '.'"},
		{"Single equals", "x = 3;", "SyntaxError: Illegal character '='"},
		{"Unterminated string", "say(\"hi);", "SyntaxError: Unterminated string literal"},
		{"String across lines", "say(\"hi\n\");", "SyntaxError: Unterminated string literal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize([]rune(tt.src), 0, config.NewConfig())
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !util.IsKind(err, util.SyntaxError) {
				t.Errorf("expected a SyntaxError, got %T", err)
			}
			if err.Error() != tt.want {
				t.Errorf("got %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestCommentsFeatureOff(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatComments, false)
	toks, err := Tokenize([]rune("// hi"), 0, cfg)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := []token.Type{token.Slash, token.Slash, token.Ident, token.EOF}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}
