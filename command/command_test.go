package command

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		params string
		quote  rune
		want   []string
	}{
		{
			name:   "empty params",
			params: "",
			quote:  '"',
			want:   []string{"spin"},
		},
		{
			name:   "only spaces",
			params: "    ",
			quote:  '"',
			want:   []string{"spin"},
		},
		{
			name:   "simple tokens",
			params: "-a -v model.pml",
			quote:  '"',
			want:   []string{"spin", "-a", "-v", "model.pml"},
		},
		{
			name:   "leading and repeated spaces",
			params: "   -p    -g  model.pml  ",
			quote:  '"',
			want:   []string{"spin", "-p", "-g", "model.pml"},
		},
		{
			name:   "double quoted token keeps spaces",
			params: `-i "my model.pml"`,
			quote:  '"',
			want:   []string{"spin", "-i", "my model.pml"},
		},
		{
			name:   "single quote configured",
			params: `-N 'never claim.ltl' -a`,
			quote:  '\'',
			want:   []string{"spin", "-N", "never claim.ltl", "-a"},
		},
		{
			name:   "other quote char is ordinary",
			params: `'a b'`,
			quote:  '"',
			want:   []string{"spin", "'a", "b'"},
		},
		{
			name:   "quoted token with embedded runs of spaces",
			params: `"a  b   c"`,
			quote:  '"',
			want:   []string{"spin", "a  b   c"},
		},
		{
			name:   "empty quoted token",
			params: `-a "" b`,
			quote:  '"',
			want:   []string{"spin", "-a", "", "b"},
		},
		{
			name:   "latin-1 file name keeps its bytes",
			params: "-a mod\xe9le.pml",
			quote:  '"',
			want:   []string{"spin", "-a", "mod\xe9le.pml"},
		},
		{
			name:   "invalid utf-8 inside quotes",
			params: "\"r\xe9sum\xe9 d\xfcr.pml\" -v",
			quote:  '"',
			want:   []string{"spin", "r\xe9sum\xe9 d\xfcr.pml", "-v"},
		},
		{
			name:   "more than fifty tokens",
			params: strings.Repeat("x ", 60),
			quote:  '"',
			want:   append([]string{"spin"}, strings.Fields(strings.Repeat("x ", 60))...),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize("spin", tt.params, tt.quote)
			if err != nil {
				t.Fatalf("Tokenize: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.params, got, tt.want)
			}
			if got[0] != "spin" {
				t.Errorf("first token = %q, want program name", got[0])
			}
		})
	}
}

func TestTokenize_ReconstructsStructure(t *testing.T) {
	params := `-a "x y" -m10000 "z"`
	got, err := Tokenize("pan", params, '"')
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	// Re-quoting tokens that contain spaces (and the originally quoted "z")
	// gives back the input.
	var parts []string
	for _, tok := range got[1:] {
		if strings.Contains(tok, " ") || tok == "z" {
			tok = `"` + tok + `"`
		}
		parts = append(parts, tok)
	}
	if joined := strings.Join(parts, " "); joined != params {
		t.Errorf("rejoined = %q, want %q", joined, params)
	}
}

func TestTokenize_UnterminatedQuote(t *testing.T) {
	tests := []string{`"open`, `-a "never closed`, `"`}
	for _, params := range tests {
		t.Run(params, func(t *testing.T) {
			_, err := Tokenize("spin", params, '"')
			if !errors.Is(err, ErrUnterminatedQuote) {
				t.Fatalf("err = %v, want ErrUnterminatedQuote", err)
			}
		})
	}
}

func TestQuoteFor(t *testing.T) {
	if QuoteFor(true) != '\'' {
		t.Error("QuoteFor(true) should be single quote")
	}
	if QuoteFor(false) != '"' {
		t.Error("QuoteFor(false) should be double quote")
	}
}

func TestNew(t *testing.T) {
	cmd, err := New("spin", "-i -X model.pml", "/work", '"')
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if cmd.Path != "spin" || cmd.Dir != "/work" {
		t.Errorf("unexpected command %+v", cmd)
	}
	if want := []string{"spin", "-i", "-X", "model.pml"}; !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("Args = %q, want %q", cmd.Args, want)
	}
	if cmd.String() != "spin -i -X model.pml" {
		t.Errorf("String() = %q", cmd.String())
	}

	if _, err := New("spin", `"bad`, "", '"'); !errors.Is(err, ErrUnterminatedQuote) {
		t.Errorf("New with bad quote: err = %v", err)
	}
}
