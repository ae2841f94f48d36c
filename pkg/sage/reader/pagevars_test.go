package reader

import (
	"testing"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
)

func TestExtractPageVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []PageVar
		forms    int
	}{
		{
			name:  "no block",
			input: "(println 1)",
			forms: 1,
		},
		{
			name:  "html comment block",
			input: "<!--\ntitle Hello World\nlayout: page\n-->\n(println title)",
			expected: []PageVar{
				{Name: "title", Value: "Hello World"},
				{Name: "layout", Value: "page"},
			},
			forms: 1,
		},
		{
			name:     "single line html block",
			input:    "<!-- id 7 -->\n(println id)",
			expected: []PageVar{{Name: "id", Value: "7"}},
			forms:    1,
		},
		{
			name:  "comment prefixed block",
			input: ";<!--\n; title Notes\n;  author  Ann Lee\n;-->\n(println title) (println author)",
			expected: []PageVar{
				{Name: "title", Value: "Notes"},
				{Name: "author", Value: "Ann Lee"},
			},
			forms: 2,
		},
		{
			name:     "leading blank lines",
			input:    "\n\n<!--\nflag\n-->",
			expected: []PageVar{{Name: "flag", Value: ""}},
			forms:    0,
		},
		{
			name:  "ordinary comment is not a block",
			input: "; just a comment\n(+ 1 2)",
			forms: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(prog.PageVars) != len(tt.expected) {
				t.Fatalf("expected %d page vars, got %d: %v", len(tt.expected), len(prog.PageVars), prog.PageVars)
			}
			for i, want := range tt.expected {
				if prog.PageVars[i] != want {
					t.Errorf("page var %d: expected %+v, got %+v", i, want, prog.PageVars[i])
				}
			}
			if len(prog.Forms) != tt.forms {
				t.Errorf("expected %d forms, got %d", tt.forms, len(prog.Forms))
			}
		})
	}
}

func TestPageVarsKeepLineNumbers(t *testing.T) {
	_, err := Parse("<!--\ntitle x\n-->\n(oops")
	se, ok := err.(*serrors.SageError)
	if !ok {
		t.Fatalf("expected *SageError, got %T", err)
	}
	if se.Line != 4 {
		t.Errorf("expected error on line 4, got %d", se.Line)
	}
}

func TestUnterminatedPageVars(t *testing.T) {
	tests := []string{
		"<!--\ntitle x\n(println 1)",
		";<!--\n; title x\n(println 1)",
	}
	for _, input := range tests {
		_, err := Parse(input)
		se, ok := err.(*serrors.SageError)
		if !ok || se.Code != "PARSE-0006" {
			t.Errorf("expected PARSE-0006 for %q, got %v", input, err)
		}
	}
}
