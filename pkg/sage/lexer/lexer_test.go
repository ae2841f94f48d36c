package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `(defn f [a b] ; adds
  (+ a b, 1.5 -2))
'(x :key "s")
{ :a 1 }`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{LPAREN, "("},
		{SYMBOL, "defn"},
		{SYMBOL, "f"},
		{LBRACKET, "["},
		{SYMBOL, "a"},
		{SYMBOL, "b"},
		{RBRACKET, "]"},
		{LPAREN, "("},
		{SYMBOL, "+"},
		{SYMBOL, "a"},
		{SYMBOL, "b"},
		{FLOAT, "1.5"},
		{INT, "-2"},
		{RPAREN, ")"},
		{RPAREN, ")"},
		{QUOTE, "'"},
		{LPAREN, "("},
		{SYMBOL, "x"},
		{KEYWORD, ":key"},
		{STRING, "s"},
		{RPAREN, ")"},
		{LBRACE, "{"},
		{KEYWORD, ":a"},
		{INT, "1"},
		{RBRACE, "}"},
		{EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestAtomClassification(t *testing.T) {
	tests := []struct {
		input    string
		expected TokenType
	}{
		{"42", INT},
		{"+7", INT},
		{"-0", INT},
		{".5", FLOAT},
		{"-.5", FLOAT},
		{"1e3", FLOAT},
		{"99999999999999999999", FLOAT},
		{"12abc", INVALID_NUMBER},
		{"1.2.3", INVALID_NUMBER},
		{"0x10", INVALID_NUMBER},
		{"-", SYMBOL},
		{"+", SYMBOL},
		{"/upper", SYMBOL},
		{"even?", SYMBOL},
		{"1+", INVALID_NUMBER},
		{":", SYMBOL},
		{":k", KEYWORD},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := New(tt.input).NextToken()
			if tok.Type != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, tok.Type)
			}
			if tok.Literal != tt.input {
				t.Errorf("expected literal %q, got %q", tt.input, tok.Literal)
			}
		})
	}
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"plain"`, "plain"},
		{`"say \"hi\""`, `say "hi"`},
		{`"back\\slash"`, `back\slash`},
		{`"keep \n and ~a"`, `keep \n and ~a`},
		{`"multi
line"`, "multi\nline"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := New(tt.input).NextToken()
			if tok.Type != STRING {
				t.Fatalf("expected STRING, got %s", tok.Type)
			}
			if tok.Literal != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tok.Literal)
			}
		})
	}
}

func TestUnterminatedString(t *testing.T) {
	tok := New(`(print "oops`).Tokens()
	last := tok[len(tok)-2]
	if last.Type != UNTERMINATED_STRING {
		t.Fatalf("expected UNTERMINATED_STRING, got %s", last.Type)
	}
	if last.Line != 1 || last.Column != 8 {
		t.Errorf("expected position 1:8, got %d:%d", last.Line, last.Column)
	}
}

func TestPositions(t *testing.T) {
	l := New("(a\n  bc)\n; note\nd")
	want := []struct {
		lit       string
		line, col int
	}{
		{"(", 1, 1},
		{"a", 1, 2},
		{"bc", 2, 3},
		{")", 2, 5},
		{"d", 4, 1},
	}
	for _, w := range want {
		tok := l.NextToken()
		if tok.Literal != w.lit || tok.Line != w.line || tok.Column != w.col {
			t.Errorf("expected %q at %d:%d, got %q at %d:%d",
				w.lit, w.line, w.col, tok.Literal, tok.Line, tok.Column)
		}
	}
}

func TestCommentsAndCommas(t *testing.T) {
	toks := New("; only a comment\n,,, ;another").Tokens()
	if len(toks) != 1 || toks[0].Type != EOF {
		t.Errorf("expected only EOF, got %v", toks)
	}
}
