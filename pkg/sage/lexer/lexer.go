package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Delimiters
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	LBRACE   // {
	RBRACE   // }
	QUOTE    // '

	// Atoms
	INT     // 42
	FLOAT   // 3.14
	STRING  // "text"
	SYMBOL  // foo, +, /upper
	KEYWORD // :name

	// Malformed atoms, reported by the reader with their position
	UNTERMINATED_STRING // "text...
	INVALID_NUMBER      // 12abc
)

var tokenNames = map[TokenType]string{
	ILLEGAL:             "ILLEGAL",
	EOF:                 "EOF",
	LPAREN:              "(",
	RPAREN:              ")",
	LBRACKET:            "[",
	RBRACKET:            "]",
	LBRACE:              "{",
	RBRACE:              "}",
	QUOTE:               "'",
	INT:                 "INT",
	FLOAT:               "FLOAT",
	STRING:              "STRING",
	SYMBOL:              "SYMBOL",
	KEYWORD:             "KEYWORD",
	UNTERMINATED_STRING: "UNTERMINATED_STRING",
	INVALID_NUMBER:      "INVALID_NUMBER",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is one lexical unit. Line and Column are 1-based and point at the
// first character of the token.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %s, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

// Lexer turns source text into tokens. Commas are whitespace and `;` starts
// a comment that runs to the end of the line.
type Lexer struct {
	input        string
	position     int  // start of current rune
	readPosition int  // start of next rune
	ch           rune // current rune, 0 at end of input
	line         int
	column       int
}

// New creates a new lexer instance
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		l.column++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
	l.column++
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	line, col := l.line, l.column
	tok := Token{Line: line, Column: col}

	if l.atEOF() {
		tok.Type = EOF
		return tok
	}

	switch l.ch {
	case '(':
		tok.Type, tok.Literal = LPAREN, "("
	case ')':
		tok.Type, tok.Literal = RPAREN, ")"
	case '[':
		tok.Type, tok.Literal = LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = RBRACKET, "]"
	case '{':
		tok.Type, tok.Literal = LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = RBRACE, "}"
	case '\'':
		tok.Type, tok.Literal = QUOTE, "'"
	case '"':
		s, ok := l.readString()
		tok.Literal = s
		if ok {
			tok.Type = STRING
		} else {
			tok.Type = UNTERMINATED_STRING
		}
		return tok
	default:
		atom := l.readAtom()
		tok.Literal = atom
		tok.Type = classifyAtom(atom)
		return tok
	}

	l.readChar()
	return tok
}

// Tokens scans the whole input. The final token is always EOF.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == ',' || unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == ';':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a double-quoted string starting at the opening quote.
// Only \" and \\ are unescaped; any other backslash sequence is kept as
// written so host-side format directives reach builtins untouched.
func (l *Lexer) readString() (string, bool) {
	var sb strings.Builder
	l.readChar() // opening quote
	for {
		if l.atEOF() {
			return sb.String(), false
		}
		switch l.ch {
		case '"':
			l.readChar()
			return sb.String(), true
		case '\\':
			l.readChar()
			if l.atEOF() {
				sb.WriteRune('\\')
				return sb.String(), false
			}
			if l.ch != '"' && l.ch != '\\' {
				sb.WriteRune('\\')
			}
			sb.WriteRune(l.ch)
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
}

func (l *Lexer) readAtom() string {
	start := l.position
	for !l.atEOF() && !isDelimiter(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isDelimiter(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', '"', ';', '\'', ',':
		return true
	}
	return unicode.IsSpace(r)
}

func classifyAtom(atom string) TokenType {
	if len(atom) > 1 && atom[0] == ':' {
		return KEYWORD
	}
	if !looksNumeric(atom) {
		return SYMBOL
	}
	if _, err := strconv.ParseInt(atom, 10, 64); err == nil {
		return INT
	}
	if strings.Trim(atom, "0123456789.eE+-") == "" {
		if _, err := strconv.ParseFloat(atom, 64); err == nil {
			return FLOAT
		}
	}
	return INVALID_NUMBER
}

// looksNumeric reports whether atom starts like a number: a digit, or a
// sign or dot followed by a digit.
func looksNumeric(atom string) bool {
	if atom == "" {
		return false
	}
	if isDigit(atom[0]) {
		return true
	}
	if len(atom) > 1 && (atom[0] == '+' || atom[0] == '-' || atom[0] == '.') {
		if isDigit(atom[1]) {
			return true
		}
		return len(atom) > 2 && atom[0] != '.' && atom[1] == '.' && isDigit(atom[2])
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
