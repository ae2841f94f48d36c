// Package reader parses Sage source text into forms.
package reader

import (
	"strconv"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/lexer"
	"github.com/sambeau/sage/pkg/sage/object"
)

// Program is the result of reading a source text.
type Program struct {
	PageVars []PageVar
	Forms    []object.Object
}

var (
	symQuote  = object.Intern("quote")
	symList   = object.Intern("list")
	symNewMap = object.Intern("new-map")
)

var closers = map[lexer.TokenType]lexer.TokenType{
	lexer.LPAREN:   lexer.RPAREN,
	lexer.LBRACKET: lexer.RBRACKET,
	lexer.LBRACE:   lexer.RBRACE,
}

// Parser builds forms from a token stream.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New creates a parser over src. Page variables are not recognised; use
// Parse for full program text.
func New(src string) *Parser {
	return &Parser{tokens: lexer.New(src).Tokens()}
}

// Parse reads a complete program: an optional leading page variables block
// followed by any number of forms.
func Parse(src string) (*Program, error) {
	vars, body, err := ExtractPageVars(src)
	if err != nil {
		return nil, err
	}
	forms, err := New(body).ParseAll()
	if err != nil {
		return nil, err
	}
	return &Program{PageVars: vars, Forms: forms}, nil
}

// ParseForms reads src as a plain sequence of forms.
func ParseForms(src string) ([]object.Object, error) {
	return New(src).ParseAll()
}

// ParseAll reads forms until end of input.
func (p *Parser) ParseAll() ([]object.Object, error) {
	var forms []object.Object
	for p.cur().Type != lexer.EOF {
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

func (p *Parser) cur() lexer.Token {
	return p.tokens[p.pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) parseForm() (object.Object, error) {
	tok := p.advance()

	switch tok.Type {
	case lexer.LPAREN, lexer.LBRACKET, lexer.LBRACE:
		elems, err := p.parseSequence(tok)
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case lexer.LBRACKET:
			return &object.Vector{Elements: elems}, nil
		case lexer.LBRACE:
			return mapLiteral(tok, elems)
		}
		if len(elems) == 0 {
			return object.NIL, nil
		}
		return &object.List{Elements: elems, Line: tok.Line, Column: tok.Column}, nil

	case lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE:
		return nil, serrors.NewWithPosition("PARSE-0001", tok.Line, tok.Column,
			map[string]any{"Token": tok.Literal})

	case lexer.QUOTE:
		next := p.cur()
		if next.Type == lexer.EOF || isCloser(next.Type) {
			return nil, serrors.NewWithPosition("PARSE-0007", tok.Line, tok.Column, nil)
		}
		quoted, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		return &object.List{Elements: []object.Object{symQuote, quoted}, Line: tok.Line, Column: tok.Column}, nil

	case lexer.INT:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, invalidNumber(tok)
		}
		return object.NewInteger(n), nil

	case lexer.FLOAT:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, invalidNumber(tok)
		}
		return object.NewFloat(f), nil

	case lexer.INVALID_NUMBER:
		return nil, invalidNumber(tok)

	case lexer.STRING:
		return object.NewString(tok.Literal), nil

	case lexer.UNTERMINATED_STRING:
		return nil, serrors.NewWithPosition("PARSE-0003", tok.Line, tok.Column, nil)

	case lexer.KEYWORD:
		return object.InternKeyword(tok.Literal), nil

	case lexer.SYMBOL:
		return symbolValue(tok.Literal), nil

	case lexer.EOF:
		return nil, serrors.NewWithPosition("PARSE-0001", tok.Line, tok.Column,
			map[string]any{"Token": "end of input"})
	}

	return nil, serrors.NewWithPosition("PARSE-0001", tok.Line, tok.Column,
		map[string]any{"Token": tok.Literal})
}

// parseSequence reads forms up to the closer matching open.
func (p *Parser) parseSequence(open lexer.Token) ([]object.Object, error) {
	want := closers[open.Type]
	elems := []object.Object{}
	for {
		tok := p.cur()
		switch {
		case tok.Type == want:
			p.advance()
			return elems, nil
		case tok.Type == lexer.EOF:
			return nil, serrors.NewWithPosition("PARSE-0002", open.Line, open.Column,
				map[string]any{"Expected": want.String(), "Open": open.Literal})
		case isCloser(tok.Type):
			return nil, serrors.NewWithPosition("PARSE-0008", tok.Line, tok.Column,
				map[string]any{"Got": tok.Literal, "Expected": want.String()})
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, form)
	}
}

// mapLiteral rewrites `{ k1 v1 k2 v2 }` into `(new-map (list k1 v1) ...)`.
// Bare symbol keys become keywords so they are not looked up.
func mapLiteral(open lexer.Token, elems []object.Object) (object.Object, error) {
	if len(elems)%2 != 0 {
		return nil, serrors.NewWithPosition("PARSE-0005", open.Line, open.Column,
			map[string]any{"Count": len(elems)})
	}
	call := []object.Object{symNewMap}
	for i := 0; i < len(elems); i += 2 {
		key := elems[i]
		if sym, ok := key.(*object.Symbol); ok {
			key = object.InternKeyword(sym.Name)
		}
		call = append(call, &object.List{
			Elements: []object.Object{symList, key, elems[i+1]},
			Line:     open.Line,
			Column:   open.Column,
		})
	}
	return &object.List{Elements: call, Line: open.Line, Column: open.Column}, nil
}

func symbolValue(name string) object.Object {
	switch name {
	case "nil", "false":
		return object.NIL
	case "t", "true":
		return object.TRUE
	}
	return object.Intern(name)
}

func isCloser(tt lexer.TokenType) bool {
	return tt == lexer.RPAREN || tt == lexer.RBRACKET || tt == lexer.RBRACE
}

func invalidNumber(tok lexer.Token) error {
	return serrors.NewWithPosition("PARSE-0004", tok.Line, tok.Column,
		map[string]any{"Literal": tok.Literal})
}
