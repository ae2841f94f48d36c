package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType string
		wantCode string
		wantFile string
		wantLine int
	}{
		{
			name:     "parse error",
			err:      serrors.NewWithPosition("PARSE-0002", 3, 1, map[string]any{"Open": "("}),
			wantType: "parse",
			wantCode: "PARSE-0002",
			wantFile: "/page.l",
			wantLine: 3,
		},
		{
			name:     "error from a loaded file",
			err:      serrors.NewWithPosition("TYPE-0001", 2, 5, map[string]any{"Function": "car", "Expected": "a list", "Got": "integer"}).WithFile("/lib/x.l"),
			wantType: "runtime",
			wantCode: "TYPE-0001",
			wantFile: "/lib/x.l",
			wantLine: 2,
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("boom"),
			wantType: "runtime",
			wantFile: "/page.l",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err, "/page.l")
			if got.Type != tt.wantType || got.Code != tt.wantCode || got.File != tt.wantFile || got.Line != tt.wantLine {
				t.Errorf("FromError() = %+v", got)
			}
			if got.Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}

func TestSourceContext(t *testing.T) {
	source := "one\ntwo\nthree\nfour\nfive\nsix"

	lines := sourceContext(source, 3, 1)
	if len(lines) != 3 || lines[0].Number != 2 || lines[2].Number != 4 {
		t.Fatalf("lines = %+v", lines)
	}
	if !lines[1].IsError || lines[1].Content != "three" || lines[0].IsError {
		t.Errorf("error line not marked: %+v", lines)
	}

	if got := sourceContext(source, 1, 5); len(got) != 6 || got[0].Number != 1 {
		t.Errorf("context at the top = %+v", got)
	}
	if got := sourceContext(source, 0, 2); got != nil {
		t.Errorf("unknown line should give nil, got %+v", got)
	}
	if got := sourceContext(source, 40, 2); got != nil {
		t.Errorf("line past the end should give nil, got %+v", got)
	}
	if got := sourceContext("", 1, 2); got != nil {
		t.Errorf("empty source should give nil, got %+v", got)
	}
}

func TestHighlightSage(t *testing.T) {
	got := highlightSage(`(defn f (x) "a<b" 42 :k /upper) ; note`)
	for _, want := range []string{
		`(<span class="kw">defn</span> f (x) `,
		`<span class="str">&#34;a&lt;b&#34;</span>`,
		`<span class="num">42</span>`,
		`<span class="key">:k</span>`,
		`<span class="host">/upper</span>`,
		`<span class="comment">; note</span>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("highlightSage() = %q, missing %q", got, want)
		}
	}

	if got := highlightSage(`(print "a\"b")`); !strings.Contains(got, `<span class="str">&#34;a\&#34;b&#34;</span>`) {
		t.Errorf("escaped quote not kept inside the string span: %q", got)
	}
	if got := highlightSage("; only a comment"); got != `<span class="comment">; only a comment</span>` {
		t.Errorf("comment line = %q", got)
	}
	if got := highlightSage("a < b"); got != "a &lt; b" {
		t.Errorf("plain text = %q", got)
	}
}

func TestRenderDevErrorPage(t *testing.T) {
	rec := httptest.NewRecorder()
	devErr := &DevError{
		Type:    "runtime",
		Code:    "UNDEF-0001",
		File:    "/index.l",
		Line:    2,
		Column:  3,
		Message: "unbound symbol <x>",
		Hints:   []string{"Did you mean `y`?"},
	}
	renderDevErrorPage(rec, devErr, "(def y 1)\n  (print x)")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<h1>Sage Error</h1>",
		`<span class="error-type">runtime error</span>`,
		`/index.l : <span class="line-info">2</span> : <span class="line-info">3</span>`,
		"[UNDEF-0001] unbound symbol &lt;x&gt;",
		"Did you mean `y`?",
		`<div class="source-line error-line"><span class="line-number">2</span>`,
		`<div class="source-line"><span class="line-number">1</span>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	rec = httptest.NewRecorder()
	renderDevErrorPage(rec, &DevError{Type: "load", Message: "no such module"}, "")
	if strings.Contains(rec.Body.String(), `class="source-code"`) {
		t.Error("no source section expected without source")
	}
}
