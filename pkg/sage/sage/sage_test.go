package sage

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"last value", "(def x 2) (* x 21)", "42"},
		{"empty source", "", "nil"},
		{"comments only", "; nothing here\n", "nil"},
		{"return value", "(return 'early) 'late", "early"},
		{"page vars are strings", "<!--\ntitle Hello\n-->\n(str title \"!\")", `"Hello!"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Evaluate(context.Background(), tt.input, Options{Logger: NullLogger()})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Inspect() != tt.expected {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.input, result.Inspect(), tt.expected)
			}
		})
	}
}

func TestRender(t *testing.T) {
	src := `
(println "<ul>")
(doseq (i '(0 1 2)) (println (format "<li>~a</li>" i)))
(print "</ul>")`
	out, err := Render(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<ul>\n<li>0</li>\n<li>1</li>\n<li>2</li>\n</ul>"
	if out != want {
		t.Errorf("Render = %q, want %q", out, want)
	}
}

func TestRenderPage(t *testing.T) {
	src := "<!--\ncontent-type text/plain\n-->\n(print \"hi\")\n42"
	res, err := New(Options{}).RenderPage(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Output != "hi" || res.Value.Inspect() != "42" {
		t.Errorf("result = %+v", res)
	}
	if res.PageVars["content-type"] != "text/plain" {
		t.Errorf("page vars = %v", res.PageVars)
	}
}

func TestGlobalsAndHost(t *testing.T) {
	host := evaluator.MapRegistry{
		"greet": {Name: "greet", Method: func(_ context.Context, args []any) (any, error) {
			return "hello " + args[0].(string), nil
		}},
	}
	opts := Options{
		Host:    host,
		Globals: map[string]any{"user": "ann", "query": map[string]any{"page": "2"}},
	}
	out, err := Render(context.Background(), `(println (/greet user) (get query :page))`, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello ann 2\n" {
		t.Errorf("Render = %q", out)
	}
}

func TestLoadThroughOptions(t *testing.T) {
	fs := vfs.NewMemFS()
	if err := fs.WriteFile("/scripts/lib.l", []byte("(defn twice (x) (* 2 x))")); err != nil {
		t.Fatal(err)
	}
	result, err := Evaluate(context.Background(), "(load 'lib) (twice 21)", Options{
		FS:    fs,
		Root:  "/scripts",
		Cache: evaluator.NewModuleCache(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inspect() != "42" {
		t.Errorf("result = %s", result.Inspect())
	}
}

func TestErrorsNameTheFile(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"(car 1", "PARSE-0002"},
		{"(car 1)", "TYPE-0001"},
		{"undefined-thing", "UNDEF-0001"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Evaluate(context.Background(), tt.input, Options{Filename: "page.l"})
			var se *serrors.SageError
			if !stderrors.As(err, &se) {
				t.Fatalf("error = %v, want *SageError", err)
			}
			if se.Code != tt.code || se.File != "page.l" {
				t.Errorf("got %s in %q, want %s in page.l", se.Code, se.File, tt.code)
			}
			if !strings.HasPrefix(se.Error(), "page.l: ") {
				t.Errorf("message %q does not start with the file name", se.Error())
			}
		})
	}
}

func TestMaxDepthOption(t *testing.T) {
	_, err := Evaluate(context.Background(), "(defn f (n) (f n)) (f 1)", Options{MaxDepth: 25})
	var se *serrors.SageError
	if !stderrors.As(err, &se) || se.Code != "STATE-0002" {
		t.Fatalf("error = %v, want STATE-0002", err)
	}
	if se.Data["Limit"] != 25 {
		t.Errorf("limit = %v", se.Data["Limit"])
	}
}

func TestEvaluationsAreIsolated(t *testing.T) {
	if _, err := Evaluate(context.Background(), "(def leaked 1)", Options{}); err != nil {
		t.Fatal(err)
	}
	result, err := Evaluate(context.Background(), "(bound? leaked)", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result != object.NIL {
		t.Errorf("definition leaked into a later evaluation")
	}
}

func TestSession(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(context.Background(), Options{Logger: WriterLogger(&buf)})

	if _, err := s.Eval("(defn sq (x) (* x x))"); err != nil {
		t.Fatal(err)
	}
	result, err := s.Eval("(println (sq 3)) (sq 4)")
	if err != nil {
		t.Fatal(err)
	}
	if result.Inspect() != "16" || buf.String() != "9\n" {
		t.Errorf("result = %s, output = %q", result.Inspect(), buf.String())
	}

	if _, err := s.Eval("(car 1)"); err == nil {
		t.Fatalf("expected error")
	}
	if result, err := s.Eval("(sq 5)"); err != nil || result.Inspect() != "25" {
		t.Errorf("session unusable after error: %v %v", result, err)
	}

	found := false
	for _, name := range s.Symbols() {
		if name == "sq" {
			found = true
		}
	}
	if !found {
		t.Errorf("Symbols() missing sq")
	}
}

func TestBufferedLogger(t *testing.T) {
	l := NewBufferedLogger()
	l.Log("a", 1)
	l.LogLine(" end")
	l.LogLine("second")
	l.Log("tail")

	if got := l.String(); got != "a 1 end\nsecond\ntail" {
		t.Errorf("String() = %q", got)
	}
	if lines := l.Lines(); len(lines) != 2 || lines[0] != "a 1 end" {
		t.Errorf("Lines() = %q", lines)
	}
	l.Reset()
	if l.String() != "" {
		t.Errorf("Reset left %q", l.String())
	}
}

func TestSessionBindingsAndReset(t *testing.T) {
	s := NewSession(context.Background(), Options{Logger: NullLogger()})
	if _, err := s.Eval("(def x 1) (defn f () x)"); err != nil {
		t.Fatal(err)
	}
	b := s.Bindings()
	if len(b) != 2 || b["x"].Inspect() != "1" {
		t.Errorf("Bindings() = %v", b)
	}
	s.Reset()
	if len(s.Bindings()) != 0 {
		t.Errorf("Reset kept %v", s.Bindings())
	}
	if _, err := s.Eval("x"); err == nil {
		t.Errorf("x still bound after Reset")
	}
}
