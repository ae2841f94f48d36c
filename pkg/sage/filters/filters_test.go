package filters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/sage"
	"github.com/sambeau/sage/pkg/sage/vfs"
)

func evalWith(t *testing.T, reg *Registry, src string) object.Object {
	t.Helper()
	result, err := sage.Evaluate(context.Background(), src, sage.Options{Host: reg, Logger: sage.NullLogger()})
	if err != nil {
		t.Fatalf("eval(%q) returned error: %v", src, err)
	}
	return result
}

func TestTextFilters(t *testing.T) {
	reg := Standard(Config{})
	tests := []struct {
		input    string
		expected string
	}{
		{`(/upper "abc")`, "ABC"},
		{`(/lower "ABC")`, "abc"},
		{`(/trim "  x ")`, "x"},
		{`(/join '("a" "b") "-")`, "a-b"},
		{`(/join '(1 2))`, "12"},
		{`(/title "hello world")`, "Hello World"},
		{`(/format-number 1234567)`, "1,234,567"},
		{`(/format-number 1234.5 "de")`, "1.234,5"},
		{`(/html-text "<p>Hello <b>world</b></p><script>x()</script><p>Bye &amp; now</p>")`, "Hello world Bye & now"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := evalWith(t, reg, tt.input)
			if got := object.Display(result); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	result := evalWith(t, Standard(Config{}), `(/markdown "# Hi")`)
	if got := object.Display(result); got != "<h1 id=\"hi\">Hi</h1>\n" {
		t.Errorf("got %q", got)
	}
	result = evalWith(t, Standard(Config{}), `(/markdown "some *emphasis*")`)
	if got := object.Display(result); !strings.Contains(got, "<em>emphasis</em>") {
		t.Errorf("got %q", got)
	}
}

func TestDates(t *testing.T) {
	tests := []struct {
		name     string
		locale   string
		input    string
		expected string
	}{
		{"us long", "", `(/date-format "2024-03-05" "long")`, "March 5, 2024"},
		{"german long", "", `(/date-format "2024-03-05" "long" "de")`, "5 März 2024"},
		{"config locale", "fr_FR", `(/date-format "2024-03-05" "long")`, "5 mars 2024"},
		{"iso from /date", "", `(/date-format (/date "2024-03-05T10:00:00Z") "iso")`, "2024-03-05"},
		{"go layout", "", `(/date-format 0 "2006")`, "1970"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evalWith(t, Standard(Config{Locale: tt.locale}), tt.input)
			if got := object.Display(result); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}

	_, err := sage.Evaluate(context.Background(), `(/date "not a date at all")`, sage.Options{Host: Standard(Config{})})
	if err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Errorf("bad date: error = %v", err)
	}
}

func TestSerializers(t *testing.T) {
	reg := Standard(Config{})
	out, err := sage.Render(context.Background(), `(/json {:b (list 1 2) :a "x"})`, sage.Options{Host: reg})
	if err != nil {
		t.Fatal(err)
	}
	if out != "{\"a\":\"x\",\"b\":[1,2]}\n" {
		t.Errorf("/json wrote %q", out)
	}

	out, err = sage.Render(context.Background(), `(/yaml {:name "sage"})`, sage.Options{Host: reg})
	if err != nil {
		t.Fatal(err)
	}
	if out != "name: sage\n" {
		t.Errorf("/yaml wrote %q", out)
	}

	result := evalWith(t, reg, `(/json (list 1 nil) 'encoded) encoded`)
	if got := object.Display(result); got != "[1,null]\n" {
		t.Errorf("bound json = %q", got)
	}
}

func TestDatabase(t *testing.T) {
	db := &Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db"), MaxOpen: 1}
	reg := Standard(Config{Database: db})
	t.Cleanup(func() { CloseDatabases() })

	src := `
(/db-exec "CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)")
(/db-exec "INSERT INTO people (name, age) VALUES (?, ?)" "ann" 41)
(/db-exec "INSERT INTO people (name, age) VALUES (?, ?)" '("bob" 7))
(list (/db-scalar "SELECT COUNT(*) FROM people")
      (/db-select "SELECT name, age FROM people ORDER BY id")
      (/db-scalar "SELECT name FROM people WHERE id = 99"))`
	result := evalWith(t, reg, src)
	want := `(2 ({:name "ann" :age 41} {:name "bob" :age 7}) nil)`
	if result.Inspect() != want {
		t.Errorf("got %s, want %s", result.Inspect(), want)
	}

	result = evalWith(t, reg, `(/db-exec "UPDATE people SET age = age + 1")`)
	if result.Inspect() != "2" {
		t.Errorf("rows affected = %s", result.Inspect())
	}

	_, err := sage.Evaluate(context.Background(), `(/db-select "SELECT * FROM missing")`, sage.Options{Host: reg})
	if err == nil || !strings.Contains(err.Error(), "/db-select") {
		t.Errorf("bad query: error = %v", err)
	}
}

func TestDatabaseDriverNames(t *testing.T) {
	tests := []struct {
		in, out string
		ok      bool
	}{
		{"", "sqlite", true},
		{"SQLite3", "sqlite", true},
		{"mariadb", "mysql", true},
		{"postgresql", "postgres", true},
		{"oracle", "", false},
	}
	for _, tt := range tests {
		got, err := driverName(tt.in)
		if got != tt.out || (err == nil) != tt.ok {
			t.Errorf("driverName(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, ok := Standard(Config{}).Resolve("db-select"); ok {
		t.Errorf("database operations registered without a database")
	}
}

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "fetched "+r.URL.Path)
	}))
	defer srv.Close()

	reg := Standard(Config{HTTPClient: srv.Client()})
	result := evalWith(t, reg, fmt.Sprintf(`(str (/http-get %q) "!")`, srv.URL+"/page"))
	if got := object.Display(result); got != "fetched /page!" {
		t.Errorf("got %q", got)
	}

	_, err := sage.Evaluate(context.Background(), fmt.Sprintf(`(/http-get %q)`, srv.URL+"/fail"), sage.Options{Host: reg})
	if err == nil || !strings.Contains(err.Error(), "http 500") {
		t.Errorf("error = %v, want http 500", err)
	}
}

func TestPDFText(t *testing.T) {
	fs := vfs.NewMemFS()
	if err := fs.WriteFile("/notes.pdf", []byte("plain text, not a PDF")); err != nil {
		t.Fatal(err)
	}

	_, err := sage.Evaluate(context.Background(), `(/pdf-text "/notes.pdf")`, sage.Options{Host: Standard(Config{FS: fs})})
	if err == nil || !strings.Contains(err.Error(), "/pdf-text") {
		t.Errorf("non-PDF: error = %v", err)
	}

	_, err = sage.Evaluate(context.Background(), `(/pdf-text "/notes.pdf")`, sage.Options{Host: Standard(Config{})})
	if err == nil || !strings.Contains(err.Error(), "no file system") {
		t.Errorf("no fs: error = %v", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := Standard(Config{})
	names := reg.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
	if _, ok := reg.Resolve("upper"); !ok {
		t.Errorf("upper missing")
	}

	reg.Register("upper", func(context.Context, []any) (any, error) { return "replaced", nil })
	result := evalWith(t, reg, `(/upper "a")`)
	if object.Display(result) != "replaced" {
		t.Errorf("Register should replace an existing operation")
	}

	_, err := sage.Evaluate(context.Background(), `(/uper "a")`, sage.Options{Host: reg})
	if err == nil || !strings.Contains(err.Error(), "Did you mean `/upper`") {
		t.Errorf("error = %v, want suggestion", err)
	}
}
