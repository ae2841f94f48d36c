package evaluator

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/reader"
)

// bufferLogger collects output the way the page renderer does.
type bufferLogger struct {
	sb strings.Builder
}

func (b *bufferLogger) Log(values ...any) {
	for i, v := range values {
		if i > 0 {
			b.sb.WriteString(" ")
		}
		fmt.Fprint(&b.sb, v)
	}
}

func (b *bufferLogger) LogLine(values ...any) {
	b.Log(values...)
	b.sb.WriteString("\n")
}

func (b *bufferLogger) String() string { return b.sb.String() }

type testRun struct {
	ev  *Evaluator
	env *Environment
	out *bufferLogger
}

func newTestRun(ctx context.Context) *testRun {
	out := &bufferLogger{}
	ev := New(ctx)
	ev.Out = out
	return &testRun{ev: ev, env: NewRootEnvironment(), out: out}
}

func (r *testRun) eval(src string) (object.Object, error) {
	forms, err := reader.ParseForms(src)
	if err != nil {
		return nil, err
	}
	return r.ev.Run(forms, r.env)
}

func testEval(t *testing.T, src string) object.Object {
	t.Helper()
	result, err := newTestRun(context.Background()).eval(src)
	if err != nil {
		t.Fatalf("eval(%q) returned error: %v", src, err)
	}
	return result
}

func errorCode(err error) string {
	var se *serrors.SageError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

func expectErrorCode(t *testing.T, src, code string) *serrors.SageError {
	t.Helper()
	_, err := newTestRun(context.Background()).eval(src)
	if err == nil {
		t.Fatalf("eval(%q) expected error %s, got none", src, code)
	}
	var se *serrors.SageError
	if !stderrors.As(err, &se) {
		t.Fatalf("eval(%q) error is %T, want *SageError", src, err)
	}
	if se.Code != code {
		t.Fatalf("eval(%q) error code = %s, want %s (%v)", src, se.Code, code, err)
	}
	return se
}

func TestEvalExpressions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"addition", "(+ 1 2 3)", "6"},
		{"subtraction", "(- 10 4 1)", "5"},
		{"negation", "(- 5)", "-5"},
		{"multiplication", "(* 2 4)", "8"},
		{"exact division stays integer", "(/ 10 2)", "5"},
		{"inexact division", "(/ 10 4)", "2.5"},
		{"mod takes divisor sign", "(mod -7 3)", "2"},
		{"if false branch", "(if nil 1 2)", "2"},
		{"zero is truthy", "(if 0 1 2)", "1"},
		{"if without else", "(if nil 1)", "nil"},
		{"let sequential", "(let ((x 2) (y (* x 3))) (+ x y))", "8"},
		{"let vector bindings", "(let [a 1 b 2] (list a b))", "(1 2)"},
		{"let bare name", "(let (x) x)", "nil"},
		{"cond", "(cond ((= 1 2) 'a) ((= 1 1) 'b))", "b"},
		{"cond without match", "(cond ((= 1 2) 'a))", "nil"},
		{"and returns last", "(and 1 2 3)", "3"},
		{"and short circuits", "(and 1 nil (car 5))", "nil"},
		{"or returns first truthy", "(or nil 2 (car 5))", "2"},
		{"when", "(when t 1 2)", "2"},
		{"unless", "(unless t 1 2)", "nil"},
		{"progn", "(progn 1 2 3)", "3"},
		{"quote", "(quote (a b))", "(a b)"},
		{"quote shorthand", "'(1 (2 3))", "(1 (2 3))"},
		{"empty list is nil", "()", "nil"},
		{"empty call to list", "(list)", "nil"},
		{"cons", "(cons 1 '(2 3))", "(1 2 3)"},
		{"car", "(car '(1 2))", "1"},
		{"cdr", "(cdr '(1 2 3))", "(2 3)"},
		{"cdr of single", "(cdr '(1))", "nil"},
		{"nth out of range", "(nth '(1 2) 5)", "nil"},
		{"reverse", "(reverse '(1 2 3))", "(3 2 1)"},
		{"range", "(range 3)", "(0 1 2)"},
		{"range with step", "(range 1 10 3)", "(1 4 7)"},
		{"range counting down", "(range 3 0 -1)", "(3 2 1)"},
		{"map", "(map (fn (x) (* x x)) '(1 2 3))", "(1 4 9)"},
		{"map over two lists", "(map + '(1 2) '(10 20 30))", "(11 22)"},
		{"reduce with init", "(reduce + 0 '(1 2 3 4))", "10"},
		{"reduce without init", "(reduce * '(1 2 3 4))", "24"},
		{"sort", "(sort '(3 1 2))", "(1 2 3)"},
		{"sort with predicate", "(sort '(1 3 2) >)", "(3 2 1)"},
		{"apply", "(apply + 1 '(2 3))", "6"},
		{"length counts runes", "(length \"héllo\")", "5"},
		{"append", "(append '(1) '(2 3))", "(1 2 3)"},
		{"vector literal evaluates", "(let ((x 2)) [x (+ x 1)])", "[2 3]"},
		{"dotimes returns nil", "(dotimes (i 3) i)", "nil"},
		{"while loop", "(def i 0) (while (< i 5) (setq i (+ i 1))) i", "5"},
		{"type-of", "(type-of \"s\")", ":string"},
		{"def returns symbol", "(def x 1)", "x"},
		{"no forms", "", "nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testEval(t, tt.input)
			if result.Inspect() != tt.expected {
				t.Errorf("eval(%q) = %s, want %s", tt.input, result.Inspect(), tt.expected)
			}
		})
	}
}

func TestPredicatesAnswerTOrNil(t *testing.T) {
	tests := []struct {
		input    string
		expected object.Object
	}{
		{"(even? 4)", object.TRUE},
		{"(even? 3)", object.NIL},
		{"(odd? 3)", object.TRUE},
		{"(odd? 4)", object.NIL},
		{"(odd? -3)", object.TRUE},
		{"(number? 'a)", object.NIL},
		{"(number? 1.5)", object.TRUE},
		{"(string? \"s\")", object.TRUE},
		{"(not nil)", object.TRUE},
		{"(not 0)", object.NIL},
		{"(empty? '())", object.TRUE},
		{"(zero? 0)", object.TRUE},
		{"(= 1 1.0)", object.TRUE},
		{"(< 1 2 3)", object.TRUE},
		{"(< 1 3 2)", object.NIL},
		{"(eq 'a 'a)", object.TRUE},
		{"(eq '(1) '(1))", object.NIL},
		{"(equal '(1 2) '(1 2))", object.TRUE},
		{"(fn? car)", object.TRUE},
		{"(list? nil)", object.TRUE},
		{"false", object.NIL},
		{"true", object.TRUE},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := testEval(t, tt.input)
			if result != tt.expected {
				t.Errorf("eval(%q) = %s, want %s", tt.input, result.Inspect(), tt.expected.Inspect())
			}
		})
	}
}

func TestStringBuiltins(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`(str "a" 1 :k)`, "a1:k"},
		{`(format "~a-~s-~d~%" "x" "y" 3.7)`, "x-\"y\"-3\n"},
		{`(format "~2f ~~" 3.14159)`, "3.14 ~"},
		{`(sprintf "%s=%d" "n" 4)`, "n=4"},
		{`(upcase "abc")`, "ABC"},
		{`(trim "  x ")`, "x"},
		{`(join '("a" "b" "c") ", ")`, "a, b, c"},
		{`(join "-" '(1 2))`, "1-2"},
		{`(append "ab" "cd")`, "abcd"},
		{`(reverse "abc")`, "cba"},
		{`(repr "q")`, `"q"`},
		{`(to-string 12)`, "12"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := testEval(t, tt.input)
			if got := object.Display(result); got != tt.expected {
				t.Errorf("eval(%s) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFilterEven(t *testing.T) {
	result := testEval(t, "(filter even? '(1 2 3 4 5 6))")
	if result.Inspect() != "(2 4 6)" {
		t.Errorf("got %s, want (2 4 6)", result.Inspect())
	}
}

func TestMapcanSplicesResults(t *testing.T) {
	input := "(mapcan (lambda (x) (and (number? x) (list x))) '(a 1 b c 3 4 d 5))"
	result := testEval(t, input)
	if result.Inspect() != "(1 3 4 5)" {
		t.Errorf("got %s, want (1 3 4 5)", result.Inspect())
	}

	result = testEval(t, "(mapcan (fn (x) (if (even? x) x)) '(1 2 3 4))")
	if result.Inspect() != "(2 4)" {
		t.Errorf("non-list results: got %s, want (2 4)", result.Inspect())
	}
}

func TestMappingLiteralMatchesNewMap(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"literal equals constructor", "(equal { :a 1 :b 2 :c 3 } (new-map '(a 1) '(b 2) '(c 3)))", "t"},
		{"bare symbol keys", "{a 1 b 2}", "{:a 1 :b 2}"},
		{"values are evaluated", "(let ((x 5)) {:x (* x 2)})", "{:x 10}"},
		{"nested lookup", "(get (get { :a { :b 2 } } :a) :b)", "2"},
		{"missing key default", "(get {:a 1} :z 0)", "0"},
		{"assoc keeps original", "(def m {:a 1}) (assoc m :b 2) m", "{:a 1}"},
		{"keys in insertion order", "(keys {:b 1 :a 2})", "(:b :a)"},
		{"empty mapping", "{}", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testEval(t, tt.input)
			if result.Inspect() != tt.expected {
				t.Errorf("eval(%q) = %s, want %s", tt.input, result.Inspect(), tt.expected)
			}
		})
	}
}

func TestBoundP(t *testing.T) {
	tests := []struct {
		input    string
		expected object.Object
	}{
		{"(setq id 1) (bound? id)", object.TRUE},
		{"(bound? id2)", object.NIL},
		{"(setq id 1) (bound? id id2)", object.NIL},
		{"(setq id 1) (bound? 'id)", object.TRUE},
		{"(bound? car)", object.TRUE},
		{"(let ((x 1)) (bound? x))", object.TRUE},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := testEval(t, tt.input)
			if result != tt.expected {
				t.Errorf("eval(%q) = %s, want %s", tt.input, result.Inspect(), tt.expected.Inspect())
			}
		})
	}
}

func TestDoseqPrintsInOrder(t *testing.T) {
	run := newTestRun(context.Background())
	result, err := run.eval("(doseq (i '(0 1 2)) (println i))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != object.NIL {
		t.Errorf("doseq returned %s, want nil", result.Inspect())
	}
	if got := run.out.String(); got != "0\n1\n2\n" {
		t.Errorf("output = %q, want %q", got, "0\n1\n2\n")
	}
}

func TestDoseqOverMapping(t *testing.T) {
	run := newTestRun(context.Background())
	_, err := run.eval(`(doseq (e {:a 1 :b 2}) (print (car e) (second e) ""))`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := run.out.String(); got != ":a 1 :b 2 " {
		t.Errorf("output = %q", got)
	}
}

func TestDefnAndArity(t *testing.T) {
	result := testEval(t, "(defn f [a b c] (+ a b c)) (f 1 2 3)")
	if result.Inspect() != "6" {
		t.Errorf("got %s, want 6", result.Inspect())
	}

	se := expectErrorCode(t, "(defn f [a b c] (+ a b c)) (f 1 2)", "ARITY-0001")
	if se.Data["Expected"] != 3 || se.Data["Got"] != 2 {
		t.Errorf("arity data = %v", se.Data)
	}
	expectErrorCode(t, "(defun g (x) x) (g)", "ARITY-0001")
}

func TestRestParameters(t *testing.T) {
	result := testEval(t, "(defn g [a &rest more] more) (g 1 2 3)")
	if result.Inspect() != "(2 3)" {
		t.Errorf("got %s, want (2 3)", result.Inspect())
	}
	result = testEval(t, "(defn g [a &rest more] more) (g 1)")
	if result != object.NIL {
		t.Errorf("empty rest = %s, want nil", result.Inspect())
	}
	expectErrorCode(t, "(defn g [a &rest more] more) (g)", "ARITY-0002")
}

func TestClosuresCaptureFrames(t *testing.T) {
	input := `
(defn make-counter []
  (let ((n 0))
    (fn () (setq n (+ n 1)))))
(def c1 (make-counter))
(def c2 (make-counter))
(c1) (c1) (c2)
(list (c1) (c2))`
	result := testEval(t, input)
	if result.Inspect() != "(3 2)" {
		t.Errorf("got %s, want (3 2)", result.Inspect())
	}
}

func TestSetqAssignsNearestBinding(t *testing.T) {
	result := testEval(t, "(def x 1) (defn bump () (setq x (+ x 1))) (bump) (bump) x")
	if result.Inspect() != "3" {
		t.Errorf("got %s, want 3", result.Inspect())
	}

	result = testEval(t, "(let ((y 1)) (setq z 5)) (bound? z)")
	if result != object.NIL {
		t.Errorf("setq of a new name inside let leaked to the root frame")
	}

	result = testEval(t, "(setq a 1 b (+ a 1))")
	if result.Inspect() != "2" {
		t.Errorf("multi-pair setq = %s, want 2", result.Inspect())
	}
}

func TestReturn(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		output   string
	}{
		{"stops top level", "(println 1) (return 42) (println 2)", "42", "1\n"},
		{"bare return", "(return) 5", "nil", ""},
		{"inside function ends evaluation", "(defn f () (return 7) 8) (+ 1 (f)) (println 9)", "7", ""},
		{"inside doseq", "(doseq (x '(1 2 3)) (when (= x 2) (return x))) 99", "2", ""},
		{"inside map", "(map (fn (x) (return x)) '(5 6))", "5", ""},
		{"inside filter", "(filter (fn (x) (return 0)) '(5 6))", "0", ""},
		{"inside let binding", "(let ((a (return 3))) 4)", "3", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newTestRun(context.Background())
			result, err := run.eval(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := result.(*ReturnValue); ok {
				t.Fatalf("Run leaked a *ReturnValue")
			}
			if result.Inspect() != tt.expected {
				t.Errorf("result = %s, want %s", result.Inspect(), tt.expected)
			}
			if run.out.String() != tt.output {
				t.Errorf("output = %q, want %q", run.out.String(), tt.output)
			}
		})
	}
}

func TestUnboundSymbolSuggestsName(t *testing.T) {
	se := expectErrorCode(t, "(def greeting 1) (+ greting 1)", "UNDEF-0001")
	if len(se.Hints) == 0 || !strings.Contains(se.Hints[0], "greeting") {
		t.Errorf("hints = %v, want a suggestion for greeting", se.Hints)
	}
	if se.Line != 1 || se.Column != 18 {
		t.Errorf("position = %d:%d, want 1:18", se.Line, se.Column)
	}
}

func TestErrorsCarryInnermostPosition(t *testing.T) {
	se := expectErrorCode(t, "(+ 1\n  (car 5))", "TYPE-0001")
	if se.Line != 2 || se.Column != 3 {
		t.Errorf("position = %d:%d, want 2:3", se.Line, se.Column)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"(1 2)", "TYPE-0002"},
		{"(+ 1 \"a\")", "TYPE-0001"},
		{"(/ 1 0)", "OP-0001"},
		{"(mod 1 0)", "OP-0001"},
		{"(range 0 5 0)", "OP-0002"},
		{"(if)", "ARITY-0003"},
		{"(setq x)", "ARITY-0003"},
		{"(fn (1) 1)", "TYPE-0003"},
		{"(quote)", "ARITY-0001"},
		{"(car 1 2)", "ARITY-0001"},
		{"(new-map '(1 2 3))", "TYPE-0001"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expectErrorCode(t, tt.input, tt.code)
		})
	}
}

func TestDepthLimit(t *testing.T) {
	run := newTestRun(context.Background())
	run.ev.MaxDepth = 50
	_, err := run.eval("(defn spin (n) (spin (+ n 1))) (spin 0)")
	if errorCode(err) != "STATE-0002" {
		t.Fatalf("error = %v, want STATE-0002", err)
	}

	run = newTestRun(context.Background())
	run.ev.MaxDepth = 50
	result, err := run.eval("(defn down (n) (if (= n 0) 'done (down (- n 1)))) (down 20)")
	if err != nil {
		t.Fatalf("recursion within the limit failed: %v", err)
	}
	if result.Inspect() != "done" {
		t.Errorf("got %s, want done", result.Inspect())
	}
}

func TestContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRun(ctx).eval("(+ 1 2)")
	if errorCode(err) != "STATE-0001" {
		t.Fatalf("error = %v, want STATE-0001", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancellation cause not wrapped: %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = newTestRun(ctx).eval("(while t 1)")
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("infinite loop not stopped by deadline: %v", err)
	}
}

func TestEvaluatorsAreIndependent(t *testing.T) {
	a := newTestRun(context.Background())
	b := newTestRun(context.Background())
	if _, err := a.eval("(defn car (x) 'mine)"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := b.eval("(car '(1 2))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inspect() != "1" {
		t.Errorf("redefinition leaked between environments: %s", result.Inspect())
	}
}

func TestClosureInspect(t *testing.T) {
	result := testEval(t, "(defn add [a &rest more] a) add")
	if result.Inspect() != "#<fn add [a &rest more]>" {
		t.Errorf("got %s", result.Inspect())
	}
	if testEval(t, "(fn (x) x)").Inspect() != "#<fn lambda [x]>" {
		t.Errorf("anonymous closure inspect mismatch")
	}
}

func TestIsSpecialForm(t *testing.T) {
	for _, name := range []string{"if", "let", "setq", "defn", "doseq", "return", "load", "bound?"} {
		if !IsSpecialForm(name) {
			t.Errorf("%s should be a special form", name)
		}
	}
	if IsSpecialForm("car") {
		t.Errorf("car is a builtin, not a special form")
	}
}
