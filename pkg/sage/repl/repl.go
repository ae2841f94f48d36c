// Package repl is the interactive Sage shell.
package repl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/lexer"
	"github.com/sambeau/sage/pkg/sage/object"
	"github.com/sambeau/sage/pkg/sage/sage"
)

const (
	Prompt             = "sage> "
	RawPrompt          = "sage:> "
	ContinuationPrompt = "  ... "
)

const logo = `
█▀ ▄▀█ █▀▀ █▀▀
▄█ █▀█ █▄█ ██▄ `

// HistoryFile is where line history is kept between runs.
var HistoryFile = filepath.Join(os.TempDir(), ".sage_history")

var (
	errorColor = color.New(color.FgRed, color.Bold)
	hintColor  = color.New(color.FgYellow)
)

// Start runs the REPL on the terminal until the user quits or ctx is
// cancelled. opts configures the underlying session; its Logger is
// replaced so printed output reaches out.
func Start(ctx context.Context, out io.Writer, opts sage.Options, version string) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(HistoryFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(HistoryFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	r := New(ctx, out, opts)
	line.SetCompleter(r.Complete)

	fmt.Fprintf(out, "%s\n", logo)
	fmt.Fprintln(out, "v", version)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit, ':help' for commands")
	fmt.Fprintln(out)

	r.Loop(func(p string) (string, error) {
		if ctx.Err() != nil {
			return "", io.EOF
		}
		s, err := line.Prompt(p)
		if err == liner.ErrPromptAborted {
			return "", ErrAborted
		}
		if err == nil && strings.TrimSpace(s) != "" {
			line.AppendHistory(s)
		}
		return s, err
	})
}

// ErrAborted is returned by a prompt function when the user pressed
// Ctrl+C. It discards any partly typed form.
var ErrAborted = stderrors.New("aborted")

// REPL evaluates lines in one session.
type REPL struct {
	session *sage.Session
	out     io.Writer
	raw     bool
	buf     strings.Builder
}

// New returns a REPL writing results and printed output to out.
func New(ctx context.Context, out io.Writer, opts sage.Options) *REPL {
	opts.Logger = sage.WriterLogger(out)
	return &REPL{session: sage.NewSession(ctx, opts), out: out}
}

// Loop reads with prompt until it returns io.EOF or the user types exit.
func (r *REPL) Loop(prompt func(string) (string, error)) {
	for {
		p := Prompt
		if r.raw {
			p = RawPrompt
		}
		if r.buf.Len() > 0 {
			p = ContinuationPrompt
		}

		input, err := prompt(p)
		if err != nil {
			if err == ErrAborted {
				if r.buf.Len() > 0 {
					fmt.Fprintln(r.out, "^C (cleared)")
				} else {
					fmt.Fprintln(r.out, "^C")
				}
				r.buf.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(r.out, "Error reading input: %v\n", err)
			continue
		}
		if r.Feed(input) {
			fmt.Fprintln(r.out, "Goodbye!")
			return
		}
	}
}

// Feed handles one line of input and reports whether the user asked to
// quit. Lines are buffered until every bracket is closed.
func (r *REPL) Feed(input string) bool {
	trimmed := strings.TrimSpace(input)
	if r.buf.Len() == 0 {
		switch {
		case trimmed == "exit" || trimmed == "quit":
			return true
		case strings.HasPrefix(trimmed, ":"):
			r.command(trimmed)
			return false
		case trimmed == "":
			return false
		}
	}

	if r.buf.Len() > 0 {
		r.buf.WriteString("\n")
	}
	r.buf.WriteString(input)
	src := r.buf.String()
	if needsMoreInput(src) {
		return false
	}
	r.buf.Reset()

	result, err := r.session.Eval(src)
	if err != nil {
		printError(r.out, err)
		return false
	}
	if r.raw {
		if result != object.NIL {
			s := object.Display(result)
			io.WriteString(r.out, s)
			if !strings.HasSuffix(s, "\n") {
				io.WriteString(r.out, "\n")
			}
		}
		return false
	}
	fmt.Fprintln(r.out, result.Inspect())
	return false
}

func (r *REPL) command(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(r.out, "REPL Commands:")
		fmt.Fprintln(r.out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(r.out, "  :env            Show definitions made in this session")
		fmt.Fprintln(r.out, "  :clear          Discard all definitions")
		fmt.Fprintln(r.out, "  :raw            Toggle raw output (values shown as print would)")
		fmt.Fprintln(r.out, "  exit, quit      Exit the REPL")
	case ":env":
		printBindings(r.out, r.session.Bindings())
	case ":clear":
		r.session.Reset()
		fmt.Fprintln(r.out, "Environment cleared")
	case ":raw":
		r.raw = !r.raw
		if r.raw {
			fmt.Fprintln(r.out, "Raw output mode ON")
		} else {
			fmt.Fprintln(r.out, "Raw output mode OFF")
		}
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

func printBindings(out io.Writer, vars map[string]object.Object) {
	if len(vars) == 0 {
		fmt.Fprintln(out, "(no definitions)")
		return
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := vars[name]
		value := v.Inspect()
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		fmt.Fprintf(out, "  %s: %s = %s\n", name, object.TypeName(v), value)
	}
}

// Complete returns completions for the last word of line: bound names,
// special forms and, after a slash, nothing else.
func (r *REPL) Complete(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if last := line[len(line)-1]; last == ' ' || last == '\t' {
		return nil
	}

	start := strings.LastIndexAny(line, " \t([{'") + 1
	prefix, word := line[:start], line[start:]

	words := append(r.session.Symbols(), evaluator.SpecialForms()...)
	sort.Strings(words)

	var matches []string
	for i, w := range words {
		if i > 0 && words[i-1] == w {
			continue
		}
		if strings.HasPrefix(w, word) {
			matches = append(matches, prefix+w)
		}
	}
	return matches
}

// needsMoreInput reports whether src has unclosed brackets or an
// unterminated string.
func needsMoreInput(src string) bool {
	depth := 0
	for _, tok := range lexer.New(src).Tokens() {
		switch tok.Type {
		case lexer.LPAREN, lexer.LBRACKET, lexer.LBRACE:
			depth++
		case lexer.RPAREN, lexer.RBRACKET, lexer.RBRACE:
			depth--
		case lexer.UNTERMINATED_STRING:
			return true
		}
	}
	return depth > 0
}

func printError(out io.Writer, err error) {
	var se *serrors.SageError
	if !stderrors.As(err, &se) {
		errorColor.Fprintf(out, "Error: %v\n", err)
		return
	}
	label := "Error"
	if se.Class == serrors.ClassParse {
		label = "Parse error"
	}
	if se.Line > 0 {
		errorColor.Fprintf(out, "%s: line %d, column %d\n", label, se.Line, se.Column)
	} else {
		errorColor.Fprintf(out, "%s\n", label)
	}
	fmt.Fprintf(out, "  %s\n", se.Message)
	for _, hint := range se.Hints {
		hintColor.Fprintf(out, "  hint: %s\n", hint)
	}
}
