// Package errors provides structured error types for the Sage language.
//
// Every condition raised while reading, evaluating or loading Sage code is a
// SageError: a class, a catalog code, a rendered message, optional hints and,
// where known, the source position and file. Host and network failures are
// kept in Err so callers can still use errors.Is and errors.As on them.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse     ErrorClass = "parse"     // Reader errors
	ClassUndefined ErrorClass = "undefined" // Unbound symbols
	ClassArity     ErrorClass = "arity"     // Wrong argument count
	ClassType      ErrorClass = "type"      // Type mismatches
	ClassOperator  ErrorClass = "operator"  // Invalid operations
	ClassHost      ErrorClass = "host"      // Host filters and script methods
	ClassLoad      ErrorClass = "load"      // Module loading
	ClassState     ErrorClass = "state"     // Cancellation and limits
)

// SageError represents any error from reading or evaluation.
type SageError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based line (0 if unknown)
	Column  int            `json:"column"` // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Err     error          `json:"-"` // wrapped cause (host or network error)
}

// Error implements the error interface.
func (e *SageError) Error() string {
	return e.String()
}

// Unwrap exposes the wrapped cause.
func (e *SageError) Unwrap() error {
	return e.Err
}

// String returns a formatted string representation of the error.
func (e *SageError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *SageError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Parse error")
	case ClassLoad:
		sb.WriteString("Load error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  hint: ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *SageError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *SageError) WithFile(file string) *SageError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *SageError) WithPosition(line, column int) *SageError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// HasPosition reports whether a source position is attached.
func (e *SageError) HasPosition() bool {
	return e.Line > 0
}

// IsParseError returns true if this is a reader error.
func (e *SageError) IsParseError() bool {
	return e.Class == ClassParse
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Reader
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "unexpected '{{.Token}}'",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "expected '{{.Expected}}' to close '{{.Open}}', got end of input",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "map literal needs key/value pairs, got {{.Count}} items",
		Hints:    []string{"{ :key value :other value }"},
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "unterminated page variables block (missing '{{.Close}}')",
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "quote must be followed by a form",
	},
	"PARSE-0008": {
		Class:    ClassParse,
		Template: "mismatched '{{.Got}}', expected '{{.Expected}}'",
	},

	// Symbols
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "unbound symbol: {{.Name}}",
	},

	// Arity
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "{{.Name}} expects {{.Expected}} arguments, got {{.Got}}",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "{{.Name}} expects at least {{.Expected}} arguments, got {{.Got}}",
	},
	"ARITY-0003": {
		Class:    ClassArity,
		Template: "malformed {{.Name}}: {{.Detail}}",
	},

	// Types
	"TYPE-0001": {
		Class:    ClassType,
		Template: "{{.Function}} expects {{.Expected}}, got {{.Got}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "cannot call {{.Type}} as a function",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "{{.Function}}: parameter list must contain only symbols, got {{.Got}}",
	},

	// Operators
	"OP-0001": {
		Class:    ClassOperator,
		Template: "division by zero",
	},
	"OP-0002": {
		Class:    ClassOperator,
		Template: "{{.Function}}: {{.Detail}}",
	},

	// Host bridge
	"HOST-0001": {
		Class:    ClassHost,
		Template: "host operation not found: /{{.Name}}",
	},
	"HOST-0002": {
		Class:    ClassHost,
		Template: "host operation /{{.Name}} failed: {{.Error}}",
	},
	"HOST-0003": {
		Class:    ClassHost,
		Template: "callback passed to /{{.Name}} called after the operation returned",
		Hints:    []string{"call the function before the host operation returns, or return a Future and call it from Await"},
	},

	// Module loading
	"LOAD-0001": {
		Class:    ClassLoad,
		Template: "remote loading disabled: cannot load {{.Locator}}",
	},
	"LOAD-0002": {
		Class:    ClassLoad,
		Template: "failed to fetch {{.Locator}}: {{.Error}}",
	},
	"LOAD-0003": {
		Class:    ClassLoad,
		Template: "cannot read {{.Locator}}: {{.Error}}",
	},
	"LOAD-0004": {
		Class:    ClassLoad,
		Template: "circular load detected: {{.Chain}}",
	},
	"LOAD-0005": {
		Class:    ClassLoad,
		Template: "index key not found: {{.Key}}",
	},
	"LOAD-0006": {
		Class:    ClassLoad,
		Template: "invalid locator: {{.Locator}}",
		Hints:    []string{"(load 'lib)", `(load "/dir/lib.l")`, `(load "gist:<id>")`, `(load "index:<key>")`},
	},
	"LOAD-0007": {
		Class:    ClassLoad,
		Template: "file {{.File}} not found in {{.Locator}}",
	},
	"LOAD-0008": {
		Class:    ClassLoad,
		Template: "in {{.Locator}}: {{.Message}}",
	},

	// State
	"STATE-0001": {
		Class:    ClassState,
		Template: "evaluation cancelled: {{.Error}}",
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "maximum recursion depth of {{.Limit}} exceeded",
	},
}

// New creates a SageError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *SageError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &SageError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &SageError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a SageError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *SageError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// Wrap creates a catalog error that keeps cause as its wrapped error.
// The cause's message is available to the template as {{.Error}}.
func Wrap(code string, cause error, data map[string]any) *SageError {
	if data == nil {
		data = map[string]any{}
	}
	if cause != nil {
		data["Error"] = cause.Error()
	}
	err := New(code, data)
	err.Err = cause
	return err
}

// NewSimple creates a simple error without using the catalog.
func NewSimple(class ErrorClass, message string) *SageError {
	return &SageError{
		Class:   class,
		Message: message,
	}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// ============================================================================
// Fuzzy Matching - "Did you mean?" suggestions
// ============================================================================

func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// threshold scales the allowed edit distance with the input length:
// 1 edit up to 3 characters, 2 up to 6, 3 beyond.
func threshold(input string) int {
	switch {
	case len(input) >= 7:
		return 3
	case len(input) >= 4:
		return 2
	default:
		return 1
	}
}

// FindClosestMatch finds the closest match to input among candidates.
// Returns "" when nothing is within the length-based threshold.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	inputLower := strings.ToLower(input)
	var bestMatch string
	bestDistance := -1

	for _, candidate := range sorted {
		dist := levenshteinDistance(inputLower, strings.ToLower(candidate))
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= 0 || bestDistance > threshold(input) {
		return ""
	}
	return bestMatch
}

// NewUnboundSymbol creates an unbound symbol error with an optional
// "Did you mean" hint drawn from the bound names.
func NewUnboundSymbol(name string, bound []string) *SageError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, bound); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// NewHostNotFound creates a host-operation-not-found error with an optional
// suggestion drawn from the registered operation names.
func NewHostNotFound(name string, registered []string) *SageError {
	err := New("HOST-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, registered); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `/"+suggestion+"`?")
	}
	return err
}
