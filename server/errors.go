package server

import (
	stderrors "errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	serrors "github.com/sambeau/sage/pkg/sage/errors"
	"github.com/sambeau/sage/pkg/sage/evaluator"
	"github.com/sambeau/sage/pkg/sage/lexer"
)

// DevError holds information about an error to display in dev mode.
type DevError struct {
	Type    string   // "parse", "load", "runtime"
	Code    string   // catalog code, e.g. UNDEF-0001
	File    string   // script path within the script root
	Line    int      // Line number (0 if unknown)
	Column  int      // Column number (0 if unknown)
	Message string   // Error message
	Hints   []string // Suggestions for fixing the error
}

// FromError creates a DevError from any evaluation error.
func FromError(err error, file string) *DevError {
	var se *serrors.SageError
	if !stderrors.As(err, &se) {
		return &DevError{Type: "runtime", File: file, Message: err.Error()}
	}
	errType := "runtime"
	switch se.Class {
	case serrors.ClassParse:
		errType = "parse"
	case serrors.ClassLoad:
		errType = "load"
	}
	if se.File != "" {
		file = se.File
	}
	return &DevError{
		Type:    errType,
		Code:    se.Code,
		File:    file,
		Line:    se.Line,
		Column:  se.Column,
		Message: se.Message,
		Hints:   se.Hints,
	}
}

// SourceLine represents a line of source code for display.
type SourceLine struct {
	Number  int
	Content string
	IsError bool
}

// errorPageStyles contains the inline CSS for the error page.
const errorPageStyles = `
<style>
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: #1e2b1e;
    color: #eee;
    min-height: 100vh;
    padding: 2rem;
  }
  .error-container { max-width: 900px; margin: 0 auto; }
  h1 { font-size: 1.5rem; margin-bottom: 1.5rem; color: #ff6b6b; }
  .error-type {
    display: inline-block;
    background: #ff6b6b;
    color: #1e2b1e;
    padding: 0.2rem 0.5rem;
    border-radius: 4px;
    font-size: 0.75rem;
    font-weight: 600;
    text-transform: uppercase;
    margin-right: 0.5rem;
  }
  .error-location, .error-message, .error-hint {
    background: #263826;
    border-radius: 8px;
    padding: 1rem 1.25rem;
    margin-bottom: 1rem;
  }
  .error-location { border-left: 4px solid #ff6b6b; }
  .file-path { color: #8fa58f; font-family: 'SF Mono', Monaco, monospace; font-size: 0.875rem; }
  .line-info { color: #f39c12; font-weight: 600; }
  .error-message {
    font-family: 'SF Mono', Monaco, monospace;
    font-size: 0.9rem;
    line-height: 1.6;
    color: #ff6b6b;
    white-space: pre-wrap;
  }
  .error-hint { color: #98c379; border-left: 4px solid #98c379; font-family: 'SF Mono', Monaco, monospace; }
  .source-code { background: #142014; border-radius: 8px; padding: 1rem 0; overflow-x: auto; }
  .source-line { display: flex; font-family: 'SF Mono', Monaco, monospace; font-size: 0.875rem; line-height: 1.6; }
  .source-line.error-line { background: rgba(255, 107, 107, 0.15); }
  .line-number { width: 4rem; text-align: right; padding-right: 1rem; color: #4a6a4a; flex-shrink: 0; }
  .line-content { flex: 1; white-space: pre; padding-right: 1rem; }
  .kw { color: #c678dd; }
  .str { color: #98c379; }
  .num { color: #d19a66; }
  .key { color: #e5c07b; }
  .host { color: #61afef; }
  .comment { color: #5c6370; font-style: italic; }
</style>
`

// renderDevErrorPage writes an HTML error page with the failing source
// lines. source may be empty when the file cannot be read.
func renderDevErrorPage(w http.ResponseWriter, devErr *DevError, source string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>Error - Sage Dev</title>\n")
	sb.WriteString(errorPageStyles)
	sb.WriteString("</head>\n<body>\n<div class=\"error-container\">\n")
	sb.WriteString("<h1>Sage Error</h1>\n")

	sb.WriteString("<div class=\"error-location\">\n")
	fmt.Fprintf(&sb, "<span class=\"error-type\">%s error</span>\n", html.EscapeString(devErr.Type))
	if devErr.File != "" {
		sb.WriteString("<span class=\"file-path\">")
		sb.WriteString(html.EscapeString(devErr.File))
		if devErr.Line > 0 {
			fmt.Fprintf(&sb, " : <span class=\"line-info\">%d</span> : <span class=\"line-info\">%d</span>", devErr.Line, devErr.Column)
		}
		sb.WriteString("</span>\n")
	}
	sb.WriteString("</div>\n")

	sb.WriteString("<div class=\"error-message\">")
	if devErr.Code != "" {
		sb.WriteString("[" + html.EscapeString(devErr.Code) + "] ")
	}
	sb.WriteString(html.EscapeString(devErr.Message))
	sb.WriteString("</div>\n")

	for _, h := range devErr.Hints {
		sb.WriteString("<div class=\"error-hint\">")
		sb.WriteString(html.EscapeString(h))
		sb.WriteString("</div>\n")
	}

	if lines := sourceContext(source, devErr.Line, 5); len(lines) > 0 {
		sb.WriteString("<div class=\"source-code\">\n")
		for _, line := range lines {
			class := "source-line"
			if line.IsError {
				class += " error-line"
			}
			fmt.Fprintf(&sb, "<div class=\"%s\"><span class=\"line-number\">%d</span><span class=\"line-content\">%s</span></div>\n",
				class, line.Number, highlightSage(line.Content))
		}
		sb.WriteString("</div>\n")
	}

	sb.WriteString("</div>\n</body>\n</html>")
	w.Write([]byte(sb.String()))
}

// sourceContext returns the lines of source around errorLine.
func sourceContext(source string, errorLine, contextLines int) []SourceLine {
	if source == "" || errorLine < 1 {
		return nil
	}
	all := strings.Split(source, "\n")
	if errorLine > len(all) {
		return nil
	}
	start := max(errorLine-contextLines, 1)
	end := min(errorLine+contextLines, len(all))

	lines := make([]SourceLine, 0, end-start+1)
	for n := start; n <= end; n++ {
		lines = append(lines, SourceLine{Number: n, Content: all[n-1], IsError: n == errorLine})
	}
	return lines
}

// highlightSage returns one line of source as escaped HTML with spans
// around strings, numbers, keywords, host names, special forms and the
// trailing comment.
func highlightSage(line string) string {
	runes := []rune(line)
	var sb strings.Builder
	pos := 0 // rune offset already written

	gap := func(end int) bool {
		text := runes[pos:end]
		for k, r := range text {
			if r == ';' {
				sb.WriteString(html.EscapeString(string(text[:k])))
				sb.WriteString("<span class=\"comment\">" + html.EscapeString(string(runes[pos+k:])) + "</span>")
				pos = len(runes)
				return true
			}
		}
		sb.WriteString(html.EscapeString(string(text)))
		pos = end
		return false
	}

	for _, tok := range lexer.New(line).Tokens() {
		if tok.Type == lexer.EOF {
			break
		}
		start := tok.Column - 1
		if start < pos || start > len(runes) {
			break
		}
		if gap(start) {
			return sb.String()
		}
		end := start + len([]rune(tok.Literal))
		if tok.Type == lexer.STRING || tok.Type == lexer.UNTERMINATED_STRING {
			// the literal is unescaped; find the closing quote in the source
			end = closingQuote(runes, start)
		}
		end = min(end, len(runes))
		text := html.EscapeString(string(runes[start:end]))

		class := ""
		switch tok.Type {
		case lexer.STRING, lexer.UNTERMINATED_STRING:
			class = "str"
		case lexer.INT, lexer.FLOAT:
			class = "num"
		case lexer.KEYWORD:
			class = "key"
		case lexer.SYMBOL:
			switch {
			case strings.HasPrefix(tok.Literal, "/") && len(tok.Literal) > 1:
				class = "host"
			case evaluator.IsSpecialForm(tok.Literal):
				class = "kw"
			}
		}
		if class != "" {
			sb.WriteString("<span class=\"" + class + "\">" + text + "</span>")
		} else {
			sb.WriteString(text)
		}
		pos = end
	}
	gap(len(runes))
	return sb.String()
}

func closingQuote(runes []rune, start int) int {
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(runes)
}

// renderError writes err as a dev page or, in production, a plain 500
// after logging the details.
func (s *Server) renderError(w http.ResponseWriter, err error, page, source string) {
	devErr := FromError(err, page)
	if !s.config.Server.Dev {
		s.logError("%s: %v", page, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if devErr.File != page {
		source = ""
		if data, readErr := s.fs.ReadFile(devErr.File); readErr == nil {
			source = string(data)
		}
	}
	renderDevErrorPage(w, devErr, source)
}
