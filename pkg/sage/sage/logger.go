package sage

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sambeau/sage/pkg/sage/evaluator"
)

// Logger receives script output. It is the evaluator's interface.
type Logger = evaluator.Logger

type writerLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *writerLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, joinValues(values))
}

func (l *writerLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, joinValues(values)+"\n")
}

// WriterLogger writes script output straight to w.
func WriterLogger(w io.Writer) Logger {
	return &writerLogger{w: w}
}

// BufferedLogger keeps output in memory. Render uses one per call.
type BufferedLogger struct {
	mu      sync.Mutex
	lines   []string
	pending strings.Builder
}

// NewBufferedLogger returns an empty buffer.
func NewBufferedLogger() *BufferedLogger {
	return &BufferedLogger{}
}

func (l *BufferedLogger) Log(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending.WriteString(joinValues(values))
}

func (l *BufferedLogger) LogLine(values ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, l.pending.String()+joinValues(values))
	l.pending.Reset()
}

// String returns everything written so far. Completed lines end in a
// newline; text written without one follows them unchanged.
func (l *BufferedLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sb strings.Builder
	for _, line := range l.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(l.pending.String())
	return sb.String()
}

// Lines returns the completed lines.
func (l *BufferedLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Reset discards all captured output.
func (l *BufferedLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = nil
	l.pending.Reset()
}

type nullLogger struct{}

func (nullLogger) Log(...any)     {}
func (nullLogger) LogLine(...any) {}

// NullLogger discards output.
func NullLogger() Logger {
	return nullLogger{}
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
