package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// requestLogger writes one line per request, naming the script that
// rendered it.
type requestLogger struct {
	next   http.Handler
	mu     sync.Mutex
	out    io.Writer
	asJSON bool
}

// RequestLogEntry is one logged request.
type RequestLogEntry struct {
	Timestamp  string `json:"timestamp"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Query      string `json:"query,omitempty"`
	Script     string `json:"script,omitempty"`
	Status     int    `json:"status"`
	Bytes      int64  `json:"bytes"`
	Duration   string `json:"duration"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
	UserAgent  string `json:"user_agent,omitempty"`
}

type scriptKey struct{}

// renderedScript is filled in by the page handler once it has mapped the
// request to a script.
type renderedScript struct {
	path string
}

// noteScript records the script serving r, if r passed through a
// requestLogger.
func noteScript(r *http.Request, page string) {
	if rs, ok := r.Context().Value(scriptKey{}).(*renderedScript); ok {
		rs.path = page
	}
}

// statusRecorder keeps the status and body size written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func newRequestLogger(next http.Handler, out io.Writer, format string) *requestLogger {
	return &requestLogger{next: next, out: out, asJSON: strings.EqualFold(format, "json")}
}

func (rl *requestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	script := &renderedScript{}
	sr := &statusRecorder{ResponseWriter: w}
	rl.next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), scriptKey{}, script)))
	elapsed := time.Since(start)

	status := sr.status
	if status == 0 {
		status = http.StatusOK
	}
	entry := RequestLogEntry{
		Timestamp:  start.Format(time.RFC3339),
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Script:     script.path,
		Status:     status,
		Bytes:      sr.bytes,
		Duration:   elapsed.String(),
		DurationMs: elapsed.Milliseconds(),
		ClientIP:   clientIP(r),
		UserAgent:  r.UserAgent(),
	}
	rl.write(entry)
}

func (rl *requestLogger) write(e RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.asJSON {
		if data, err := json.Marshal(e); err == nil {
			fmt.Fprintf(rl.out, "%s\n", data)
		}
		return
	}
	script := ""
	if e.Script != "" {
		script = " -> " + e.Script
	}
	fmt.Fprintf(rl.out, "%s %s %s%s %d %dB %s\n",
		e.Timestamp, e.Method, e.Path, script, e.Status, e.Bytes, e.Duration)
}

// clientIP prefers the first X-Forwarded-For address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
