package evaluator

import (
	"fmt"
	"os"
)

// Logger receives the text written by print, println and the output of
// block filters.
type Logger interface {
	Log(values ...any)
	LogLine(values ...any)
}

// defaultStdoutLogger is the default logger that writes to stdout
type defaultStdoutLogger struct{}

func (l *defaultStdoutLogger) Log(values ...any) {
	for i, v := range values {
		if i > 0 {
			fmt.Fprint(os.Stdout, " ")
		}
		fmt.Fprint(os.Stdout, v)
	}
}

func (l *defaultStdoutLogger) LogLine(values ...any) {
	l.Log(values...)
	fmt.Fprintln(os.Stdout)
}

// DefaultLogger is the default stdout logger
var DefaultLogger Logger = &defaultStdoutLogger{}
