// Package observability defines shared logging primitives.
package observability

import (
	"fmt"
	"log"
	"strings"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

var defaultLogger Logger = noopLogger{}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// StdLogger adapts a standard library logger to the Logger interface,
// rendering fields as key=value pairs.
type StdLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStdLogger wraps the provided standard logger. Debug output is emitted
// only when debug is true.
func NewStdLogger(logger *log.Logger, debug bool) *StdLogger {
	return &StdLogger{logger: logger, debug: debug}
}

// Debug logs at debug level when enabled.
func (l *StdLogger) Debug(msg string, fields ...Field) {
	if l.debug {
		l.write("DEBUG", msg, fields)
	}
}

// Info logs at info level.
func (l *StdLogger) Info(msg string, fields ...Field) {
	l.write("INFO", msg, fields)
}

// Error logs at error level.
func (l *StdLogger) Error(msg string, fields ...Field) {
	l.write("ERROR", msg, fields)
}

func (l *StdLogger) write(level, msg string, fields []Field) {
	if l.logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		fmt.Fprintf(&b, "%v", f.Value)
	}
	l.logger.Print(b.String())
}
