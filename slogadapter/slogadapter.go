// Package slogadapter bridges Go's standard log/slog package to the
// asyncstore observability interfaces, for callers who want structured
// logging without implementing the interfaces themselves.
package slogadapter

import (
	"log/slog"
)

// Logger implements asyncstore.Logger on top of a *slog.Logger.
type Logger struct {
	logger *slog.Logger
}

// NewLogger wraps the given slog logger. A nil logger falls back to
// slog.Default.
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return &Logger{logger: logger}
}

// NewLoggerWithHandler builds a logger on the provided slog.Handler.
func NewLoggerWithHandler(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler)}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}
