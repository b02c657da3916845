package asyncstore

import (
	"time"
)

// Logger interface for operational logging, warnings, and error reporting.
// Implementations receive slog-style alternating key-value args.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting store performance and
// operational metrics. Implementations can bridge to any metrics backend
// (Prometheus, OpenTelemetry, etc.) by implementing this interface.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}
