package lending

import (
	"errors"
	"time"

	"github.com/libropolis/lending-library-go/asyncstore"
)

// ErrNilClockSupplied is returned when a nil clock is provided to WithClock.
var ErrNilClockSupplied = errors.New("clock must not be nil")

// Option configures an Engine during construction.
type Option func(e *Engine) error

// WithLogger sets the logger for the engine.
//
// Info level: state transitions (production-safe)
// Error level: persistence failures after the in-memory transition.
func WithLogger(logger asyncstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine. The collector
// receives borrow/return durations and persistence failure counts.
func WithMetrics(collector asyncstore.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithClock overrides the time source, which tests use to control
// borrow and due dates.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		if clock == nil {
			return ErrNilClockSupplied
		}

		e.clock = clock

		return nil
	}
}

// WithRetryOptions overrides the retry behavior applied to store writes.
func WithRetryOptions(options ...RetryOption) Option {
	return func(e *Engine) error {
		e.retryOptions = options
		return nil
	}
}
