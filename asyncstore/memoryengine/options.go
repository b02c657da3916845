package memoryengine

import (
	"errors"
	"math/rand"
	"time"

	"github.com/libropolis/lending-library-go/asyncstore"
)

var (
	// ErrNegativeBaseLatency is returned when a negative base latency is configured.
	ErrNegativeBaseLatency = errors.New("base latency must not be negative")

	// ErrInvalidProbability is returned when a probability is not between 0.0 and 1.0.
	ErrInvalidProbability = errors.New("probability must be between 0.0 and 1.0")

	// ErrNilRandSource is returned when a nil random source is supplied.
	ErrNilRandSource = errors.New("random source must not be nil")
)

// Option defines a functional option for configuring the memory Engine.
type Option func(*Engine) error

// WithBaseLatency sets the artificial latency applied to every operation.
// Zero disables the latency entirely, which is useful in tests.
func WithBaseLatency(latency time.Duration) Option {
	return func(e *Engine) error {
		if latency < 0 {
			return ErrNegativeBaseLatency
		}

		e.baseLatency = latency

		return nil
	}
}

// WithDegradedSaveProbability sets the probability that a save doubles its
// latency, simulating degraded-storage behavior.
func WithDegradedSaveProbability(probability float64) Option {
	return func(e *Engine) error {
		if probability < 0.0 || probability > 1.0 {
			return ErrInvalidProbability
		}

		e.degradedProbability = probability

		return nil
	}
}

// WithFailureProbability sets the probability that a save fails with
// asyncstore.ErrTransientFailure without applying the write.
func WithFailureProbability(probability float64) Option {
	return func(e *Engine) error {
		if probability < 0.0 || probability > 1.0 {
			return ErrInvalidProbability
		}

		e.failureProbability = probability

		return nil
	}
}

// WithRandSource sets the random source used for latency doubling and
// failure injection, making the engine deterministic in tests.
func WithRandSource(source rand.Source) Option {
	return func(e *Engine) error {
		if source == nil {
			return ErrNilRandSource
		}

		e.rand = rand.New(source) //nolint:gosec // simulation, not crypto

		return nil
	}
}

// WithLogger sets the logger for the engine.
//
// Debug level: per-operation records with timing (development use)
// Warn level: injected transient failures.
func WithLogger(logger asyncstore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine. The collector
// receives save durations, degraded-save counts, and injected failure counts.
func WithMetrics(collector asyncstore.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}
