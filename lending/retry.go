package lending

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/liberrors"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	retryDelayMetric        = "lending_retry_delay_seconds"
	retriesMetric           = "lending_retries_total"
	maxRetriesReachedMetric = "lending_max_retries_reached_total"
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithRetryMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")
)

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// retryConfig holds configuration for exponential backoff retry logic.
type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector asyncstore.MetricsCollector
	operation        string
}

// RetryWithExponentialBackoff executes the provided function with
// exponential backoff retry logic, retrying only on transient store
// failures up to maxAttempts times.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms (with 30% jitter).
// Since store writes are last-write-wins by key, retrying a save is
// idempotent and a late-landing write is safe.
//
// Only transient store failures are retried - all other errors fail fast.
func RetryWithExponentialBackoff(
	ctx context.Context,
	fn RetryableFunc,
	options ...RetryOption,
) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(config, attempt)
			recordRetryDelayMetric(config, attempt, delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !isRetryableError(lastErr) {
			return lastErr
		}

		recordRetryAttemptMetric(config, attempt, lastErr)
	}

	recordMaxRetriesReachedMetric(config, lastErr)

	return lastErr
}

// backoffDelay doubles the base delay per attempt and adds jitter so that
// concurrent retriers spread out instead of hammering the store in lockstep.
func backoffDelay(config *retryConfig, attempt int) time.Duration {
	delay := config.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec //math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

// isRetryableError determines if an error should be retried.
//
// A context.DeadlineExceeded is NOT retryable - retrying timeouts during
// overload creates cascade failures. Validation and conflict errors are
// permanent and fail fast.
func isRetryableError(err error) bool {
	if errors.Is(err, asyncstore.ErrTransientFailure) {
		return true
	}

	if liberrors.IsKind(err, liberrors.KindPersistence) {
		return true
	}

	return false
}

// getErrorType extracts a string representation of the error type for metrics labeling.
func getErrorType(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, asyncstore.ErrTransientFailure) {
		return "transient_failure"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "context_deadline_exceeded"
	}

	return "other"
}

func recordRetryDelayMetric(config *retryConfig, attempt int, backoffDelay time.Duration) {
	if config.metricsCollector != nil {
		config.metricsCollector.RecordDuration(retryDelayMetric, backoffDelay, map[string]string{
			metricLabelOperation: config.operation,
			"attempt_number":     fmt.Sprintf("%d", attempt),
		})
	}
}

func recordRetryAttemptMetric(config *retryConfig, attempt int, lastErr error) {
	if attempt < config.maxAttempts-1 && config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(retriesMetric, map[string]string{
			metricLabelOperation: config.operation,
			"attempt":            fmt.Sprintf("%d", attempt+1),
			"error_type":         getErrorType(lastErr),
		})
	}
}

func recordMaxRetriesReachedMetric(config *retryConfig, lastErr error) {
	if config.metricsCollector != nil {
		config.metricsCollector.IncrementCounter(maxRetriesReachedMetric, map[string]string{
			metricLabelOperation: config.operation,
			"final_error_type":   getErrorType(lastErr),
		})
	}
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets how many times the function runs in total, including
// the first attempt.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry; every further retry
// doubles it.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the fraction of the backoff delay that is added as
// random jitter, between 0.0 (none) and 1.0 (up to the full delay).
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
// The operation name labels the recorded metrics.
func WithRetryMetrics(collector asyncstore.MetricsCollector, operation string) RetryOption {
	return func(config *retryConfig) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		config.metricsCollector = collector
		config.operation = operation

		return nil
	}
}
