package resolve

import (
	"context"
	"time"

	"github.com/libropolis/lending-library-go/liberrors"
)

// Operation is one independently-initiated asynchronous operation that
// settles with either a success value or a failure.
type Operation[T any] func(ctx context.Context) (T, error)

// outcome is one settled operation, tagged with its position in the input.
type outcome[T any] struct {
	index int
	value T
	err   error
}

// Tally reports the complete result of a fan-out: every operation has
// settled, successes and failures are collected in input order. Partial
// failure is a normal, expected outcome, not an aggregate error.
type Tally[T any] struct {
	Successes []T
	Failures  []error
}

// FanOutAll initiates every operation concurrently and waits for all of them
// to settle. It never short-circuits on individual failure.
func FanOutAll[T any](ctx context.Context, ops []Operation[T]) Tally[T] {
	results := make(chan outcome[T], len(ops))

	for i, op := range ops {
		go func(index int, op Operation[T]) {
			value, err := op(ctx)
			results <- outcome[T]{index: index, value: value, err: err}
		}(i, op)
	}

	settled := make([]outcome[T], len(ops))
	for range ops {
		out := <-results
		settled[out.index] = out
	}

	var tally Tally[T]
	for _, out := range settled {
		if out.err != nil {
			tally.Failures = append(tally.Failures, out.err)
		} else {
			tally.Successes = append(tally.Successes, out.value)
		}
	}

	return tally
}

// RaceWithTimeout returns whichever of the operation and a timer settles
// first. If the timer wins, it fails with a timeout error; the still-pending
// operation is abandoned, not cancelled: its eventual result is discarded,
// and any side effect it already committed still lands.
func RaceWithTimeout[T any](ctx context.Context, op Operation[T], timeout time.Duration) (T, error) {
	var zero T

	// Buffered, so the abandoned operation can settle without a receiver.
	results := make(chan outcome[T], 1)

	go func() {
		value, err := op(ctx)
		results <- outcome[T]{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-results:
		if out.err != nil {
			return zero, out.err
		}
		return out.value, nil

	case <-timer.C:
		return zero, liberrors.Timeout("operation did not settle within %s", timeout)

	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// FirstSuccessTolerant initiates every operation concurrently and returns
// the value of the first one to succeed; failures from other operations are
// ignored. Only when every operation fails does it fail, with an
// AggregateError carrying all individual failure reasons in input order.
// Operations still pending after the first success are abandoned.
func FirstSuccessTolerant[T any](ctx context.Context, ops []Operation[T]) (T, error) {
	var zero T

	if len(ops) == 0 {
		return zero, liberrors.NewAggregateError(nil)
	}

	// Buffered, so abandoned operations can settle without a receiver.
	results := make(chan outcome[T], len(ops))

	for i, op := range ops {
		go func(index int, op Operation[T]) {
			value, err := op(ctx)
			results <- outcome[T]{index: index, value: value, err: err}
		}(i, op)
	}

	failures := make([]error, len(ops))

	for range ops {
		select {
		case out := <-results:
			if out.err == nil {
				return out.value, nil
			}

			failures[out.index] = out.err

		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, liberrors.NewAggregateError(failures)
}
