package liberrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the stable, machine-readable classification of a failure.
// Every error surfaced by the library carries exactly one Kind.
type Kind string

const (
	// KindValidation marks malformed input, detected locally and never retried.
	KindValidation Kind = "validation"

	// KindConflict marks a duplicate key or an illegal state transition.
	KindConflict Kind = "conflict"

	// KindNotFound marks a missing entity.
	KindNotFound Kind = "not_found"

	// KindLimitExceeded marks a per-user borrow cap being reached.
	KindLimitExceeded Kind = "limit_exceeded"

	// KindUnavailable marks a book with no copies left to borrow.
	KindUnavailable Kind = "unavailable"

	// KindTimeout marks a race deadline being exceeded.
	KindTimeout Kind = "timeout"

	// KindAggregate marks the case where every branch of a tolerant race failed.
	KindAggregate Kind = "aggregate"

	// KindPersistence marks a store operation that failed after the logical
	// state change was already applied in memory.
	KindPersistence Kind = "persistence"
)

// Error is the typed error carried across component boundaries.
// It pairs a Kind with a human-readable message and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation builds a KindValidation error with a formatted message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error with a formatted message.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error with a formatted message.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// LimitExceeded builds a KindLimitExceeded error with a formatted message.
func LimitExceeded(format string, args ...any) *Error {
	return &Error{Kind: KindLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

// Unavailable builds a KindUnavailable error with a formatted message.
func Unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Timeout builds a KindTimeout error with a formatted message.
func Timeout(format string, args ...any) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}

// Persistence builds a KindPersistence error wrapping the underlying store failure.
func Persistence(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindPersistence, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err (or anything it wraps) is a typed Error of the given kind.
// An AggregateError matches KindAggregate.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the Kind carried by err, or the empty Kind if err is untyped.
// An AggregateError is classified before its reasons, so a tolerant-race
// failure never reports the kind of one underlying branch.
func KindOf(err error) Kind {
	var agg *AggregateError
	if errors.As(err, &agg) {
		return KindAggregate
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return ""
}

// AggregateError carries the individual failure of every branch of a
// tolerant race. It is only produced when no branch succeeded.
type AggregateError struct {
	Reasons []error
}

// NewAggregateError builds an AggregateError from the collected branch failures.
func NewAggregateError(reasons []error) *AggregateError {
	return &AggregateError{Reasons: reasons}
}

// Error implements the error interface, listing every underlying reason.
func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, reason := range e.Reasons {
		msgs = append(msgs, reason.Error())
	}

	return fmt.Sprintf("%s: all %d operations failed: [%s]", KindAggregate, len(e.Reasons), strings.Join(msgs, "; "))
}

// Unwrap exposes the underlying reasons for errors.Is / errors.As chains.
func (e *AggregateError) Unwrap() []error {
	return e.Reasons
}
