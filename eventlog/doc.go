// Package eventlog implements a bounded, in-memory event log with
// synchronous, type-keyed subscriptions.
//
// Events are retained up to a fixed capacity; once full, the oldest event is
// evicted when a new one is recorded. Handlers run on the emitting goroutine
// in registration order, and a panicking handler never disturbs the emitter
// or the handlers after it.
package eventlog
