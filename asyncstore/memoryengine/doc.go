// Package memoryengine provides the in-memory asyncstore.Store engine with
// injected latency and random transient failure.
//
// It simulates the unreliable external persistence boundary: every operation
// suspends for a configured base latency, saves occasionally double their
// latency, and saves can be configured to fail transiently. Writes are
// last-write-wins per key and never interleave for the same key.
package memoryengine
