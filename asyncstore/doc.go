// Package asyncstore defines the keyed asynchronous storage contract that
// every higher operation must tolerate, plus the observability interfaces
// shared by its engines.
//
// Two engines implement the contract:
//   - memoryengine: in-memory storage with configured latency, degraded-save
//     behavior, and transient failure injection, the unreliable substrate
//     the lending engine is exercised against.
//   - postgresengine: a PostgreSQL-backed document table with last-write-wins
//     upserts, for running against real external persistence.
//
// Key types:
//   - Store: the Save/Get/Delete/List contract
//   - Record: one stored key/value document
//
// Common usage pattern:
//
//	store, err := memoryengine.NewEngine(
//		memoryengine.WithBaseLatency(50*time.Millisecond),
//		memoryengine.WithLogger(logger),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	err = store.Save(ctx, asyncstore.BookKey(isbn), payload)
package asyncstore
