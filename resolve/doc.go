// Package resolve provides join policies for sets of concurrently running
// operations.
//
// An Operation is started once and settles exactly once, with a value or an
// error. The three policies differ in when the caller unblocks:
//
//   - FanOutAll waits for every operation and tallies successes and failures.
//   - RaceWithTimeout returns the operation's result unless a timer fires
//     first, in which case it fails with a timeout error.
//   - FirstSuccessTolerant returns the first success and only fails when
//     every operation has failed.
//
// No policy cancels losing or pending operations. They are abandoned: their
// results are discarded, but side effects they commit after the policy has
// returned still take place. Callers that need cooperative cancellation pass
// a context and handle it inside the operation.
package resolve
