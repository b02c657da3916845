// Package lending implements the borrow/return state machine on top of the
// catalog, the membership registry and the loan ledger.
//
// Each (user, isbn) pair is either without a loan or has exactly one open
// loan. Borrow moves the pair to open, Return moves it back. The in-memory
// transition is applied atomically with respect to concurrent transitions,
// then the changed records are persisted through the backing store with
// retried, last-write-wins saves. A persistence failure never rolls the
// in-memory transition back; it surfaces as a typed persistence error and
// the write can be repeated safely.
package lending
