// Package catalog owns Book entities and their copy-count invariants.
//
// Borrow and Return are single check-and-mutate critical sections: when two
// callers race for the last available copy, exactly one Borrow succeeds and
// the other observes no availability and returns false.
package catalog
