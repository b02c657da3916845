// Package search looks up book records across several independent sources,
// such as the in-memory catalog and the backing store.
//
// Lookups race the sources under the tolerant-any policy: the first source
// to deliver wins, failing sources are ignored, and the lookup only fails
// when every source does. Concurrent lookups for the same isbn are
// coalesced into a single fan-out.
package search
