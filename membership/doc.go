// Package membership owns User entities and the per-user borrowing limit.
package membership
