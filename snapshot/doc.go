// Package snapshot captures and restores the whole library state as one
// JSON document with books, users and loans. Missing or empty input always
// loads as an empty snapshot.
package snapshot
