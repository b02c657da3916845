package asyncstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyKeySupplied is returned when an operation receives an empty key.
	ErrEmptyKeySupplied = errors.New("empty key supplied")

	// ErrInvalidValueJSON is returned when a value to store is not valid JSON.
	ErrInvalidValueJSON = errors.New("value json is not valid")

	// ErrTransientFailure is returned by a store when a write failed for a
	// transient reason. The write was not applied; retrying it is safe
	// because writes are last-value-wins by key.
	ErrTransientFailure = errors.New("transient store failure")

	// ErrNilDatabaseConnection is returned when a nil database handle is
	// supplied to an engine constructor.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
)

// Record is the stored value for one key: an opaque JSON document.
type Record struct {
	Key      string
	Value    []byte
	StoredAt time.Time
}

// Store is the keyed asynchronous storage contract that every engine
// implements. It is the single shared mutable resource crossing component
// boundaries; all access goes through this contract, never through engine
// internals.
//
// Save is last-write-wins by key. Get on a missing key resolves to an
// explicit absent result (found == false), never an error. Delete reports
// whether the key existed. List returns every stored record.
type Store interface {
	Save(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) (record Record, found bool, err error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]Record, error)
}

// Keys are namespaced by entity kind and identifier.

// BookKey returns the store key for a book, namespaced by ISBN.
func BookKey(isbn string) string {
	return fmt.Sprintf("book_%s", isbn)
}

// UserKey returns the store key for a user, namespaced by email.
func UserKey(email string) string {
	return fmt.Sprintf("user_%s", email)
}

// LoanKey returns the store key for a loan, namespaced by the (user, isbn) pair.
func LoanKey(userID, isbn string) string {
	return fmt.Sprintf("loan_%s_%s", userID, isbn)
}
