package snapshot

import (
	"context"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/membership"
)

// DefaultStoreKey is the record key a snapshot is stored under when the
// caller does not choose one.
const DefaultStoreKey = "library_snapshot"

var json = jsoniter.ConfigFastest

// Snapshot is the JSON-serializable state of the whole library.
type Snapshot struct {
	Books []catalog.Book    `json:"books"`
	Users []membership.User `json:"users"`
	Loans []ledger.Loan     `json:"loans"`
}

// Capture copies the current state of the three components into a snapshot.
func Capture(bookCatalog *catalog.Catalog, members *membership.Membership, loanLedger *ledger.Ledger) Snapshot {
	return Snapshot{
		Books: bookCatalog.All(),
		Users: members.All(),
		Loans: loanLedger.All(),
	}
}

// Apply replaces the state of the three components with the snapshot's.
func (s Snapshot) Apply(bookCatalog *catalog.Catalog, members *membership.Membership, loanLedger *ledger.Ledger) {
	bookCatalog.Restore(s.Books)
	members.Restore(s.Users)
	loanLedger.Restore(s.Loans)
}

// Write serializes the snapshot to the writer as JSON.
func Write(w io.Writer, s Snapshot) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return liberrors.Persistence(err, "serializing snapshot failed")
	}

	if _, err := w.Write(encoded); err != nil {
		return liberrors.Persistence(err, "writing snapshot failed")
	}

	return nil
}

// Read deserializes a snapshot from the reader. Empty input loads as an
// empty snapshot, never as an error.
func Read(r io.Reader) (Snapshot, error) {
	encoded, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, liberrors.Persistence(err, "reading snapshot failed")
	}

	if len(encoded) == 0 {
		return Snapshot{}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(encoded, &s); err != nil {
		return Snapshot{}, liberrors.Persistence(err, "decoding snapshot failed")
	}

	return s, nil
}

// SaveToStore persists the snapshot under the given key.
func SaveToStore(ctx context.Context, store asyncstore.Store, key string, s Snapshot) error {
	encoded, err := json.Marshal(s)
	if err != nil {
		return liberrors.Persistence(err, "serializing snapshot failed")
	}

	if err := store.Save(ctx, key, encoded); err != nil {
		return liberrors.Persistence(err, "saving snapshot under key %s failed", key)
	}

	return nil
}

// LoadFromStore loads a snapshot from the given key. A missing key loads as
// an empty snapshot, never as an error.
func LoadFromStore(ctx context.Context, store asyncstore.Store, key string) (Snapshot, error) {
	record, found, err := store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, liberrors.Persistence(err, "loading snapshot from key %s failed", key)
	}

	if !found {
		return Snapshot{}, nil
	}

	var s Snapshot
	if err := json.Unmarshal(record.Value, &s); err != nil {
		return Snapshot{}, liberrors.Persistence(err, "decoding snapshot from key %s failed", key)
	}

	return s, nil
}
