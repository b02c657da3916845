package lending

import (
	"context"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/membership"
	"github.com/libropolis/lending-library-go/resolve"
)

// BorrowRequest names one user/book pair for a batch borrow.
type BorrowRequest struct {
	UserEmail string
	ISBN      string
}

// AddBooks adds a batch of books concurrently and waits for every addition
// to settle. Individual failures (validation, duplicate isbn, persistence)
// do not abort the batch; the tally carries them alongside the successes.
func (e *Engine) AddBooks(ctx context.Context, inputs []catalog.AddBookInput) resolve.Tally[catalog.Book] {
	ops := make([]resolve.Operation[catalog.Book], 0, len(inputs))
	for _, input := range inputs {
		input := input // shadow for per-iteration capture pre-Go 1.22
		ops = append(ops, func(ctx context.Context) (catalog.Book, error) {
			return e.AddBook(ctx, input)
		})
	}

	return resolve.FanOutAll(ctx, ops)
}

// RegisterUsers registers a batch of users concurrently and waits for every
// registration to settle, tallying failures alongside successes the same way
// AddBooks does. Together they seed a library from initial data.
func (e *Engine) RegisterUsers(ctx context.Context, inputs []membership.RegisterUserInput) resolve.Tally[membership.User] {
	ops := make([]resolve.Operation[membership.User], 0, len(inputs))
	for _, input := range inputs {
		input := input // shadow for per-iteration capture pre-Go 1.22
		ops = append(ops, func(ctx context.Context) (membership.User, error) {
			return e.RegisterUser(ctx, input)
		})
	}

	return resolve.FanOutAll(ctx, ops)
}

// BorrowMany performs a batch of borrows concurrently. Each request is an
// independent transition; one user hitting the borrow limit or one title
// running out of copies fails only that element of the tally.
func (e *Engine) BorrowMany(ctx context.Context, requests []BorrowRequest) resolve.Tally[ledger.Loan] {
	ops := make([]resolve.Operation[ledger.Loan], 0, len(requests))
	for _, request := range requests {
		request := request // shadow for per-iteration capture pre-Go 1.22
		ops = append(ops, func(ctx context.Context) (ledger.Loan, error) {
			return e.Borrow(ctx, request.UserEmail, request.ISBN)
		})
	}

	return resolve.FanOutAll(ctx, ops)
}

// FetchStoredBooks reads a batch of book records from the backing store
// concurrently. A missing key settles as a not-found failure in the tally,
// it never aborts the other reads.
func (e *Engine) FetchStoredBooks(ctx context.Context, isbns []string) resolve.Tally[catalog.Book] {
	ops := make([]resolve.Operation[catalog.Book], 0, len(isbns))
	for _, isbn := range isbns {
		isbn := isbn // shadow for per-iteration capture pre-Go 1.22
		ops = append(ops, func(ctx context.Context) (catalog.Book, error) {
			return e.fetchStoredBook(ctx, isbn)
		})
	}

	return resolve.FanOutAll(ctx, ops)
}

func (e *Engine) fetchStoredBook(ctx context.Context, isbn string) (catalog.Book, error) {
	record, found, err := e.store.Get(ctx, asyncstore.BookKey(isbn))
	if err != nil {
		return catalog.Book{}, liberrors.Persistence(err, "loading book %s failed", isbn)
	}

	if !found {
		return catalog.Book{}, liberrors.NotFound("book %s is not in the store", isbn)
	}

	var book catalog.Book
	if err := json.Unmarshal(record.Value, &book); err != nil {
		return catalog.Book{}, liberrors.Persistence(err, "decoding book %s failed", isbn)
	}

	return book, nil
}
