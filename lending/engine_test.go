package lending_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/asyncstore/memoryengine"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/eventlog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/lending"
	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/membership"
)

type fixture struct {
	catalog    *catalog.Catalog
	membership *membership.Membership
	ledger     *ledger.Ledger
	store      asyncstore.Store
	events     *eventlog.Log
	engine     *lending.Engine
}

func newFixture(t *testing.T, options ...lending.Option) *fixture {
	t.Helper()

	store, err := memoryengine.NewEngine(memoryengine.WithBaseLatency(0))
	require.NoError(t, err)

	return newFixtureWithStore(t, store, options...)
}

func newFixtureWithStore(t *testing.T, store asyncstore.Store, options ...lending.Option) *fixture {
	t.Helper()

	f := &fixture{
		catalog:    catalog.New(),
		membership: membership.New(membership.DefaultMaxBooksPerUser),
		ledger:     ledger.New(ledger.DefaultLoanPeriod),
		store:      store,
	}

	events, err := eventlog.NewLog()
	require.NoError(t, err)
	f.events = events

	engine, err := lending.NewEngine(f.catalog, f.membership, f.ledger, f.store, f.events, options...)
	require.NoError(t, err)
	f.engine = engine

	return f
}

func (f *fixture) addBook(t *testing.T, isbn string, copies int) catalog.Book {
	t.Helper()

	book, err := f.engine.AddBook(context.Background(), catalog.AddBookInput{
		ISBN:            isbn,
		Title:           "The Go Programming Language",
		Author:          "Alan A. A. Donovan",
		PublicationYear: 2015,
		Genre:           "Programming",
		TotalCopies:     copies,
	})
	require.NoError(t, err)

	return book
}

func (f *fixture) registerUser(t *testing.T, email string) membership.User {
	t.Helper()

	user, err := f.engine.RegisterUser(context.Background(), membership.RegisterUserInput{
		Name:  "Test Reader",
		Email: email,
	})
	require.NoError(t, err)

	return user
}

func Test_Borrow_CreatesOpenLoanAndDecrementsAvailability(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	loan, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", loan.UserID)
	assert.Equal(t, "1234567890123", loan.ISBN)
	assert.True(t, loan.IsOpen())
	assert.Equal(t, loan.BorrowDate.Add(ledger.DefaultLoanPeriod), loan.DueDate)

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableCopies())
}

func Test_Borrow_FailsWithNotFoundForUnknownUserOrBook(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Borrow(context.Background(), "nobody@example.com", "1234567890123")
	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))

	_, err = f.engine.Borrow(context.Background(), "alice@example.com", "9999999999999")
	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))
}

func Test_Borrow_FailsWithConflictForAlreadyOpenLoan(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 3)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	_, err = f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	assert.True(t, liberrors.IsKind(err, liberrors.KindConflict))

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 1, book.BorrowedCopies, "the failed second borrow must not mutate the count")
}

func Test_Borrow_FailsWithLimitExceededAtTheBorrowCap(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")

	isbns := []string{"1111111111111", "2222222222222", "3333333333333", "4444444444444", "5555555555555"}
	for _, isbn := range isbns {
		f.addBook(t, isbn, 1)
		_, err := f.engine.Borrow(context.Background(), "alice@example.com", isbn)
		require.NoError(t, err)
	}

	f.addBook(t, "6666666666666", 1)
	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "6666666666666")

	assert.True(t, liberrors.IsKind(err, liberrors.KindLimitExceeded))

	book, findErr := f.catalog.FindByISBN("6666666666666")
	require.NoError(t, findErr)
	assert.Equal(t, 1, book.AvailableCopies(), "a rejected borrow must not consume a copy")
}

func Test_Borrow_FailsWithUnavailableWhenNoCopiesLeft(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.registerUser(t, "bob@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	_, err = f.engine.Borrow(context.Background(), "bob@example.com", "1234567890123")
	assert.True(t, liberrors.IsKind(err, liberrors.KindUnavailable))
}

func Test_Borrow_ExactlyOneOfTwoConcurrentBorrowersGetsTheLastCopy(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.registerUser(t, "bob@example.com")
	f.addBook(t, "1234567890123", 1)

	results := make(chan error, 2)
	var start sync.WaitGroup
	start.Add(1)

	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		go func(email string) {
			start.Wait()
			_, err := f.engine.Borrow(context.Background(), email, "1234567890123")
			results <- err
		}(email)
	}

	start.Done()

	var succeeded, unavailable int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			succeeded++
		case liberrors.IsKind(err, liberrors.KindUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, unavailable)

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 1, book.BorrowedCopies)
	assert.Equal(t, 1, f.ledger.OpenCount())
}

func Test_Return_ClosesLoanAndRestoresAvailability(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	loan, err := f.engine.Return(context.Background(), "alice@example.com", "1234567890123")

	require.NoError(t, err)
	assert.False(t, loan.IsOpen())
	require.NotNil(t, loan.ReturnDate)

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 1, book.AvailableCopies())
	assert.Empty(t, f.ledger.FindOpenByUser("alice@example.com"))
}

func Test_Return_FailsWithNotFoundWithoutOpenLoan(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Return(context.Background(), "alice@example.com", "1234567890123")

	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))
}

func Test_BorrowAndReturn_EmitLoanEvents(t *testing.T) {
	f := newFixture(t)

	var types []string
	require.NoError(t, f.events.Subscribe(eventlog.TypeLoanCreated, func(e eventlog.Event) {
		types = append(types, e.Type)
	}))
	require.NoError(t, f.events.Subscribe(eventlog.TypeLoanReturned, func(e eventlog.Event) {
		types = append(types, e.Type)
	}))

	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)
	_, err = f.engine.Return(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	assert.Equal(t, []string{eventlog.TypeLoanCreated, eventlog.TypeLoanReturned}, types)
}

func Test_Borrow_PersistsBookUserAndLoanRecords(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	ctx := context.Background()

	_, found, err := f.store.Get(ctx, asyncstore.BookKey("1234567890123"))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = f.store.Get(ctx, asyncstore.UserKey("alice@example.com"))
	require.NoError(t, err)
	assert.True(t, found)

	record, found, err := f.store.Get(ctx, asyncstore.LoanKey("alice@example.com", "1234567890123"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, string(record.Value), `"1234567890123"`)
}

// flakyStore fails a fixed number of saves before letting them through.
type flakyStore struct {
	asyncstore.Store

	mu           sync.Mutex
	failuresLeft int
}

func (s *flakyStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	shouldFail := s.failuresLeft > 0
	if shouldFail {
		s.failuresLeft--
	}
	s.mu.Unlock()

	if shouldFail {
		return asyncstore.ErrTransientFailure
	}

	return s.Store.Save(ctx, key, value)
}

func Test_Borrow_RetriesTransientStoreFailures(t *testing.T) {
	inner, err := memoryengine.NewEngine(memoryengine.WithBaseLatency(0))
	require.NoError(t, err)

	store := &flakyStore{Store: inner, failuresLeft: 2}
	f := newFixtureWithStore(t, store, lending.WithRetryOptions(lending.WithBaseDelay(time.Millisecond)))

	f.registerUser(t, "alice@example.com")
	f.addBook(t, "1234567890123", 1)

	_, err = f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")

	require.NoError(t, err, "two transient failures are within the retry budget")
}

func Test_Borrow_SurfacesPersistenceErrorWithoutRollingBack(t *testing.T) {
	inner, err := memoryengine.NewEngine(memoryengine.WithBaseLatency(0))
	require.NoError(t, err)

	// More failures than the retry budget allows.
	store := &flakyStore{Store: inner, failuresLeft: 1000}
	f := newFixtureWithStore(t, store,
		lending.WithRetryOptions(lending.WithMaxAttempts(2), lending.WithBaseDelay(time.Millisecond)))

	f.registerUser(t, "alice@example.com")

	_, err = f.engine.AddBook(context.Background(), catalog.AddBookInput{
		ISBN:            "1234567890123",
		Title:           "The Go Programming Language",
		Author:          "Alan A. A. Donovan",
		PublicationYear: 2015,
		Genre:           "Programming",
		TotalCopies:     1,
	})
	require.Error(t, err)

	loan, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")

	require.Error(t, err)
	assert.True(t, liberrors.IsKind(err, liberrors.KindPersistence))
	assert.True(t, loan.IsOpen(), "the loan is created even when persisting it failed")

	book, findErr := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, findErr)
	assert.Equal(t, 1, book.BorrowedCopies, "the in-memory transition must stand")
	assert.True(t, f.ledger.HasOpen("alice@example.com", "1234567890123"))
}

func Test_Statistics_AggregatesLibraryState(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.registerUser(t, "bob@example.com")
	f.addBook(t, "1234567890123", 2)
	f.addBook(t, "9876543210987", 1)

	_, err := f.engine.Borrow(context.Background(), "alice@example.com", "1234567890123")
	require.NoError(t, err)

	stats := f.engine.Statistics()

	assert.Equal(t, 2, stats.UniqueTitles)
	assert.Equal(t, 3, stats.TotalCopies)
	assert.Equal(t, 1, stats.BorrowedCopies)
	assert.Equal(t, 2, stats.AvailableCopies)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.ActiveLoans)
	assert.InDelta(t, 0.5, stats.AverageBooksPerUser, 0.001)
	assert.Equal(t, "Programming", stats.MostPopularGenre)
}

func Test_AddBooks_ToleratesPartialFailure(t *testing.T) {
	f := newFixture(t)

	tally := f.engine.AddBooks(context.Background(), []catalog.AddBookInput{
		{ISBN: "1234567890123", Title: "A", Author: "X", PublicationYear: 2001, Genre: "G", TotalCopies: 1},
		{ISBN: "not-an-isbn", Title: "B", Author: "Y", PublicationYear: 2002, Genre: "G", TotalCopies: 1},
	})

	assert.Len(t, tally.Successes, 1)
	require.Len(t, tally.Failures, 1)
	assert.True(t, liberrors.IsKind(tally.Failures[0], liberrors.KindValidation))
}

func Test_RegisterUsers_ToleratesPartialFailure(t *testing.T) {
	f := newFixture(t)

	tally := f.engine.RegisterUsers(context.Background(), []membership.RegisterUserInput{
		{Name: "Alice", Email: "alice@example.com"},
		{Name: "Broken", Email: "not-an-email"},
	})

	assert.Len(t, tally.Successes, 1)
	require.Len(t, tally.Failures, 1)
	assert.True(t, liberrors.IsKind(tally.Failures[0], liberrors.KindValidation))
}

func Test_BorrowMany_EachRequestSettlesIndependently(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.registerUser(t, "bob@example.com")
	f.addBook(t, "1234567890123", 1)

	tally := f.engine.BorrowMany(context.Background(), []lending.BorrowRequest{
		{UserEmail: "alice@example.com", ISBN: "1234567890123"},
		{UserEmail: "bob@example.com", ISBN: "1234567890123"},
		{UserEmail: "nobody@example.com", ISBN: "1234567890123"},
	})

	// One of the two known users gets the single copy, the other fails
	// with unavailable, and the unknown user fails with not found.
	require.Len(t, tally.Successes, 1)
	assert.True(t, tally.Successes[0].IsOpen())
	require.Len(t, tally.Failures, 2)

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableCopies())
}

func Test_FetchStoredBooks_ReportsMissingKeysAsFailures(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "1234567890123", 1)

	tally := f.engine.FetchStoredBooks(context.Background(), []string{"1234567890123", "9999999999999"})

	require.Len(t, tally.Successes, 1)
	assert.Equal(t, "1234567890123", tally.Successes[0].ISBN)
	require.Len(t, tally.Failures, 1)
	assert.True(t, liberrors.IsKind(tally.Failures[0], liberrors.KindNotFound))
}

func Test_EndToEnd_BorrowReturnCycle(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "alice@example.com")
	f.registerUser(t, "bob@example.com")
	f.addBook(t, "1234567890123", 1)

	ctx := context.Background()

	_, err := f.engine.Borrow(ctx, "alice@example.com", "1234567890123")
	require.NoError(t, err)

	book, err := f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableCopies())

	_, err = f.engine.Borrow(ctx, "bob@example.com", "1234567890123")
	assert.True(t, liberrors.IsKind(err, liberrors.KindUnavailable))

	_, err = f.engine.Return(ctx, "alice@example.com", "1234567890123")
	require.NoError(t, err)

	book, err = f.catalog.FindByISBN("1234567890123")
	require.NoError(t, err)
	assert.Equal(t, 1, book.AvailableCopies())
	assert.Empty(t, f.ledger.FindOpenByUser("alice@example.com"))
}

func Test_NewEngine_RejectsNilComponents(t *testing.T) {
	_, err := lending.NewEngine(nil, nil, nil, nil, nil)

	assert.ErrorIs(t, err, lending.ErrNilCatalogSupplied)
}
