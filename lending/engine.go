package lending

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"github.com/libropolis/lending-library-go/asyncstore"
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/eventlog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/membership"
)

const (
	logBookAdded        = "book added to catalog"
	logUserRegistered   = "user registered"
	logLoanCreated      = "loan created"
	logLoanReturned     = "loan returned"
	logPersistFailed    = "persisting state change failed"
	logBorrowRolledBack = "borrow rolled back after membership cap raced"

	logAttrISBN      = "isbn"
	logAttrUserEmail = "userEmail"
	logAttrError     = "error"

	borrowDurationMetric  = "lending_borrow_duration_seconds"
	returnDurationMetric  = "lending_return_duration_seconds"
	persistFailuresMetric = "lending_persist_failures_total"

	metricLabelOperation = "operation"
)

var (
	// ErrNilCatalogSupplied is returned when the engine is built without a catalog.
	ErrNilCatalogSupplied = errors.New("catalog must not be nil")

	// ErrNilMembershipSupplied is returned when the engine is built without a membership registry.
	ErrNilMembershipSupplied = errors.New("membership must not be nil")

	// ErrNilLedgerSupplied is returned when the engine is built without a loan ledger.
	ErrNilLedgerSupplied = errors.New("ledger must not be nil")

	// ErrNilStoreSupplied is returned when the engine is built without a backing store.
	ErrNilStoreSupplied = errors.New("store must not be nil")

	// ErrNilEventLogSupplied is returned when the engine is built without an event log.
	ErrNilEventLogSupplied = errors.New("event log must not be nil")
)

var json = jsoniter.ConfigFastest

// Engine orchestrates the catalog, the membership registry and the loan
// ledger to perform borrow and return transitions, persisting every state
// change through the backing store and emitting an event per transition.
//
// The in-memory mutations of a transition happen before the store is
// touched. A persistence failure therefore never rolls the transition back;
// it surfaces as a persistence error and the write can be retried, since
// store writes are last-write-wins by key.
type Engine struct {
	catalog    *catalog.Catalog
	membership *membership.Membership
	ledger     *ledger.Ledger
	store      asyncstore.Store
	events     *eventlog.Log

	logger           asyncstore.Logger
	metricsCollector asyncstore.MetricsCollector
	clock            func() time.Time
	retryOptions     []RetryOption
}

// NewEngine builds a lending engine on top of the supplied components.
func NewEngine(
	bookCatalog *catalog.Catalog,
	members *membership.Membership,
	loanLedger *ledger.Ledger,
	store asyncstore.Store,
	events *eventlog.Log,
	options ...Option,
) (*Engine, error) {

	switch {
	case bookCatalog == nil:
		return nil, ErrNilCatalogSupplied
	case members == nil:
		return nil, ErrNilMembershipSupplied
	case loanLedger == nil:
		return nil, ErrNilLedgerSupplied
	case store == nil:
		return nil, ErrNilStoreSupplied
	case events == nil:
		return nil, ErrNilEventLogSupplied
	}

	engine := &Engine{
		catalog:    bookCatalog,
		membership: members,
		ledger:     loanLedger,
		store:      store,
		events:     events,
		clock:      time.Now,
	}

	for _, applyOption := range options {
		if err := applyOption(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// AddBook validates and adds a book to the catalog, persists it and emits a
// book.added event. The returned book is valid even when err is a
// persistence failure; only the store write is then outstanding.
func (e *Engine) AddBook(ctx context.Context, input catalog.AddBookInput) (catalog.Book, error) {
	book, err := e.catalog.Add(input)
	if err != nil {
		return catalog.Book{}, err
	}

	e.events.Emit(eventlog.TypeBookAdded, map[string]any{
		"isbn":  book.ISBN,
		"title": book.Title,
	})

	e.logInfo(logBookAdded, logAttrISBN, book.ISBN)

	if err := e.persistBook(ctx, book); err != nil {
		return book, err
	}

	return book, nil
}

// RegisterUser validates and registers a user, persists the record and
// emits a user.registered event. The returned user is valid even when err
// is a persistence failure.
func (e *Engine) RegisterUser(ctx context.Context, input membership.RegisterUserInput) (membership.User, error) {
	user, err := e.membership.Register(input)
	if err != nil {
		return membership.User{}, err
	}

	e.events.Emit(eventlog.TypeUserRegistered, map[string]any{
		"email": user.Email,
		"name":  user.Name,
	})

	e.logInfo(logUserRegistered, logAttrUserEmail, user.Email)

	if err := e.persistUser(ctx, user); err != nil {
		return user, err
	}

	return user, nil
}

// Borrow transitions the (user, isbn) pair from no loan to an open loan.
//
// Validation failures (unknown user or book, an already open loan for the
// pair, the borrow cap, no available copy) abort before any mutation. Once
// the in-memory transition has been applied and the loan.created event
// emitted, a failing store write surfaces as a persistence error alongside
// the created loan; the in-memory state stands.
func (e *Engine) Borrow(ctx context.Context, userEmail string, isbn string) (ledger.Loan, error) {
	started := e.clock()

	user, err := e.membership.FindByEmail(userEmail)
	if err != nil {
		return ledger.Loan{}, err
	}

	book, err := e.catalog.FindByISBN(isbn)
	if err != nil {
		return ledger.Loan{}, err
	}

	if e.ledger.HasOpen(user.Email, isbn) {
		return ledger.Loan{}, liberrors.Conflict("user %s already has an open loan for book %s", user.Email, isbn)
	}

	if !e.membership.CanBorrow(user.Email) {
		return ledger.Loan{}, liberrors.LimitExceeded(
			"user %s has reached the limit of %d borrowed books", user.Email, e.membership.MaxBooksPerUser())
	}

	if !e.catalog.Borrow(isbn) {
		return ledger.Loan{}, liberrors.Unavailable("no copies of book %s are available", isbn)
	}

	// The cap is re-checked inside the registry's critical section. A
	// concurrent borrow may have taken the last slot since CanBorrow.
	if !e.membership.AddBorrowed(user.Email, isbn, book.Title, started) {
		e.catalog.Return(isbn)
		e.logInfo(logBorrowRolledBack, logAttrUserEmail, user.Email, logAttrISBN, isbn)

		return ledger.Loan{}, liberrors.LimitExceeded(
			"user %s has reached the limit of %d borrowed books", user.Email, e.membership.MaxBooksPerUser())
	}

	loan, err := e.ledger.Open(user.Email, isbn, book.Title, started)
	if err != nil {
		e.membership.RemoveBorrowed(user.Email, isbn, started)
		e.catalog.Return(isbn)

		return ledger.Loan{}, err
	}

	e.events.Emit(eventlog.TypeLoanCreated, map[string]any{
		"userId":  loan.UserID,
		"isbn":    loan.ISBN,
		"dueDate": loan.DueDate,
	})

	e.logInfo(logLoanCreated, logAttrUserEmail, user.Email, logAttrISBN, isbn)
	e.recordDuration(borrowDurationMetric, e.clock().Sub(started))

	if err := e.persistLendingState(ctx, isbn, user.Email, loan); err != nil {
		return loan, err
	}

	return loan, nil
}

// Return transitions the (user, isbn) pair from an open loan back to no
// loan. It mirrors Borrow: validation failures abort before any mutation,
// and a persistence failure after the in-memory transition surfaces
// alongside the closed loan.
func (e *Engine) Return(ctx context.Context, userEmail string, isbn string) (ledger.Loan, error) {
	started := e.clock()

	user, err := e.membership.FindByEmail(userEmail)
	if err != nil {
		return ledger.Loan{}, err
	}

	if _, err := e.catalog.FindByISBN(isbn); err != nil {
		return ledger.Loan{}, err
	}

	if !e.ledger.HasOpen(user.Email, isbn) {
		return ledger.Loan{}, liberrors.NotFound("no open loan for user %s and book %s", user.Email, isbn)
	}

	if !e.catalog.Return(isbn) {
		return ledger.Loan{}, liberrors.Conflict("book %s has no borrowed copies to return", isbn)
	}

	if !e.membership.RemoveBorrowed(user.Email, isbn, started) {
		e.catalog.Borrow(isbn)

		return ledger.Loan{}, liberrors.NotFound("book %s is not borrowed by user %s", isbn, user.Email)
	}

	loan, err := e.ledger.Close(user.Email, isbn, started)
	if err != nil {
		return ledger.Loan{}, err
	}

	e.events.Emit(eventlog.TypeLoanReturned, map[string]any{
		"userId":     loan.UserID,
		"isbn":       loan.ISBN,
		"returnDate": loan.ReturnDate,
	})

	e.logInfo(logLoanReturned, logAttrUserEmail, user.Email, logAttrISBN, isbn)
	e.recordDuration(returnDurationMetric, e.clock().Sub(started))

	if err := e.persistLendingState(ctx, isbn, user.Email, loan); err != nil {
		return loan, err
	}

	return loan, nil
}

// persistLendingState writes the updated book, user and loan records
// concurrently and waits for all three writes to settle.
func (e *Engine) persistLendingState(ctx context.Context, isbn string, userEmail string, loan ledger.Loan) error {
	book, err := e.catalog.FindByISBN(isbn)
	if err != nil {
		return err
	}

	user, err := e.membership.FindByEmail(userEmail)
	if err != nil {
		return err
	}

	var group errgroup.Group

	group.Go(func() error { return e.persistBook(ctx, book) })
	group.Go(func() error { return e.persistUser(ctx, user) })
	group.Go(func() error { return e.persistLoan(ctx, loan) })

	return group.Wait()
}

func (e *Engine) persistBook(ctx context.Context, book catalog.Book) error {
	value, err := json.Marshal(book)
	if err != nil {
		return liberrors.Persistence(err, "serializing book %s failed", book.ISBN)
	}

	return e.saveWithRetry(ctx, asyncstore.BookKey(book.ISBN), value)
}

func (e *Engine) persistUser(ctx context.Context, user membership.User) error {
	value, err := json.Marshal(user)
	if err != nil {
		return liberrors.Persistence(err, "serializing user %s failed", user.Email)
	}

	return e.saveWithRetry(ctx, asyncstore.UserKey(user.Email), value)
}

func (e *Engine) persistLoan(ctx context.Context, loan ledger.Loan) error {
	value, err := json.Marshal(loan)
	if err != nil {
		return liberrors.Persistence(err, "serializing loan for user %s and book %s failed", loan.UserID, loan.ISBN)
	}

	return e.saveWithRetry(ctx, asyncstore.LoanKey(loan.UserID, loan.ISBN), value)
}

func (e *Engine) saveWithRetry(ctx context.Context, key string, value []byte) error {
	err := RetryWithExponentialBackoff(
		ctx,
		func(ctx context.Context) error { return e.store.Save(ctx, key, value) },
		e.retryOptions...,
	)
	if err != nil {
		e.logError(logPersistFailed, "key", key, logAttrError, err)
		e.incrementCounter(persistFailuresMetric, map[string]string{metricLabelOperation: "save"})

		return liberrors.Persistence(err, "saving record %s failed", key)
	}

	return nil
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) recordDuration(metric string, duration time.Duration) {
	if e.metricsCollector != nil {
		e.metricsCollector.RecordDuration(metric, duration, nil)
	}
}

func (e *Engine) incrementCounter(metric string, labels map[string]string) {
	if e.metricsCollector != nil {
		e.metricsCollector.IncrementCounter(metric, labels)
	}
}
