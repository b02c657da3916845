package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/libropolis/lending-library-go/liberrors"
)

// DefaultLoanPeriod is the fixed loan period applied when none is configured.
const DefaultLoanPeriod = 30 * 24 * time.Hour

type pairKey struct {
	userID string
	isbn   string
}

// Ledger owns Loan records and the borrow/return transitions between them.
type Ledger struct {
	mu         sync.RWMutex
	open       map[pairKey]*Loan
	closed     []Loan
	loanPeriod time.Duration
}

// New creates an empty Ledger with the given loan period.
// A non-positive period falls back to DefaultLoanPeriod.
func New(loanPeriod time.Duration) *Ledger {
	if loanPeriod <= 0 {
		loanPeriod = DefaultLoanPeriod
	}

	return &Ledger{
		open:       make(map[pairKey]*Loan),
		loanPeriod: loanPeriod,
	}
}

// Open creates a Loan for the (user, isbn) pair, due after the loan period.
// It fails with a conflict error if an open loan for the same pair exists.
func (l *Ledger) Open(userID, isbn, bookTitle string, borrowedAt time.Time) (Loan, error) {
	key := pairKey{userID: userID, isbn: isbn}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.open[key]; exists {
		return Loan{}, liberrors.Conflict("open loan for user %s and isbn %s already exists", userID, isbn)
	}

	loan := &Loan{
		UserID:     userID,
		ISBN:       isbn,
		BookTitle:  bookTitle,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(l.loanPeriod),
	}
	l.open[key] = loan

	return *loan, nil
}

// Close marks the open loan for the (user, isbn) pair as returned and stamps
// its return date. It fails with a not-found error if no open loan exists.
func (l *Ledger) Close(userID, isbn string, returnedAt time.Time) (Loan, error) {
	key := pairKey{userID: userID, isbn: isbn}

	l.mu.Lock()
	defer l.mu.Unlock()

	loan, exists := l.open[key]
	if !exists {
		return Loan{}, liberrors.NotFound("no open loan for user %s and isbn %s", userID, isbn)
	}

	at := returnedAt
	loan.ReturnDate = &at
	delete(l.open, key)
	l.closed = append(l.closed, *loan)

	return *loan, nil
}

// HasOpen reports whether an open loan exists for the (user, isbn) pair.
func (l *Ledger) HasOpen(userID, isbn string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, exists := l.open[pairKey{userID: userID, isbn: isbn}]

	return exists
}

// FindOpenByUser returns all open loans held by the given user,
// ordered by borrow date.
func (l *Ledger) FindOpenByUser(userID string) []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var loans []Loan
	for _, loan := range l.open {
		if loan.UserID == userID {
			loans = append(loans, *loan)
		}
	}

	sortByBorrowDate(loans)

	return loans
}

// FindOverdue returns all open loans whose calendar-day age, rounded up,
// exceeds the given number of days.
func (l *Ledger) FindOverdue(days int, now time.Time) []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var loans []Loan
	for _, loan := range l.open {
		if loan.AgeDays(now) > days {
			loans = append(loans, *loan)
		}
	}

	sortByBorrowDate(loans)

	return loans
}

// OpenCount returns the number of currently open loans.
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.open)
}

// All returns every loan, open first, each ordered by borrow date.
func (l *Ledger) All() []Loan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	loans := make([]Loan, 0, len(l.open)+len(l.closed))
	for _, loan := range l.open {
		loans = append(loans, *loan)
	}

	sortByBorrowDate(loans)
	loans = append(loans, l.closed...)

	return loans
}

// Restore replaces the ledger content with the given loans.
// It is used when loading a persistence snapshot.
func (l *Ledger) Restore(loans []Loan) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = make(map[pairKey]*Loan)
	l.closed = nil

	for i := range loans {
		loan := loans[i]
		if loan.IsOpen() {
			l.open[pairKey{userID: loan.UserID, isbn: loan.ISBN}] = &loan
		} else {
			l.closed = append(l.closed, loan)
		}
	}
}

func sortByBorrowDate(loans []Loan) {
	sort.Slice(loans, func(i, j int) bool {
		return loans[i].BorrowDate.Before(loans[j].BorrowDate)
	})
}
