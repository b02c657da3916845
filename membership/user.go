package membership

import (
	"regexp"
	"time"

	"github.com/libropolis/lending-library-go/liberrors"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User represents a registered library member.
//
// BorrowedISBNs holds the ISBNs of currently held books in borrow order and
// never grows beyond the per-user limit. BorrowHistory is append-only;
// entries are later marked returned, never removed.
type User struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	RegistrationDate time.Time      `json:"registrationDate"`
	BorrowedISBNs    []string       `json:"borrowedIsbns"`
	BorrowHistory    []HistoryEntry `json:"borrowHistory"`
}

// HistoryEntry records one borrow in a user's history.
type HistoryEntry struct {
	ISBN       string     `json:"isbn"`
	BookTitle  string     `json:"bookTitle"`
	BorrowDate time.Time  `json:"borrowDate"`
	Returned   bool       `json:"returned"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// BorrowCount returns the number of books the user currently holds.
func (u User) BorrowCount() int {
	return len(u.BorrowedISBNs)
}

// HasOverdue reports whether the user holds any book borrowed more than
// the given number of days ago.
func (u User) HasOverdue(days int, now time.Time) bool {
	for _, entry := range u.BorrowHistory {
		if !entry.Returned && daysBetween(entry.BorrowDate, now) > days {
			return true
		}
	}

	return false
}

// UserPatch describes a partial update to a user. Nil fields stay untouched.
type UserPatch struct {
	Name *string
}

// RegisterUserInput carries the validated-at-the-boundary data for Register.
type RegisterUserInput struct {
	Name             string
	Email            string
	RegistrationDate time.Time // zero value means "now"
}

// Validate checks the input against the membership format rules.
func (in RegisterUserInput) Validate() error {
	if !emailPattern.MatchString(in.Email) {
		return liberrors.Validation("email %q is malformed", in.Email)
	}

	return nil
}

// daysBetween returns the calendar-day difference between two instants, rounded up.
func daysBetween(from, to time.Time) int {
	diff := to.Sub(from)
	if diff < 0 {
		diff = -diff
	}

	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) != 0 {
		days++
	}

	return days
}
