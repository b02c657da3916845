package ledger

import "time"

// Loan records one book being held by one user.
//
// A loan is open while ReturnDate is nil; at most one open loan exists per
// (user, isbn) pair. Closed loans are retained for history queries.
type Loan struct {
	UserID     string     `json:"userId"`
	ISBN       string     `json:"isbn"`
	BookTitle  string     `json:"bookTitle"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// IsOpen reports whether the book is still held by the user.
func (l Loan) IsOpen() bool {
	return l.ReturnDate == nil
}

// AgeDays returns the calendar-day age of the loan, rounded up.
func (l Loan) AgeDays(now time.Time) int {
	diff := now.Sub(l.BorrowDate)
	if diff <= 0 {
		return 0
	}

	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) != 0 {
		days++
	}

	return days
}
