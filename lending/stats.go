package lending

import (
	"github.com/libropolis/lending-library-go/catalog"
	"github.com/libropolis/lending-library-go/ledger"
	"github.com/libropolis/lending-library-go/membership"
)

// Statistics is an aggregated view over the catalog, the membership
// registry and the loan ledger at one point in time.
type Statistics struct {
	UniqueTitles        int     `json:"uniqueTitles"`
	TotalCopies         int     `json:"totalCopies"`
	AvailableCopies     int     `json:"availableCopies"`
	BorrowedCopies      int     `json:"borrowedCopies"`
	TotalUsers          int     `json:"totalUsers"`
	ActiveLoans         int     `json:"activeLoans"`
	AverageBooksPerUser float64 `json:"averageBooksPerUser"`
	MostPopularGenre    string  `json:"mostPopularGenre"`
}

// Statistics aggregates the current library state. The three components are
// read independently, so the numbers form a near-consistent snapshot under
// concurrent mutation, never a torn one.
func (e *Engine) Statistics() Statistics {
	books := e.catalog.All()
	users := e.membership.All()

	stats := Statistics{
		UniqueTitles: len(books),
		TotalUsers:   len(users),
		ActiveLoans:  e.ledger.OpenCount(),
	}

	genreCounts := make(map[string]int)
	for _, book := range books {
		stats.TotalCopies += book.TotalCopies
		stats.BorrowedCopies += book.BorrowedCopies
		genreCounts[book.Genre]++
	}
	stats.AvailableCopies = stats.TotalCopies - stats.BorrowedCopies

	for genre, count := range genreCounts {
		if count > genreCounts[stats.MostPopularGenre] {
			stats.MostPopularGenre = genre
		}
	}

	if len(users) > 0 {
		borrowed := 0
		for _, user := range users {
			borrowed += user.BorrowCount()
		}
		stats.AverageBooksPerUser = float64(borrowed) / float64(len(users))
	}

	return stats
}

// PopularBooks returns up to limit books ordered by how often they are
// currently borrowed.
func (e *Engine) PopularBooks(limit int) []catalog.Book {
	return e.catalog.MostBorrowed(limit)
}

// ActiveUsers returns up to limit users ordered by their open borrow count.
func (e *Engine) ActiveUsers(limit int) []membership.User {
	return e.membership.MostActive(limit)
}

// OverdueLoans returns all open loans older than the given number of days.
func (e *Engine) OverdueLoans(days int) []ledger.Loan {
	return e.ledger.FindOverdue(days, e.clock())
}
