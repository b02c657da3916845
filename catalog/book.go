package catalog

import (
	"regexp"
	"time"

	"github.com/libropolis/lending-library-go/liberrors"
)

var isbnPattern = regexp.MustCompile(`^\d{13}$`)

// Book represents a catalogued title together with its physical copy counts.
//
// The copy-count invariant 0 <= BorrowedCopies <= TotalCopies holds at all
// times; it is only mutated through the Catalog's Borrow and Return
// operations or an explicit Update patch.
type Book struct {
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	PublicationYear int    `json:"publicationYear"`
	Genre           string `json:"genre"`
	TotalCopies     int    `json:"totalCopies"`
	BorrowedCopies  int    `json:"borrowedCopies"`
}

// AvailableCopies returns how many copies can currently be borrowed.
func (b Book) AvailableCopies() int {
	return b.TotalCopies - b.BorrowedCopies
}

// IsAvailable reports whether at least one copy can be borrowed.
func (b Book) IsAvailable() bool {
	return b.AvailableCopies() > 0
}

// Age returns the number of years since publication.
func (b Book) Age() int {
	return time.Now().Year() - b.PublicationYear
}

// AddBookInput carries the validated-at-the-boundary data for Catalog.Add.
type AddBookInput struct {
	ISBN            string
	Title           string
	Author          string
	PublicationYear int
	Genre           string
	TotalCopies     int
}

// Validate checks the input against the catalogue's format rules.
func (in AddBookInput) Validate() error {
	if !isbnPattern.MatchString(in.ISBN) {
		return liberrors.Validation("isbn %q is not a 13-digit numeric string", in.ISBN)
	}

	if in.PublicationYear <= 1000 || in.PublicationYear > time.Now().Year() {
		return liberrors.Validation("publication year %d is out of range", in.PublicationYear)
	}

	if in.TotalCopies <= 0 {
		return liberrors.Validation("total copies must be positive, got %d", in.TotalCopies)
	}

	return nil
}

// BookPatch describes a partial update for a Book. Nil fields are left unchanged.
type BookPatch struct {
	Title       *string
	Author      *string
	Genre       *string
	TotalCopies *int
}
