package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/libropolis/lending-library-go/liberrors"
)

// Catalog owns all Book entities and their copy-count invariants.
//
// It is the single owner of its book collection: all mutations go through its
// methods, and every check-and-mutate runs as one critical section, so copy
// counts can never be observed half-updated by concurrent callers.
type Catalog struct {
	mu    sync.RWMutex
	books map[string]*Book // keyed by ISBN
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{
		books: make(map[string]*Book),
	}
}

// Add validates the input and creates a new Book.
// It fails with a validation error on malformed input and with a conflict
// error if the ISBN is already catalogued.
func (c *Catalog) Add(input AddBookInput) (Book, error) {
	if err := input.Validate(); err != nil {
		return Book{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.books[input.ISBN]; exists {
		return Book{}, liberrors.Conflict("book with isbn %s already exists", input.ISBN)
	}

	book := &Book{
		ISBN:            input.ISBN,
		Title:           input.Title,
		Author:          input.Author,
		PublicationYear: input.PublicationYear,
		Genre:           input.Genre,
		TotalCopies:     input.TotalCopies,
	}
	c.books[input.ISBN] = book

	return *book, nil
}

// FindByISBN returns the book with the given ISBN.
func (c *Catalog) FindByISBN(isbn string) (Book, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	book, exists := c.books[isbn]
	if !exists {
		return Book{}, liberrors.NotFound("no book with isbn %s", isbn)
	}

	return *book, nil
}

// FindByAuthor returns all books whose author contains the given substring,
// case-insensitively, ordered by ISBN.
func (c *Catalog) FindByAuthor(substr string) []Book {
	needle := strings.ToLower(substr)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Book
	for _, book := range c.books {
		if strings.Contains(strings.ToLower(book.Author), needle) {
			matches = append(matches, *book)
		}
	}

	sortByISBN(matches)

	return matches
}

// FindByGenre returns all books of the given genre, case-insensitively,
// ordered by ISBN.
func (c *Catalog) FindByGenre(genre string) []Book {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Book
	for _, book := range c.books {
		if strings.EqualFold(book.Genre, genre) {
			matches = append(matches, *book)
		}
	}

	sortByISBN(matches)

	return matches
}

// Update applies a partial patch to the book with the given ISBN.
// Shrinking TotalCopies below BorrowedCopies would break the copy-count
// invariant and fails with a conflict error.
func (c *Catalog) Update(isbn string, patch BookPatch) (Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, exists := c.books[isbn]
	if !exists {
		return Book{}, liberrors.NotFound("no book with isbn %s", isbn)
	}

	if patch.TotalCopies != nil {
		if *patch.TotalCopies < book.BorrowedCopies {
			return Book{}, liberrors.Conflict(
				"cannot shrink total copies of %s to %d, %d are borrowed",
				isbn, *patch.TotalCopies, book.BorrowedCopies)
		}
		if *patch.TotalCopies <= 0 {
			return Book{}, liberrors.Validation("total copies must be positive, got %d", *patch.TotalCopies)
		}
		book.TotalCopies = *patch.TotalCopies
	}

	if patch.Title != nil {
		book.Title = *patch.Title
	}

	if patch.Author != nil {
		book.Author = *patch.Author
	}

	if patch.Genre != nil {
		book.Genre = *patch.Genre
	}

	return *book, nil
}

// Remove deletes the book with the given ISBN.
// A book with borrowed copies cannot be removed.
func (c *Catalog) Remove(isbn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, exists := c.books[isbn]
	if !exists {
		return liberrors.NotFound("no book with isbn %s", isbn)
	}

	if book.BorrowedCopies > 0 {
		return liberrors.Conflict("cannot remove %s, %d copies are borrowed", isbn, book.BorrowedCopies)
	}

	delete(c.books, isbn)

	return nil
}

// Borrow atomically increments the borrowed count of the given book.
// It returns true only when a copy was available; false is a hard failure
// that callers must surface, never silently ignore.
func (c *Catalog) Borrow(isbn string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, exists := c.books[isbn]
	if !exists || !book.IsAvailable() {
		return false
	}

	book.BorrowedCopies++

	return true
}

// Return atomically decrements the borrowed count of the given book.
// Returning a book with no borrowed copies is a no-op that returns false;
// the count never goes negative.
func (c *Catalog) Return(isbn string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	book, exists := c.books[isbn]
	if !exists || book.BorrowedCopies == 0 {
		return false
	}

	book.BorrowedCopies--

	return true
}

// All returns a copy of every catalogued book, ordered by ISBN.
func (c *Catalog) All() []Book {
	c.mu.RLock()
	defer c.mu.RUnlock()

	books := make([]Book, 0, len(c.books))
	for _, book := range c.books {
		books = append(books, *book)
	}

	sortByISBN(books)

	return books
}

// MostBorrowed returns up to limit books ordered by descending borrowed count.
func (c *Catalog) MostBorrowed(limit int) []Book {
	books := c.All()

	sort.SliceStable(books, func(i, j int) bool {
		return books[i].BorrowedCopies > books[j].BorrowedCopies
	})

	if limit > 0 && len(books) > limit {
		books = books[:limit]
	}

	return books
}

// Restore replaces the catalogue content with the given books.
// It is used when loading a persistence snapshot.
func (c *Catalog) Restore(books []Book) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.books = make(map[string]*Book, len(books))
	for i := range books {
		book := books[i]
		c.books[book.ISBN] = &book
	}
}

func sortByISBN(books []Book) {
	sort.Slice(books, func(i, j int) bool {
		return books[i].ISBN < books[j].ISBN
	})
}
