package membership

import (
	"sort"
	"sync"
	"time"

	"github.com/libropolis/lending-library-go/liberrors"
)

// DefaultMaxBooksPerUser is the borrow cap applied when none is configured.
const DefaultMaxBooksPerUser = 5

// Membership owns User entities and the per-user borrowing limit.
type Membership struct {
	mu              sync.RWMutex
	users           map[string]*User // keyed by email
	maxBooksPerUser int
}

// New creates an empty Membership with the given borrow cap.
// A non-positive cap falls back to DefaultMaxBooksPerUser.
func New(maxBooksPerUser int) *Membership {
	if maxBooksPerUser <= 0 {
		maxBooksPerUser = DefaultMaxBooksPerUser
	}

	return &Membership{
		users:           make(map[string]*User),
		maxBooksPerUser: maxBooksPerUser,
	}
}

// MaxBooksPerUser returns the configured borrow cap.
func (m *Membership) MaxBooksPerUser() int {
	return m.maxBooksPerUser
}

// Register validates the input and creates a new User.
// It fails with a validation error on a malformed email and with a conflict
// error if the email is already registered.
func (m *Membership) Register(input RegisterUserInput) (User, error) {
	if err := input.Validate(); err != nil {
		return User{}, err
	}

	registeredAt := input.RegistrationDate
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[input.Email]; exists {
		return User{}, liberrors.Conflict("user with email %s already registered", input.Email)
	}

	user := &User{
		Name:             input.Name,
		Email:            input.Email,
		RegistrationDate: registeredAt,
	}
	m.users[input.Email] = user

	return cloneUser(user), nil
}

// FindByEmail returns the user registered under the given email.
func (m *Membership) FindByEmail(email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[email]
	if !exists {
		return User{}, liberrors.NotFound("no user with email %s", email)
	}

	return cloneUser(user), nil
}

// Update applies the non-nil fields of the patch to the user registered under
// the given email and returns the updated user. The email itself is the
// identity of a user and cannot be patched.
func (m *Membership) Update(email string, patch UserPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[email]
	if !exists {
		return User{}, liberrors.NotFound("no user with email %s", email)
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return User{}, liberrors.Validation("user name must not be empty")
		}
		user.Name = *patch.Name
	}

	return cloneUser(user), nil
}

// CanBorrow reports whether the user may borrow another book.
// The check always compares counts, never collections.
func (m *Membership) CanBorrow(email string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[email]
	if !exists {
		return false
	}

	return len(user.BorrowedISBNs) < m.maxBooksPerUser
}

// AddBorrowed appends the ISBN to the user's borrowed list and opens a
// history entry. The cap is re-checked inside the critical section, so two
// concurrent borrows cannot push a user past the limit; false means the cap
// was reached and the caller must treat the borrow as failed.
func (m *Membership) AddBorrowed(email, isbn, bookTitle string, borrowedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[email]
	if !exists || len(user.BorrowedISBNs) >= m.maxBooksPerUser {
		return false
	}

	user.BorrowedISBNs = append(user.BorrowedISBNs, isbn)
	user.BorrowHistory = append(user.BorrowHistory, HistoryEntry{
		ISBN:       isbn,
		BookTitle:  bookTitle,
		BorrowDate: borrowedAt,
	})

	return true
}

// RemoveBorrowed removes the ISBN from the user's borrowed list and marks the
// matching open history entry as returned. It returns false when the user
// does not currently hold the ISBN.
func (m *Membership) RemoveBorrowed(email, isbn string, returnedAt time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[email]
	if !exists {
		return false
	}

	index := -1
	for i, held := range user.BorrowedISBNs {
		if held == isbn {
			index = i
			break
		}
	}

	if index < 0 {
		return false
	}

	user.BorrowedISBNs = append(user.BorrowedISBNs[:index], user.BorrowedISBNs[index+1:]...)

	for i := range user.BorrowHistory {
		entry := &user.BorrowHistory[i]
		if entry.ISBN == isbn && !entry.Returned {
			entry.Returned = true
			at := returnedAt
			entry.ReturnDate = &at
			break
		}
	}

	return true
}

// All returns a copy of every registered user, ordered by email.
func (m *Membership) All() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(m.users))
	for _, user := range m.users {
		users = append(users, cloneUser(user))
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})

	return users
}

// MostActive returns up to limit users ordered by descending history length.
func (m *Membership) MostActive(limit int) []User {
	users := m.All()

	sort.SliceStable(users, func(i, j int) bool {
		return len(users[i].BorrowHistory) > len(users[j].BorrowHistory)
	})

	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}

	return users
}

// Restore replaces the membership content with the given users.
// It is used when loading a persistence snapshot.
func (m *Membership) Restore(users []User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[string]*User, len(users))
	for i := range users {
		user := users[i]
		m.users[user.Email] = &user
	}
}

// cloneUser copies a user including its slices, so callers can never mutate
// owned state through a returned value.
func cloneUser(u *User) User {
	clone := *u
	clone.BorrowedISBNs = append([]string(nil), u.BorrowedISBNs...)
	clone.BorrowHistory = append([]HistoryEntry(nil), u.BorrowHistory...)

	return clone
}
