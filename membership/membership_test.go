package membership_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libropolis/lending-library-go/liberrors"
	"github.com/libropolis/lending-library-go/membership"
)

func registerAlice(t *testing.T, m *membership.Membership) membership.User {
	t.Helper()

	user, err := m.Register(membership.RegisterUserInput{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)

	return user
}

func Test_Register_CreatesUserWithRegistrationDate(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)

	user := registerAlice(t, m)

	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.RegistrationDate.IsZero())
	assert.Empty(t, user.BorrowedISBNs)
}

func Test_Register_FailsValidationForMalformedEmail(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)

	for _, email := range []string{"", "not-an-email", "a b@example.com", "missing@tld"} {
		_, err := m.Register(membership.RegisterUserInput{Name: "X", Email: email})
		assert.True(t, liberrors.IsKind(err, liberrors.KindValidation), "email %q must be rejected", email)
	}
}

func Test_Register_FailsWithConflictForDuplicateEmail(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)

	_, err := m.Register(membership.RegisterUserInput{Name: "Other Alice", Email: "alice@example.com"})

	assert.True(t, liberrors.IsKind(err, liberrors.KindConflict))
}

func Test_FindByEmail_FailsWithNotFoundForUnknownEmail(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)

	_, err := m.FindByEmail("nobody@example.com")

	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))
}

func Test_Update_PatchesNameAndLeavesNilFieldsUntouched(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)

	newName := "Alice B."
	user, err := m.Update("alice@example.com", membership.UserPatch{Name: &newName})

	require.NoError(t, err)
	assert.Equal(t, "Alice B.", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)

	unchanged, err := m.Update("alice@example.com", membership.UserPatch{})
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", unchanged.Name)
}

func Test_Update_RejectsEmptyNameAndUnknownEmail(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)

	empty := ""
	_, err := m.Update("alice@example.com", membership.UserPatch{Name: &empty})
	assert.True(t, liberrors.IsKind(err, liberrors.KindValidation))

	_, err = m.Update("nobody@example.com", membership.UserPatch{})
	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))
}

func Test_CanBorrow_ComparesCountAgainstTheCap(t *testing.T) {
	m := membership.New(2)
	registerAlice(t, m)
	now := time.Now()

	assert.True(t, m.CanBorrow("alice@example.com"))

	require.True(t, m.AddBorrowed("alice@example.com", "1111111111111", "One", now))
	assert.True(t, m.CanBorrow("alice@example.com"))

	require.True(t, m.AddBorrowed("alice@example.com", "2222222222222", "Two", now))
	assert.False(t, m.CanBorrow("alice@example.com"))

	assert.False(t, m.CanBorrow("nobody@example.com"), "unknown users cannot borrow")
}

func Test_AddBorrowed_EnforcesTheCapInsideTheCriticalSection(t *testing.T) {
	m := membership.New(3)
	registerAlice(t, m)
	now := time.Now()

	isbns := []string{
		"1111111111111", "2222222222222", "3333333333333", "4444444444444",
		"5555555555555", "6666666666666", "7777777777777", "8888888888888",
	}

	var wg sync.WaitGroup
	succeeded := make(chan string, len(isbns))

	for _, isbn := range isbns {
		wg.Add(1)
		go func(isbn string) {
			defer wg.Done()
			if m.AddBorrowed("alice@example.com", isbn, "Title", now) {
				succeeded <- isbn
			}
		}(isbn)
	}

	wg.Wait()
	close(succeeded)

	count := 0
	for range succeeded {
		count++
	}
	assert.Equal(t, 3, count, "concurrent borrows must never push a user past the cap")

	user, err := m.FindByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Len(t, user.BorrowedISBNs, 3)
}

func Test_AddBorrowed_AppendsAnOpenHistoryEntry(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)
	borrowedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.True(t, m.AddBorrowed("alice@example.com", "1111111111111", "The Title", borrowedAt))

	user, err := m.FindByEmail("alice@example.com")
	require.NoError(t, err)
	require.Len(t, user.BorrowHistory, 1)
	entry := user.BorrowHistory[0]
	assert.Equal(t, "1111111111111", entry.ISBN)
	assert.Equal(t, "The Title", entry.BookTitle)
	assert.Equal(t, borrowedAt, entry.BorrowDate)
	assert.False(t, entry.Returned)
	assert.Nil(t, entry.ReturnDate)
}

func Test_RemoveBorrowed_ClosesTheOpenHistoryEntry(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)
	borrowedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	returnedAt := borrowedAt.Add(48 * time.Hour)

	require.True(t, m.AddBorrowed("alice@example.com", "1111111111111", "The Title", borrowedAt))
	require.True(t, m.RemoveBorrowed("alice@example.com", "1111111111111", returnedAt))

	user, err := m.FindByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, user.BorrowedISBNs)
	require.Len(t, user.BorrowHistory, 1, "history is append-only")
	assert.True(t, user.BorrowHistory[0].Returned)
	require.NotNil(t, user.BorrowHistory[0].ReturnDate)
	assert.Equal(t, returnedAt, *user.BorrowHistory[0].ReturnDate)
}

func Test_RemoveBorrowed_FailsForBooksTheUserDoesNotHold(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)

	assert.False(t, m.RemoveBorrowed("alice@example.com", "1111111111111", time.Now()))
	assert.False(t, m.RemoveBorrowed("nobody@example.com", "1111111111111", time.Now()))
}

func Test_FindByEmail_ReturnedUserIsDetachedFromOwnedState(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)
	require.True(t, m.AddBorrowed("alice@example.com", "1111111111111", "The Title", time.Now()))

	user, err := m.FindByEmail("alice@example.com")
	require.NoError(t, err)
	user.BorrowedISBNs[0] = "tampered"

	fresh, err := m.FindByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1111111111111", fresh.BorrowedISBNs[0])
}

func Test_MostActive_OrdersByHistoryLengthDescending(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)
	_, err := m.Register(membership.RegisterUserInput{Name: "Bob", Email: "bob@example.com"})
	require.NoError(t, err)

	now := time.Now()
	require.True(t, m.AddBorrowed("bob@example.com", "1111111111111", "One", now))
	require.True(t, m.AddBorrowed("bob@example.com", "2222222222222", "Two", now))
	require.True(t, m.AddBorrowed("alice@example.com", "3333333333333", "Three", now))

	top := m.MostActive(1)

	require.Len(t, top, 1)
	assert.Equal(t, "bob@example.com", top[0].Email)
}

func Test_Restore_ReplacesMembershipContent(t *testing.T) {
	m := membership.New(membership.DefaultMaxBooksPerUser)
	registerAlice(t, m)

	m.Restore([]membership.User{{Name: "Carol", Email: "carol@example.com"}})

	_, err := m.FindByEmail("alice@example.com")
	assert.True(t, liberrors.IsKind(err, liberrors.KindNotFound))

	user, err := m.FindByEmail("carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Carol", user.Name)
}
