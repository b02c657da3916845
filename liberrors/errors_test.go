package liberrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libropolis/lending-library-go/liberrors"
)

func Test_Constructors_CarryKindAndFormattedMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind liberrors.Kind
	}{
		{name: "validation", err: liberrors.Validation("bad isbn %s", "x"), kind: liberrors.KindValidation},
		{name: "conflict", err: liberrors.Conflict("duplicate %s", "x"), kind: liberrors.KindConflict},
		{name: "not_found", err: liberrors.NotFound("missing %s", "x"), kind: liberrors.KindNotFound},
		{name: "limit_exceeded", err: liberrors.LimitExceeded("cap %d", 5), kind: liberrors.KindLimitExceeded},
		{name: "unavailable", err: liberrors.Unavailable("no copies of %s", "x"), kind: liberrors.KindUnavailable},
		{name: "timeout", err: liberrors.Timeout("after %dms", 100), kind: liberrors.KindTimeout},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, liberrors.IsKind(tc.err, tc.kind))
			assert.Equal(t, tc.kind, liberrors.KindOf(tc.err))
			assert.Contains(t, tc.err.Error(), string(tc.kind))
		})
	}
}

func Test_Persistence_WrapsTheUnderlyingCause(t *testing.T) {
	cause := errors.New("connection reset")

	err := liberrors.Persistence(cause, "saving record %s failed", "book_1")

	assert.True(t, liberrors.IsKind(err, liberrors.KindPersistence))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func Test_IsKind_SeesThroughWrapping(t *testing.T) {
	inner := liberrors.NotFound("no book")
	wrapped := fmt.Errorf("lookup: %w", inner)

	assert.True(t, liberrors.IsKind(wrapped, liberrors.KindNotFound))
	assert.False(t, liberrors.IsKind(wrapped, liberrors.KindConflict))
	assert.False(t, liberrors.IsKind(errors.New("plain"), liberrors.KindNotFound))
	assert.Equal(t, liberrors.Kind(""), liberrors.KindOf(errors.New("plain")))
}

func Test_AggregateError_CarriesEveryReason(t *testing.T) {
	first := liberrors.NotFound("miss one")
	second := liberrors.Timeout("too slow")

	err := liberrors.NewAggregateError([]error{first, second})

	assert.True(t, liberrors.IsKind(err, liberrors.KindAggregate))
	assert.Equal(t, liberrors.KindAggregate, liberrors.KindOf(err))
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Contains(t, err.Error(), "all 2 operations failed")

	var aggregate *liberrors.AggregateError
	require.ErrorAs(t, err, &aggregate)
	assert.Len(t, aggregate.Reasons, 2)
}
