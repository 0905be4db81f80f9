package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewStaleStateError("booking changed"))

	assert.True(t, errors.Is(err, ErrStaleState))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindStaleState, KindOf(err))
}

func TestTransitionError(t *testing.T) {
	err := NewInvalidTransitionError("confirm", "completed", "broker")

	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, KindInvalidTransition, KindOf(err))
	assert.Contains(t, err.Error(), "broker may not confirm a booking in status completed")
}

func TestKindOf_UnknownError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestNewPaginatedResult_NilItems(t *testing.T) {
	res := NewPaginatedResult[int](nil, 0, 1, 20)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
}
