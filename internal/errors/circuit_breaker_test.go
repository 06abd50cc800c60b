package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string

	cb := NewCircuitBreaker(BreakerConfig{
		MinRequests:         4,
		OpenTimeout:         time.Minute,
		HalfOpenMaxRequests: 2,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return clock }

	boom := errors.New("boom")
	for i := 0; i < 4; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	}
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.True(t, IsCircuitOpen(err))
	assert.False(t, called)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(BreakerConfig{MinRequests: 1, OpenTimeout: time.Second})
	cb.now = func() time.Time { return clock }

	_ = cb.Call(func() error { return errors.New("fail") })
	require.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Second)
	_ = cb.Call(func() error { return errors.New("still failing") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestHandler_ReturnsUserMessageKey(t *testing.T) {
	h := NewHandler(nil, false)
	ctx := context.Background()

	key, args := h.Handle(ctx, NewRateLimitError(7))
	assert.Equal(t, "errors.rate_limited", key)
	assert.Equal(t, []any{7}, args)

	key, _ = h.Handle(ctx, NewNotFoundError("question", errors.New("missing")))
	assert.Equal(t, "errors.not_found.question", key)

	key, _ = h.Handle(ctx, errors.New("plain"))
	assert.Equal(t, UnknownErrorKey, key)

	key, args = h.Handle(ctx, nil)
	assert.Empty(t, key)
	assert.Nil(t, args)
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	sentinel := errors.New("question not found")
	err := NewNotFoundError("question", sentinel)

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, "question not found: question not found", err.Error())
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(NewValidationError("empty")))
	assert.True(t, IsRejection(NewNotFoundError("user", nil)))
	assert.True(t, IsRejection(NewForbiddenError("moderate", nil)))
	assert.True(t, IsRejection(NewStateError("already moderated", nil)))
	assert.True(t, IsRejection(NewRateLimitError(1)))

	assert.False(t, IsRejection(NewDatabaseError(errors.New("down"))))
	assert.False(t, IsRejection(NewExternalAPIError("telegram", errors.New("timeout"))))
	assert.False(t, IsRejection(errors.New("plain")))
	assert.False(t, IsRejection(nil))
}
