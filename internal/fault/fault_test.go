package fault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	assert.ErrorIs(t, PoolExhausted("svc", "f", nil), ErrPoolExhausted)
	assert.ErrorIs(t, Timeout("svc", "f", "w-1"), ErrCallTimeout)
	assert.ErrorIs(t, Unavailable("svc", "f", "w-1", nil), ErrServiceUnavailable)
}

func TestCauseIsPreserved(t *testing.T) {
	cause := errors.New("boom")
	err := Unavailable("svc", "f", "w-1", cause)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestCallErrorFields(t *testing.T) {
	var ce *CallError
	err := PoolExhausted("svc", "checkout", nil)
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, CodePoolExhausted, ce.Code)
	assert.Equal(t, "svc", ce.Service)

	assert.Contains(t, Timeout("svc", "f", "w-1").Error(), "w-1")
	assert.Contains(t, Unavailable("svc", "", "", nil).Error(), "SERVICE_UNAVAILABLE")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(PoolExhausted("svc", "f", nil)))
	assert.True(t, IsRetryable(Timeout("svc", "f", "w")))
	assert.False(t, IsRetryable(Unavailable("svc", "f", "w", nil)))
	assert.False(t, IsRetryable(errors.New("other")))
}
