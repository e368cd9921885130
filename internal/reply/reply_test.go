package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlain(t *testing.T) {
	r := Plain(42)
	assert.Equal(t, KindPlain, r.Kind())
	assert.Equal(t, 42, r.Value())
	assert.False(t, r.Updates())
}

func TestWithState(t *testing.T) {
	r := WithState("value", map[string]int{"a": 1})
	assert.Equal(t, KindWithState, r.Kind())
	assert.Equal(t, "value", r.Value())
	assert.Equal(t, map[string]int{"a": 1}, r.State())
	assert.True(t, r.Updates())
}

func TestNormalize_PlainUnchanged(t *testing.T) {
	r, err := Normalize(Plain("x"))
	require.NoError(t, err)
	assert.Equal(t, KindPlain, r.Kind())
	assert.Equal(t, "x", r.Value())
}

func TestNormalize_WithStateUnchanged(t *testing.T) {
	r, err := Normalize(WithState(1, 2))
	require.NoError(t, err)
	assert.Equal(t, KindWithState, r.Kind())
	assert.Equal(t, 1, r.Value())
	assert.Equal(t, 2, r.State())
}

func TestNormalize_SetStateDefaultsValueToState(t *testing.T) {
	// The set-state-and-return-it shorthand: omitted result defaults to
	// the new state itself.
	r, err := Normalize(SetState("new"))
	require.NoError(t, err)
	assert.Equal(t, KindWithState, r.Kind())
	assert.Equal(t, "new", r.Value())
	assert.Equal(t, "new", r.State())
}

func TestNormalize_Idempotent(t *testing.T) {
	once, err := Normalize(SetState(7))
	require.NoError(t, err)
	twice, err := Normalize(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalize_ZeroReplyIsError(t *testing.T) {
	_, err := Normalize(Reply{})
	require.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "Plain(1)", Plain(1).String())
	assert.Equal(t, "WithState(1, 2)", WithState(1, 2).String())
	assert.Equal(t, "SetState(3)", SetState(3).String())
}
