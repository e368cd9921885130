package gen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_ForwardsToRouter(t *testing.T) {
	var gotFn string
	var gotArgs []any
	router := func(ctx context.Context, fn string, args []any) (any, error) {
		gotFn = fn
		gotArgs = args
		return "routed", nil
	}

	api, err := API(counterService(), router)
	require.NoError(t, err)
	assert.Len(t, api, 3)

	v, err := api["add"](context.Background(), int64(5))
	require.NoError(t, err)
	assert.Equal(t, "routed", v)
	assert.Equal(t, "add", gotFn)
	assert.Equal(t, []any{int64(5)}, gotArgs)
}

func TestAPI_ElidesStateParameter(t *testing.T) {
	api, err := API(counterService(), func(ctx context.Context, fn string, args []any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	// "add" declares (total, n): callers pass only n.
	_, err = api["add"](context.Background(), int64(1), int64(2))
	var arityErr *ArityError
	require.ErrorAs(t, err, &arityErr)
	assert.Equal(t, 1, arityErr.Want)
}

func TestAPI_NilRouter(t *testing.T) {
	_, err := API(counterService(), nil)
	require.Error(t, err)
}

func TestInlineAPI_ThreadsStateExplicitly(t *testing.T) {
	api, err := InlineAPI(counterService())
	require.NoError(t, err)

	v, next, err := api["add"](int64(10), int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(15), v)
	assert.Equal(t, int64(15), next)

	// Plain replies hand the caller's state back unchanged.
	v, next, err = api["value"](int64(10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)
	assert.Equal(t, int64(10), next)
}

func TestInlineAPI_ErrorLeavesStateUnchanged(t *testing.T) {
	api, err := InlineAPI(counterService())
	require.NoError(t, err)

	_, next, err := api["add"](int64(10), "not a number")
	require.Error(t, err)
	assert.Equal(t, int64(10), next)
}
