package trace

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genserv/internal/testutil"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_CreatesSchema(t *testing.T) {
	s, _ := openTestStore(t)

	calls, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, calls)
	assert.Empty(t, calls)
}

func TestAppendAndList(t *testing.T) {
	s, _ := openTestStore(t)
	s.SetSeqSource(testutil.NewDeterministicClock())
	ctx := context.Background()

	seq, err := s.Append(ctx, Call{
		Service:   "counter_svc",
		WorkerID:  "w-1",
		Function:  "fib",
		Mode:      "named",
		Outcome:   "ok",
		ElapsedUS: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = s.Append(ctx, Call{
		Service:  "counter_svc",
		WorkerID: "w-1",
		Function: "fib",
		Mode:     "named",
		Outcome:  "error",
		Error:    "deliberate failure",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	calls, err := s.List(ctx, "counter_svc")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, int64(1), calls[0].Seq)
	assert.Equal(t, "ok", calls[0].Outcome)
	assert.Equal(t, int64(42), calls[0].ElapsedUS)
	assert.Equal(t, int64(2), calls[1].Seq)
	assert.Equal(t, "deliberate failure", calls[1].Error)
}

func TestList_FiltersByService(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, Call{Service: "a", Function: "f", Mode: "anonymous", Outcome: "ok"})
	require.NoError(t, err)
	_, err = s.Append(ctx, Call{Service: "b", Function: "g", Mode: "pooled", Outcome: "ok"})
	require.NoError(t, err)

	calls, err := s.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "f", calls[0].Function)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReopen_ResumesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, Call{Service: "a", Function: "f", Mode: "named", Outcome: "ok"})
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	seq, err := s.Append(ctx, Call{Service: "a", Function: "f", Mode: "named", Outcome: "ok"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq, "sequence continues across reopen")
}

func TestAppend_ConcurrentSeqsAreUnique(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	seqs := make([]int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			seq, err := s.Append(ctx, Call{Service: "a", Function: "f", Mode: "pooled", Outcome: "ok"})
			assert.NoError(t, err)
			seqs[i] = seq
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, seq := range seqs {
		assert.False(t, seen[seq], "duplicate seq %d", seq)
		seen[seq] = true
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	c = NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}
