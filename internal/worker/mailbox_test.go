package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()

	for _, fn := range []string{"a", "b", "c"} {
		require.True(t, m.Enqueue(request{fn: fn}))
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := m.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.fn)
	}
}

func TestMailbox_DequeueBlocksUntilEnqueue(t *testing.T) {
	m := newMailbox()

	done := make(chan request, 1)
	go func() {
		r, ok := m.Dequeue()
		if ok {
			done <- r
		}
	}()

	// Give the goroutine time to block.
	time.Sleep(10 * time.Millisecond)
	m.Enqueue(request{fn: "wake"})

	select {
	case r := <-done:
		assert.Equal(t, "wake", r.fn)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake")
	}
}

func TestMailbox_CloseRejectsEnqueue(t *testing.T) {
	m := newMailbox()
	m.Close()
	assert.False(t, m.Enqueue(request{fn: "late"}))
}

func TestMailbox_CloseDrainsThenFalse(t *testing.T) {
	m := newMailbox()
	m.Enqueue(request{fn: "pending"})
	m.Close()

	r, ok := m.Dequeue()
	require.True(t, ok, "queued requests still served after close")
	assert.Equal(t, "pending", r.fn)

	_, ok = m.Dequeue()
	assert.False(t, ok)
}

func TestMailbox_CloseWakesBlockedDequeuer(t *testing.T) {
	m := newMailbox()

	done := make(chan bool, 1)
	go func() {
		_, ok := m.Dequeue()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake dequeuer")
	}
}

func TestMailbox_Drain(t *testing.T) {
	m := newMailbox()
	m.Enqueue(request{fn: "a"})
	m.Enqueue(request{fn: "b"})

	drained := m.Drain()
	require.Len(t, drained, 2)
	assert.Equal(t, 0, m.Len())
}

func TestMailbox_CloseIdempotent(t *testing.T) {
	m := newMailbox()
	m.Close()
	m.Close() // must not panic
}
