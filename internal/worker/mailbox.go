package worker

import "sync"

// request is one queued call: function name, arguments, and the reply
// channel the caller is waiting on. The reply channel always has capacity 1
// so the run loop never blocks on a caller that abandoned its wait.
type request struct {
	fn    string
	args  []any
	reply chan response
}

// response is what the run loop sends back: the unwrapped reply value or a
// boundary error.
type response struct {
	value any
	err   error
}

// mailbox is a thread-safe FIFO queue of call requests.
//
// The queue is unbounded: callers block on the reply rendezvous, not on
// enqueue, so the mailbox depth is naturally limited by the number of
// concurrent callers.
//
// Thread-safety is provided for enqueuing from any caller goroutine while
// the worker's run loop dequeues. The signal channel (buffered, size 1)
// coalesces wakeups and is closed on Close to release a blocked run loop.
type mailbox struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		requests: make([]request, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the mailbox.
// Returns false if the mailbox is closed; the caller must then report the
// worker as unavailable rather than wait forever.
func (m *mailbox) Enqueue(r request) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	m.requests = append(m.requests, r)

	// Non-blocking signal - buffer of 1 coalesces multiple wakeups.
	select {
	case m.signal <- struct{}{}:
	default:
	}

	return true
}

// Dequeue removes and returns the front request, blocking until one is
// available or the mailbox is closed. A closed mailbox drains: requests
// already queued are still returned, then (request{}, false).
func (m *mailbox) Dequeue() (request, bool) {
	for {
		m.mu.Lock()
		if len(m.requests) > 0 {
			r := m.requests[0]
			// Nil out the slot so the request's args don't outlive it.
			m.requests[0] = request{}
			if len(m.requests) == 1 {
				m.requests = m.requests[:0]
			} else {
				m.requests = m.requests[1:]
			}
			m.mu.Unlock()
			return r, true
		}
		if m.closed {
			m.mu.Unlock()
			return request{}, false
		}
		m.mu.Unlock()

		<-m.signal
	}
}

// Drain removes and returns every queued request without blocking.
// Used on termination so pending callers get an unavailable reply instead
// of hanging.
func (m *mailbox) Drain() []request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.requests
	m.requests = nil
	return out
}

// Len returns the current queue depth.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Close marks the mailbox closed and wakes any blocked dequeuer.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true
	close(m.signal)
}
