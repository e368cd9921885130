package trace

import "sync/atomic"

// SeqSource stamps trace records with a monotonic sequence.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type SeqSource interface {
	Next() int64
}

// Clock is a monotonic logical clock for trace ordering.
//
// Records are stamped with a strictly increasing seq instead of wall-clock
// timestamps, so a trace read back later sorts identically regardless of
// timer resolution or clock adjustments.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position, used when
// appending to an existing trace database.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
