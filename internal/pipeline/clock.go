package pipeline

import "sync/atomic"

// Clock stamps events with strictly increasing sequence numbers.
//
// Events are ordered by seq, never by wall-clock time, so two runs over
// the same graph log identical sequences.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, for appending to an
// existing event sequence.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
