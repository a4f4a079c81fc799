package engine

import "sync/atomic"

// Clock is a monotonic sequence used to number dequeued commands.
//
// The sequence shows up in logs as "seq" and makes the worker's processing
// order visible independent of wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the Run goroutine calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
