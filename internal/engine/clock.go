package engine

import "sync/atomic"

// Clock is the session's logical clock. Every change event is stamped with
// a strictly increasing seq from it; no wall-clock time is used for
// ordering.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
