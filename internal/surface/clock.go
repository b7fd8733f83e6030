package surface

import "sync/atomic"

// Sequencer issues change-event sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Every applied message is stamped with
// a strictly increasing seq, so subscribers can order events without
// relying on wall time. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
