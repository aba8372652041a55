package engine

import "sync/atomic"

// Clock is the editor's monotonic revision counter.
//
// Every accepted edit is stamped with Next(), so revisions are strictly
// increasing across the whole library and never depend on wall time. The
// editor seeds its clock from the highest stored revision on start.
//
// Clock is safe for concurrent use, though only the Run loop advances it.
type Clock struct {
	rev atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next revision is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.rev.Store(start)
	return c
}

// Next advances the clock and returns the new revision.
func (c *Clock) Next() int64 {
	return c.rev.Add(1)
}

// Current returns the last issued revision without advancing.
func (c *Clock) Current() int64 {
	return c.rev.Load()
}
