package sched

import "sync/atomic"

// int64Counter hands out strictly increasing indices to a fixed pool of
// workers, i.e. a work queue over a dense integer range.
type int64Counter struct {
	v atomic.Int64
}

func (c *int64Counter) take() int {
	return int(c.v.Add(1) - 1)
}
