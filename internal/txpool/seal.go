package txpool

import "sync/atomic"

// SealCounter tracks the number of sealed (in-flight-in-proposal)
// transactions, maintained incrementally with atomic updates rather than
// recomputed by scanning the table. It drives unsealed-size notification.
type SealCounter struct {
	n atomic.Int64
}

func (c *SealCounter) Inc() {
	c.n.Add(1)
}

func (c *SealCounter) Dec() {
	c.n.Add(-1)
}

func (c *SealCounter) Set(n int64) {
	c.n.Store(n)
}

func (c *SealCounter) Load() int64 {
	return c.n.Load()
}
