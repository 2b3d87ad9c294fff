package pkt

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/zjkmxy/pktsched/sched/defn"
)

// Budget bounds the number of live objects of some kind. Waiting
// acquisitions block for at most the configured timeout.
type Budget struct {
	sem  *semaphore.Weighted
	size int64
	held atomic.Int64
	wait time.Duration
}

// NewBudget creates a budget of n tokens.
func NewBudget(n int, wait time.Duration) *Budget {
	return &Budget{
		sem:  semaphore.NewWeighted(int64(n)),
		size: int64(n),
		wait: wait,
	}
}

// Acquire takes one token or fails with defn.ErrNoMemory.
func (b *Budget) Acquire(mode defn.AllocMode) error {
	if b.sem.TryAcquire(1) {
		b.held.Add(1)
		return nil
	}
	if mode == defn.AllocNoWait || b.wait <= 0 {
		return defn.ErrNoMemory
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.wait)
	defer cancel()
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return defn.ErrNoMemory
	}
	b.held.Add(1)
	return nil
}

// Release returns one token.
func (b *Budget) Release() {
	if b.held.Add(-1) < 0 {
		b.held.Add(1)
		panic("[BUG] budget released more tokens than acquired")
	}
	b.sem.Release(1)
}

// Available returns the number of free tokens.
func (b *Budget) Available() int {
	return int(b.size - b.held.Load())
}

// Capacity returns the total number of tokens.
func (b *Budget) Capacity() int {
	return int(b.size)
}
