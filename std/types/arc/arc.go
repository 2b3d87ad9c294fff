// Package arc provides atomically reference counted values that
// return to a pool when the last reference is dropped.
package arc

import "sync/atomic"

// Arc is an atomically reference counted value.
type Arc[T any] struct {
	v T
	c atomic.Int32
	p *ArcPool[T]
}

// Load returns the value.
func (a *Arc[T]) Load() T {
	return a.v
}

// Dec drops a reference. At zero the value goes back to its pool.
func (a *Arc[T]) Dec() int32 {
	c := a.c.Add(-1)
	if c < 0 {
		panic("[BUG] arc reference count below zero")
	}
	if c == 0 && a.p != nil {
		a.p.Put(a)
	}
	return c
}
