// Package lockfree contains queues for one consumer and many producers.
package lockfree

import (
	"sync/atomic"
)

// Queue is a lock-free linked queue with a single consumer and multiple producers.
type Queue[T any] struct {
	head *node[T]
	tail atomic.Pointer[node[T]]
}

type node[T any] struct {
	val  T
	next atomic.Pointer[node[T]]
}

// NewQueue creates an empty queue around a sentinel node.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{head: &node[T]{}}
	q.tail.Store(q.head)
	return q
}

// Push appends v. Safe for concurrent producers.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{val: v}
	for {
		tail := q.tail.Load()
		if q.tail.CompareAndSwap(tail, n) {
			tail.next.Store(n)
			return
		}
	}
}

// Pop removes the front value. Only the consumer may call it.
func (q *Queue[T]) Pop() (val T, ok bool) {
	next := q.head.next.Load()
	if next == nil {
		return val, false
	}
	q.head = next
	val = next.val
	var zero T
	next.val = zero
	return val, true
}
