package lockfree

import (
	"iter"
	"sync/atomic"
)

// YiQueue is a yielding queue: producers never block, and the consumer
// is woken through Notify when the queue goes from empty to non-empty.
type YiQueue[T any] struct {
	Notify chan struct{}
	queue  *Queue[T]
	size   atomic.Int32
}

func NewYiQueue[T any]() *YiQueue[T] {
	return &YiQueue[T]{
		Notify: make(chan struct{}, 1),
		queue:  NewQueue[T](),
	}
}

// Len returns the number of queued values, including ones still being pushed.
func (yq *YiQueue[T]) Len() int {
	return int(yq.size.Load())
}

func (yq *YiQueue[T]) Push(v T) {
	sizenow := yq.size.Add(1)
	yq.queue.Push(v)
	if sizenow == 1 {
		select {
		case yq.Notify <- struct{}{}:
		default:
		}
	}
}

func (yq *YiQueue[T]) Pop() (val T, ok bool) {
	for yq.size.Load() > 0 {
		val, ok = yq.queue.Pop()
		if !ok {
			// promised by a concurrent Push that has not linked its node yet
			continue
		}
		yq.size.Add(-1)
		return val, true
	}
	return val, false
}

// Iter drains the queue until it is empty.
func (yq *YiQueue[T]) Iter() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			val, ok := yq.Pop()
			if !ok || !yield(val) {
				return
			}
		}
	}
}
