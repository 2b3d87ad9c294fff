package arc

import (
	"github.com/zjkmxy/pktsched/std/types/sync_pool"
)

// ArcPool is a pool of Arc values. Get returns an Arc holding one reference.
type ArcPool[T any] struct {
	sync_pool.SyncPool[*Arc[T]]
}

// NewArcPool creates a new ArcPool[T].
func NewArcPool[T any](init func() T, reset func(T)) *ArcPool[T] {
	pool := &ArcPool[T]{}
	pool.SyncPool = sync_pool.New(
		func() *Arc[T] { return &Arc[T]{v: init(), p: pool} },
		func(val *Arc[T]) {
			reset(val.Load())
			val.c.Store(1)
		})
	return pool
}
