package lockfree_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/std/types/lockfree"
)

func TestYiQueueConcurrentPush(t *testing.T) {
	q := lockfree.NewYiQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(base*1000 + i)
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, 400, q.Len())
	select {
	case <-q.Notify:
	default:
		t.Fatal("consumer was not notified")
	}

	seen := map[int]bool{}
	for v := range q.Iter() {
		seen[v] = true
	}
	require.Len(t, seen, 400)
	require.Equal(t, 0, q.Len())

	_, ok := q.Pop()
	require.False(t, ok)
}
