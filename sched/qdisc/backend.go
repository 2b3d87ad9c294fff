package qdisc

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pktview"
)

// Discipline is a queueing discipline attached to one queue. Every method
// is called with the queue lock held.
type Discipline interface {
	// Enqueue takes ownership of v. Dropped packets go through the traced
	// drop path.
	Enqueue(lq *Locked, v pktview.View) (defn.EnqueueResult, error)
	// Dequeue returns the next packet to transmit.
	Dequeue(lq *Locked) (pktview.View, bool)
	// Len returns the number of queued packets.
	Len() int
	// Flush hands every queued packet to drop, leaving the discipline empty.
	Flush(lq *Locked, drop func(v *pktview.View))
	// Teardown releases discipline state. The discipline is empty.
	Teardown(lq *Locked)
	// Stats returns statistics of one queue of a group, or of the whole
	// group with defn.StatsAllQueues. false means unsupported.
	Stats(lq *Locked, groupID, queueID uint32) (defn.QueueStats, bool)
}

// Backend creates disciplines of one kind.
type Backend interface {
	Setup(lq *Locked, flags defn.QdiscFlags, rep defn.Representation) (Discipline, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(lq *Locked, flags defn.QdiscFlags, rep defn.Representation) (Discipline, error)

func (f BackendFunc) Setup(lq *Locked, flags defn.QdiscFlags, rep defn.Representation) (Discipline, error) {
	return f(lq, flags, rep)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[defn.Kind]Backend)
)

// MustRegister registers the backend of a discipline kind, and panics if
// the kind already has one. This is intended to be called from init().
func MustRegister(kind defn.Kind, b Backend) {
	if kind == defn.KindNone || b == nil {
		panic("[BUG] invalid discipline registration")
	}
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, ok := backends[kind]; ok {
		panic(fmt.Sprintf("discipline %s already registered", kind))
	}
	backends[kind] = b
}

// RegisterBackend replaces the backend of kind and returns the previous
// one. A nil backend unregisters the kind.
func RegisterBackend(kind defn.Kind, b Backend) (prev Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	prev = backends[kind]
	if b == nil {
		delete(backends, kind)
	} else {
		backends[kind] = b
	}
	return prev
}

// Registered lists the kinds with a backend.
func Registered() []defn.Kind {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return slices.Sorted(maps.Keys(backends))
}

func lookupBackend(kind defn.Kind) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", defn.ErrUnknownDiscipline, kind)
	}
	return b, nil
}
