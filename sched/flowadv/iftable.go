package flowadv

import (
	"sync"

	"github.com/zjkmxy/pktsched/sched/defn"
)

// Handle is a non-owning reference to an attached interface. A handle
// outlives its interface safely: lookups through it fail once the
// interface is detached, even if the slot is reused.
type Handle struct {
	idx uint32
	gen uint32
}

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

type ifSlot struct {
	gen  uint32
	live bool
	name string
}

// IfTable is the table of attached interfaces.
type IfTable struct {
	mu    sync.RWMutex
	slots []ifSlot
	free  []uint32
}

func NewIfTable() *IfTable {
	return &IfTable{}
}

// Attach registers an interface and returns its handle.
func (t *IfTable) Attach(name string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, ifSlot{})
	}
	s := &t.slots[idx]
	s.gen++
	s.live = true
	s.name = name
	return Handle{idx: idx, gen: s.gen}
}

// Detach invalidates every handle of the interface.
func (t *IfTable) Detach(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.slot(h)
	if s == nil {
		return defn.ErrNoInterface
	}
	s.live = false
	s.name = ""
	t.free = append(t.free, h.idx)
	return nil
}

// Lookup returns the name of the interface behind h.
func (t *IfTable) Lookup(h Handle) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.slot(h)
	if s == nil {
		return "", defn.ErrNoInterface
	}
	return s.name, nil
}

// Len returns the number of attached interfaces.
func (t *IfTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots) - len(t.free)
}

func (t *IfTable) slot(h Handle) *ifSlot {
	if int(h.idx) >= len(t.slots) {
		return nil
	}
	s := &t.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return nil
	}
	return s
}
