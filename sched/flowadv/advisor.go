package flowadv

import (
	"sync"
	"sync/atomic"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pktview"
)

type EventKind uint8

const (
	EventSuspend EventKind = iota
	EventResume
)

func (k EventKind) String() string {
	if k == EventResume {
		return "resume"
	}
	return "suspend"
}

// Event is delivered to the advisor's listener when a flow changes state.
type Event struct {
	Kind   EventKind
	Iface  string
	Record FlowRecord
}

type flowKey struct {
	iface Handle
	flow  uint32
}

// Advisor keeps the set of suspended flows. A flow is suspended at most
// once until it is resumed.
type Advisor struct {
	ifs    *IfTable
	pool   *Pool
	listen func(Event)

	mu        sync.Mutex
	suspended map[flowKey]*FlowRecord

	advised atomic.Uint64
	resumed atomic.Uint64
}

// NewAdvisor creates an advisor. listen may be nil.
func NewAdvisor(ifs *IfTable, pool *Pool, listen func(Event)) *Advisor {
	return &Advisor{
		ifs:       ifs,
		pool:      pool,
		listen:    listen,
		suspended: make(map[flowKey]*FlowRecord),
	}
}

func (a *Advisor) String() string {
	return "flow-advisor"
}

// Advise suspends the flow of the first packet of v. It returns false
// without error when the flow is already suspended. The record is
// allocated outside the advisor lock.
func (a *Advisor) Advise(v *pktview.View, ifh Handle, mode defn.AllocMode) (bool, error) {
	m := v.Meta()
	if !m.Flags.Has(defn.PktFlagFlowAdv) {
		panic("[BUG] flow advisory for a packet without flow advisory")
	}
	key := flowKey{iface: ifh, flow: m.FlowID}
	if a.IsSuspended(ifh, key.flow) {
		return false, nil
	}

	rec, err := a.pool.Alloc(v, ifh, mode)
	if err != nil {
		core.Log.Warn(a, "Unable to allocate flow record", "flow", key.flow, "err", err)
		return false, err
	}

	a.mu.Lock()
	_, raced := a.suspended[key]
	if !raced {
		a.suspended[key] = rec
	}
	snap := *rec
	a.mu.Unlock()
	if raced {
		a.pool.Free(rec)
		return false, nil
	}

	a.advised.Add(1)
	a.notify(EventSuspend, snap)
	return true, nil
}

// Resume lifts the advisory of a flow. It returns false if the flow was
// not suspended.
func (a *Advisor) Resume(ifh Handle, flowID uint32) bool {
	key := flowKey{iface: ifh, flow: flowID}

	a.mu.Lock()
	rec, ok := a.suspended[key]
	if ok {
		delete(a.suspended, key)
	}
	a.mu.Unlock()
	if !ok {
		return false
	}

	a.resumed.Add(1)
	a.notify(EventResume, *rec)
	a.pool.Free(rec)
	return true
}

// IsSuspended reports whether the flow is under an advisory.
func (a *Advisor) IsSuspended(ifh Handle, flowID uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.suspended[flowKey{iface: ifh, flow: flowID}]
	return ok
}

// Suspended returns the number of suspended flows.
func (a *Advisor) Suspended() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.suspended)
}

// ResumeAll lifts every advisory on the interface.
func (a *Advisor) ResumeAll(ifh Handle) int {
	a.mu.Lock()
	var flows []uint32
	for k := range a.suspended {
		if k.iface == ifh {
			flows = append(flows, k.flow)
		}
	}
	a.mu.Unlock()

	n := 0
	for _, f := range flows {
		if a.Resume(ifh, f) {
			n++
		}
	}
	return n
}

// Counters returns the number of advisories issued and lifted.
func (a *Advisor) Counters() (advised, resumed uint64) {
	return a.advised.Load(), a.resumed.Load()
}

func (a *Advisor) notify(kind EventKind, rec FlowRecord) {
	if a.listen == nil {
		return
	}
	name, err := a.ifs.Lookup(rec.Iface)
	if err != nil {
		core.Log.Debug(a, "Advisory for detached interface", "flow", rec.FlowID, "kind", kind)
		return
	}
	a.listen(Event{Kind: kind, Iface: name, Record: rec})
}
