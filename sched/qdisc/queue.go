// Package qdisc manages the queueing discipline attached to each
// interface output queue.
package qdisc

import (
	"fmt"
	"sync"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/flowadv"
	"github.com/zjkmxy/pktsched/sched/pktview"
)

const (
	siteTeardown defn.DropSite = "qdisc.teardown"
	siteDisabled defn.DropSite = "qdisc.enqueue"
)

// Queue is the output queue of one interface. It is either detached
// (KindNone) or has exactly one discipline attached.
type Queue struct {
	mu     sync.Mutex
	holder *Locked

	name    string
	iface   flowadv.Handle
	advisor *flowadv.Advisor

	kind    defn.Kind
	flags   defn.QdiscFlags
	rep     defn.Representation
	enabled bool
	disc    Discipline
}

// NewQueue creates a detached queue. advisor may be nil, in which case
// no flow advisories are issued.
func NewQueue(name string, iface flowadv.Handle, advisor *flowadv.Advisor) *Queue {
	return &Queue{
		name:    name,
		iface:   iface,
		advisor: advisor,
	}
}

func (q *Queue) String() string {
	return fmt.Sprintf("queue (%s)", q.name)
}

// Name returns the interface name.
func (q *Queue) Name() string {
	return q.name
}

// Lock acquires the queue lock. All operations on the queue go through
// the returned token.
func (q *Queue) Lock() *Locked {
	q.mu.Lock()
	lq := &Locked{q: q}
	q.holder = lq
	return lq
}

// Locked proves that the queue lock is held.
type Locked struct {
	q *Queue
}

// Unlock releases the lock. The token is unusable afterwards.
func (lq *Locked) Unlock() {
	lq.mustHold()
	lq.q.holder = nil
	lq.q.mu.Unlock()
}

func (lq *Locked) mustHold() {
	if lq.q.holder != lq {
		panic("[BUG] queue operation without holding its lock")
	}
}

func (lq *Locked) String() string {
	return lq.q.String()
}

// Queue returns the locked queue.
func (lq *Locked) Queue() *Queue {
	lq.mustHold()
	return lq.q
}

// Kind returns the attached discipline kind.
func (lq *Locked) Kind() defn.Kind {
	lq.mustHold()
	return lq.q.kind
}

// Flags returns the flags the discipline was set up with.
func (lq *Locked) Flags() defn.QdiscFlags {
	lq.mustHold()
	return lq.q.flags
}

// Rep returns the packet representation of the attached discipline.
func (lq *Locked) Rep() defn.Representation {
	lq.mustHold()
	return lq.q.rep
}

func (lq *Locked) Enabled() bool {
	lq.mustHold()
	return lq.q.enabled
}

func (lq *Locked) SetEnabled(enabled bool) {
	lq.mustHold()
	lq.q.enabled = enabled
}

// Len returns the number of queued packets.
func (lq *Locked) Len() int {
	lq.mustHold()
	if lq.q.disc == nil {
		return 0
	}
	return lq.q.disc.Len()
}

// Iface returns the handle of the owning interface.
func (lq *Locked) Iface() flowadv.Handle {
	lq.mustHold()
	return lq.q.iface
}

// Advisor returns the flow advisor, or nil.
func (lq *Locked) Advisor() *flowadv.Advisor {
	lq.mustHold()
	return lq.q.advisor
}

// Setup attaches a discipline of the given kind. It is a no-op if that
// kind is already attached. Otherwise the current discipline is torn
// down first and the enabled state survives the swap. On failure the
// queue stays detached.
func (lq *Locked) Setup(kind defn.Kind, flags defn.QdiscFlags, rep defn.Representation) error {
	lq.mustHold()
	q := lq.q
	if q.kind == kind {
		return nil
	}

	enabled := q.enabled
	lq.Teardown()
	if kind == defn.KindNone {
		q.enabled = enabled
		return nil
	}

	if rep == defn.RepNone {
		return defn.ErrRepresentation
	}
	b, err := lookupBackend(kind)
	if err != nil {
		return err
	}
	d, err := b.Setup(lq, flags, rep)
	if err != nil {
		core.Log.Warn(q, "Unable to attach discipline", "kind", kind, "err", err)
		return err
	}

	q.kind, q.flags, q.rep, q.disc = kind, flags, rep, d
	q.enabled = enabled
	core.Log.Info(q, "Discipline attached", "kind", kind, "rep", rep, "enabled", enabled)
	return nil
}

// Teardown drops every queued packet, disables the queue, lifts the flow
// advisories of the interface and detaches the discipline. It is a no-op on a detached queue apart from clearing
// the enabled state.
func (lq *Locked) Teardown() {
	lq.mustHold()
	q := lq.q
	q.enabled = false
	if q.disc == nil {
		return
	}

	flushed := 0
	q.disc.Flush(lq, func(v *pktview.View) {
		flushed += int(v.Count())
		v.Drop(defn.ReasonIfFlush, siteTeardown, defn.DropFlagOutput|defn.DropFlagFlush)
	})
	if q.disc.Len() != 0 {
		panic("[BUG] discipline not empty after flush")
	}
	q.disc.Teardown(lq)

	// nothing dequeues from this interface any more
	resumed := 0
	if q.advisor != nil {
		resumed = q.advisor.ResumeAll(q.iface)
	}

	core.Log.Info(q, "Discipline detached", "kind", q.kind, "flushed", flushed, "resumed", resumed)
	q.kind, q.flags, q.rep, q.disc = defn.KindNone, 0, defn.RepNone, nil
}

// GetStats returns discipline statistics. false means unsupported, which
// is always the case on a detached queue.
func (lq *Locked) GetStats(groupID, queueID uint32) (defn.QueueStats, bool) {
	lq.mustHold()
	if lq.q.disc == nil {
		return defn.QueueStats{}, false
	}
	return lq.q.disc.Stats(lq, groupID, queueID)
}

// Enqueue hands v to the discipline. Packets reaching a detached or
// disabled queue are dropped.
func (lq *Locked) Enqueue(v pktview.View) (defn.EnqueueResult, error) {
	lq.mustHold()
	q := lq.q
	if q.disc == nil || !q.enabled {
		v.Drop(defn.ReasonQueueDisabled, siteDisabled, defn.DropFlagOutput)
		return defn.EnqueueDropped, nil
	}
	if v.Rep() != q.rep {
		panic("[BUG] " + v.Rep().String() + " packet enqueued to a " + q.rep.String() + " discipline")
	}
	return q.disc.Enqueue(lq, v)
}

// Dequeue returns the next packet of an enabled queue.
func (lq *Locked) Dequeue() (pktview.View, bool) {
	lq.mustHold()
	q := lq.q
	if q.disc == nil || !q.enabled {
		return pktview.View{}, false
	}
	return q.disc.Dequeue(lq)
}
