package fqcodel

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/flowadv"
	"github.com/zjkmxy/pktsched/sched/pktview"
	"github.com/zjkmxy/pktsched/sched/qdisc"
)

const (
	siteEnqueue defn.DropSite = "fq_codel.enqueue"
	siteCoDel   defn.DropSite = "fq_codel.codel"
)

type list uint8

const (
	listNone list = iota
	listNew
	listOld
)

type entry struct {
	v   pktview.View
	enq uint64
}

type counters struct {
	packets     uint64
	bytes       uint64
	drops       uint64
	ecnMarks    uint64
	flowCtl     uint64
	flowAdvised uint64
}

type flow struct {
	idx     uint32
	q       []entry
	backlog uint32
	deficit int
	list    list
	codel   codel
	// flow ids under an advisory issued by this bucket
	advised map[uint32]struct{}
	counters
}

// FQCoDel is one attached discipline instance.
type FQCoDel struct {
	params Params
	flags  defn.QdiscFlags
	rep    defn.Representation
	queue  *qdisc.Queue

	advisor *flowadv.Advisor
	iface   flowadv.Handle

	target    uint64
	interval  uint64
	l4sTarget uint64

	flows    []flow
	newFlows []*flow
	oldFlows []*flow
	qlen     int
	backlog  uint64

	counters
}

func (d *FQCoDel) String() string {
	return "fq_codel (" + d.queue.Name() + ")"
}

// bucket returns the flow bucket of v, computing the flow hash on first use.
func (d *FQCoDel) bucket(v *pktview.View) *flow {
	hash, _ := v.AQMVars()
	if *hash == 0 {
		m := v.Meta()
		var key [6]byte
		binary.BigEndian.PutUint32(key[0:], m.FlowID)
		key[4] = byte(m.FlowSrc)
		key[5] = byte(m.SvcClass)
		h := uint32(xxhash.Sum64(key[:]))
		if h == 0 {
			h = 1
		}
		*hash = h
	}
	return &d.flows[*hash%uint32(len(d.flows))]
}

func (d *FQCoDel) Enqueue(lq *qdisc.Locked, v pktview.View) (defn.EnqueueResult, error) {
	res := defn.EnqueueOK
	now := core.Now()
	for !v.IsEmpty() {
		p := v.PopFront()
		switch r := d.enqueueOne(p, now); {
		case r == defn.EnqueueDropped:
			res = defn.EnqueueDropped
		case r == defn.EnqueueFlowControlled && res == defn.EnqueueOK:
			res = r
		}
	}
	return res, nil
}

func (d *FQCoDel) enqueueOne(v pktview.View, now uint64) defn.EnqueueResult {
	f := d.bucket(&v)
	if d.qlen >= d.params.Limit {
		f.drops++
		d.drops++
		v.Drop(defn.ReasonQueueFull, siteEnqueue, defn.DropFlagOutput)
		return defn.EnqueueDropped
	}

	res := defn.EnqueueOK
	if d.flags.Has(defn.QdiscFlagFlowCtl) && len(f.q) >= d.params.FlowCtlThreshold {
		res = d.advise(f, &v)
	}

	f.q = append(f.q, entry{v: v, enq: now})
	f.backlog += v.Len()
	d.qlen++
	d.backlog += uint64(v.Len())
	if f.list == listNone {
		f.list = listNew
		f.deficit = d.params.Quantum
		d.newFlows = append(d.newFlows, f)
	}
	return res
}

// advise issues a flow advisory for the sender of v.
func (d *FQCoDel) advise(f *flow, v *pktview.View) defn.EnqueueResult {
	m := v.Meta()
	if d.advisor == nil || !m.Flags.Has(defn.PktFlagFlowAdv) {
		return defn.EnqueueOK
	}
	f.flowCtl++
	d.flowCtl++
	issued, err := d.advisor.Advise(v, d.iface, defn.AllocNoWait)
	if err != nil {
		return defn.EnqueueOK
	}
	if issued {
		if f.advised == nil {
			f.advised = make(map[uint32]struct{})
		}
		f.advised[m.FlowID] = struct{}{}
		f.flowAdvised++
		d.flowAdvised++
	}
	return defn.EnqueueFlowControlled
}

// resume lifts the advisories of f once its backlog has halved.
func (d *FQCoDel) resume(f *flow, force bool) {
	if len(f.advised) == 0 || (!force && len(f.q) > d.params.FlowCtlThreshold/2) {
		return
	}
	for id := range f.advised {
		d.advisor.Resume(d.iface, id)
	}
	clear(f.advised)
}

func (d *FQCoDel) pop(f *flow) (entry, bool) {
	if len(f.q) == 0 {
		return entry{}, false
	}
	e := f.q[0]
	f.q[0] = entry{}
	f.q = f.q[1:]
	if len(f.q) == 0 {
		f.q = nil
	}
	n := e.v.Len()
	f.backlog -= n
	d.qlen--
	d.backlog -= uint64(n)
	d.resume(f, false)
	return e, true
}

// mark sets CE on e when ECN is enabled. An already marked packet counts.
func (d *FQCoDel) mark(f *flow, e *entry) bool {
	if !d.flags.Has(defn.QdiscFlagECN) {
		return false
	}
	out, err := pktview.MarkCE(&e.v)
	if err != nil {
		return false
	}
	switch out {
	case pktview.ECNMarked:
		f.ecnMarks++
		d.ecnMarks++
		return true
	case pktview.ECNAlreadyCE:
		return true
	}
	return false
}

func (d *FQCoDel) dropEntry(f *flow, e *entry, reason defn.DropReason) {
	f.drops++
	d.drops++
	e.v.Drop(reason, siteCoDel, defn.DropFlagOutput)
}

func (d *FQCoDel) Dequeue(lq *qdisc.Locked) (pktview.View, bool) {
	now := core.Now()
	for {
		var lst *[]*flow
		switch {
		case len(d.newFlows) > 0:
			lst = &d.newFlows
		case len(d.oldFlows) > 0:
			lst = &d.oldFlows
		default:
			return pktview.View{}, false
		}

		f := (*lst)[0]
		if f.deficit <= 0 {
			f.deficit += d.params.Quantum
			*lst = (*lst)[1:]
			f.list = listOld
			d.oldFlows = append(d.oldFlows, f)
			continue
		}

		e, ok := d.codelDequeue(f, now)
		if !ok {
			fromNew := lst == &d.newFlows
			*lst = (*lst)[1:]
			if fromNew && len(d.oldFlows) > 0 {
				f.list = listOld
				d.oldFlows = append(d.oldFlows, f)
			} else {
				f.list = listNone
			}
			continue
		}

		if d.flags.Has(defn.QdiscFlagLowLatency) && e.v.IsLowLatency() && now-e.enq > d.l4sTarget {
			d.mark(f, &e)
		}

		n := e.v.Len()
		f.deficit -= int(n)
		f.packets++
		f.bytes += uint64(n)
		d.packets++
		d.bytes += uint64(n)
		return e.v, true
	}
}

func (d *FQCoDel) Len() int {
	return d.qlen
}

func (d *FQCoDel) Flush(lq *qdisc.Locked, drop func(v *pktview.View)) {
	for i := range d.flows {
		f := &d.flows[i]
		for {
			e, ok := d.pop(f)
			if !ok {
				break
			}
			drop(&e.v)
		}
		f.list = listNone
		f.codel = codel{}
	}
	d.newFlows, d.oldFlows = nil, nil
}

func (d *FQCoDel) Teardown(lq *qdisc.Locked) {
	for i := range d.flows {
		d.resume(&d.flows[i], true)
	}
	core.Log.Debug(d, "Discipline torn down", "packets", d.packets, "drops", d.drops)
	d.flows = nil
}

func (d *FQCoDel) Stats(lq *qdisc.Locked, groupID, queueID uint32) (defn.QueueStats, bool) {
	if groupID != 0 {
		return defn.QueueStats{}, false
	}

	if queueID == defn.StatsAllQueues {
		st := d.counters.stats()
		st.Qlen = uint32(d.qlen)
		st.Backlog = uint32(d.backlog)
		for i := range d.flows {
			if len(d.flows[i].q) > 0 {
				st.ActiveFlows++
			}
		}
		return st, true
	}

	if int(queueID) >= len(d.flows) {
		return defn.QueueStats{}, false
	}
	f := &d.flows[queueID]
	st := f.counters.stats()
	st.Qlen = uint32(len(f.q))
	st.Backlog = f.backlog
	if len(f.q) > 0 {
		st.ActiveFlows = 1
	}
	return st, true
}

func (c *counters) stats() defn.QueueStats {
	return defn.QueueStats{
		Kind:        defn.KindFQCoDel,
		Packets:     c.packets,
		Bytes:       c.bytes,
		Drops:       c.drops,
		ECNMarks:    c.ecnMarks,
		FlowCtl:     c.flowCtl,
		FlowAdvised: c.flowAdvised,
	}
}
