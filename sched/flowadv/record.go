// Package flowadv bridges the scheduler to flow control: it allocates
// flow records for packets whose sender accepts advisories and tracks
// which flows are currently suspended.
package flowadv

import (
	"time"

	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
	"github.com/zjkmxy/pktsched/sched/pktview"
	"github.com/zjkmxy/pktsched/std/types/optional"
	"github.com/zjkmxy/pktsched/std/types/sync_pool"
)

// FlowRecord identifies a flow to be paused or rate limited.
type FlowRecord struct {
	FlowID  uint32
	SrcKind defn.FlowSource
	// SrcToken and SrcIndex are set only for channel flows.
	SrcToken optional.Optional[uint32]
	SrcIndex optional.Optional[uint32]
	// Iface does not keep the interface alive.
	Iface Handle

	pool *Pool
}

// Pool hands out flow records under a fixed budget.
type Pool struct {
	budget *pkt.Budget
	recs   sync_pool.SyncPool[*FlowRecord]
}

// NewPool creates a pool of at most limit live records. Waiting allocations
// give up after wait.
func NewPool(limit int, wait time.Duration) *Pool {
	p := &Pool{budget: pkt.NewBudget(limit, wait)}
	p.recs = sync_pool.New(
		func() *FlowRecord { return &FlowRecord{} },
		func(r *FlowRecord) { *r = FlowRecord{pool: p} })
	return p
}

// Alloc creates a record for the first packet of v, which must be
// flagged for flow advisories.
func (p *Pool) Alloc(v *pktview.View, ifh Handle, mode defn.AllocMode) (*FlowRecord, error) {
	m := v.Meta()
	if !m.Flags.Has(defn.PktFlagFlowAdv) {
		panic("[BUG] flow record requested for a packet without flow advisory")
	}
	if err := p.budget.Acquire(mode); err != nil {
		return nil, err
	}

	r := p.recs.Get()
	r.FlowID = m.FlowID
	r.SrcKind = m.FlowSrc
	r.Iface = ifh
	if m.FlowSrc == defn.FlowSrcChannel {
		r.SrcToken.Set(m.FlowSrcToken)
		r.SrcIndex.Set(m.FlowSrcIndex)
	}
	return r, nil
}

// Free returns r to its pool.
func (p *Pool) Free(r *FlowRecord) {
	if r.pool != p {
		panic("[BUG] flow record freed to a foreign pool")
	}
	r.pool = nil
	p.recs.Put(r)
	p.budget.Release()
}

// Live returns the number of records currently allocated.
func (p *Pool) Live() int {
	return p.budget.Capacity() - p.budget.Available()
}
