package pktview

import (
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
	"github.com/zjkmxy/pktsched/sched/telemetry"
)

// Rand is the random source used by Corrupt. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Clone deep-copies a singleton view into a new view of the same
// representation.
func (v *View) Clone(mode defn.AllocMode) (View, error) {
	var c View
	if err := v.CloneInto(&c, mode); err != nil {
		return View{}, err
	}
	return c, nil
}

// CloneInto deep-copies a singleton view into dst, which must be empty.
// On failure neither view is modified.
func (v *View) CloneInto(dst *View, mode defn.AllocMode) error {
	v.mustLive()
	if v.count != 1 {
		panic("[BUG] cloning a multi-packet view")
	}
	if !dst.IsEmpty() {
		panic("[BUG] clone destination is not empty")
	}

	var c pkt.Packet
	switch p := v.head.(type) {
	case *pkt.Mbuf:
		m, err := p.Clone(mode)
		if err != nil {
			return err
		}
		c = m
	case *pkt.Desc:
		d, err := p.Clone(mode)
		if err != nil {
			return err
		}
		c = d
	}
	*dst = Single(c)
	return nil
}

// Free releases every packet of the view and leaves the view empty.
func (v *View) Free() {
	v.mustLive()
	linked := next(v.head) != nil
	if v.count == 1 && linked {
		panic("[BUG] singleton view has a batch link")
	}
	if v.count > 1 && !linked {
		panic("[BUG] multi-packet view has no batch link")
	}

	var n uint32
	for p := v.head; p != nil; n++ {
		nxt := unlink(p)
		switch p := p.(type) {
		case *pkt.Mbuf:
			p.Free()
		case *pkt.Desc:
			p.Free()
		}
		p = nxt
	}
	count := v.count
	*v = View{}
	if n != count {
		panic("[BUG] view count disagrees with its batch")
	}
}

// Drop frees the view, first reporting every packet to the telemetry tap
// when one is attached.
func (v *View) Drop(reason defn.DropReason, site defn.DropSite, flags defn.DropFlags) {
	if telemetry.Active() {
		v.trace(reason, site, flags)
	}
	v.Free()
}

func (v *View) trace(reason defn.DropReason, site defn.DropSite, flags defn.DropFlags) {
	v.mustLive()
	rec := telemetry.Record{
		Rep:    v.rep,
		Reason: reason,
		Site:   site,
		Flags:  flags,
		Dir:    flags.Direction(),
	}
	for p := v.head; p != nil; p = next(p) {
		rec.FlowID = p.Metadata().FlowID
		rec.Length = p.Length()
		if d, ok := p.(*pkt.Desc); ok {
			rec.PID.Set(d.PID)
		}
		telemetry.Emit(&rec)
	}
}

// Corrupt flips one random bit of one random byte of the first packet.
func (v *View) Corrupt(r Rand) {
	v.mustLive()
	n := int(v.head.Length())
	if n == 0 {
		return
	}
	idx, bit := r.IntN(n), byte(1)<<r.IntN(8)

	switch p := v.head.(type) {
	case *pkt.Mbuf:
		for s := p; s != nil; s = s.Next {
			data := s.Data()
			if idx < len(data) {
				data[idx] ^= bit
				return
			}
			idx -= len(data)
		}
	case *pkt.Desc:
		p.Data()[idx] ^= bit
	}
}

// PopFront detaches the first packet of v and returns it as a singleton
// view. v becomes empty after its last packet.
func (v *View) PopFront() View {
	v.mustLive()
	head := v.head
	nxt := unlink(head)
	if v.count == 1 {
		if nxt != nil {
			panic("[BUG] singleton view has a batch link")
		}
		*v = View{}
		return Single(head)
	}
	if nxt == nil {
		panic("[BUG] multi-packet view has no batch link")
	}
	v.head = nxt
	v.count--
	v.length -= head.Length()
	return Single(head)
}
