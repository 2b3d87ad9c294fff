// Package pktview wraps the two packet representations behind one view
// so the scheduler never has to know which one it is moving.
package pktview

import (
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
)

// View is a borrowed handle on one packet or a batch of packets of the
// same representation. The zero View is empty.
type View struct {
	rep    defn.Representation
	head   pkt.Packet
	tail   pkt.Packet
	count  uint32
	length uint32
}

// Single wraps one packet.
func Single(p pkt.Packet) View {
	if p == nil {
		panic("[BUG] wrapping a nil packet")
	}
	return View{
		rep:    p.Rep(),
		head:   p,
		tail:   p,
		count:  1,
		length: p.Length(),
	}
}

// Chain wraps a batch built by the caller. count and length are trusted;
// builds with the pktdebug tag verify that tail is reachable from head in
// exactly count hops.
func Chain(head, tail pkt.Packet, count, length uint32) View {
	if head == nil || tail == nil || count == 0 {
		panic("[BUG] wrapping an empty chain")
	}
	if head.Rep() != tail.Rep() {
		panic("[BUG] chain mixes packet representations")
	}
	if debugChecks {
		if err := verifyChain(head, tail, count); err != nil {
			panic("[BUG] " + err.Error())
		}
	}
	return View{
		rep:    head.Rep(),
		head:   head,
		tail:   tail,
		count:  count,
		length: length,
	}
}

func (v *View) mustLive() {
	if v.rep == defn.RepNone {
		panic("[BUG] empty packet view accessed")
	}
}

// Rep returns the representation, RepNone for an empty view.
func (v *View) Rep() defn.Representation {
	return v.rep
}

// IsEmpty reports whether the view holds nothing.
func (v *View) IsEmpty() bool {
	return v.rep == defn.RepNone
}

// Count returns the number of packets in the view.
func (v *View) Count() uint32 {
	v.mustLive()
	return v.count
}

// Len returns the total length of all packets in the view.
func (v *View) Len() uint32 {
	v.mustLive()
	return v.length
}

// Mbuf returns the first packet of a buffer-chain view.
func (v *View) Mbuf() *pkt.Mbuf {
	v.mustRep(defn.RepMbuf)
	return v.head.(*pkt.Mbuf)
}

// MbufTail returns the last packet of a buffer-chain view.
func (v *View) MbufTail() *pkt.Mbuf {
	v.mustRep(defn.RepMbuf)
	return v.tail.(*pkt.Mbuf)
}

// Desc returns the first packet of a descriptor view.
func (v *View) Desc() *pkt.Desc {
	v.mustRep(defn.RepDesc)
	return v.head.(*pkt.Desc)
}

// DescTail returns the last packet of a descriptor view.
func (v *View) DescTail() *pkt.Desc {
	v.mustRep(defn.RepDesc)
	return v.tail.(*pkt.Desc)
}

func (v *View) mustRep(rep defn.Representation) {
	v.mustLive()
	if v.rep != rep {
		panic("[BUG] " + rep.String() + " accessor used on a " + v.rep.String() + " view")
	}
}

// Meta returns the metadata of the first packet.
func (v *View) Meta() *pkt.Meta {
	v.mustLive()
	return v.head.Metadata()
}

// next returns the batch link of p, or nil.
func next(p pkt.Packet) pkt.Packet {
	switch p := p.(type) {
	case *pkt.Mbuf:
		if p.NextPkt != nil {
			return p.NextPkt
		}
	case *pkt.Desc:
		if p.Next != nil {
			return p.Next
		}
	}
	return nil
}

// unlink clears the batch link of p and returns what it pointed to.
func unlink(p pkt.Packet) pkt.Packet {
	n := next(p)
	switch p := p.(type) {
	case *pkt.Mbuf:
		p.NextPkt = nil
	case *pkt.Desc:
		p.Next = nil
	}
	return n
}

// Link appends q after p in a batch. Both must have the same representation.
func Link(p, q pkt.Packet) {
	switch p := p.(type) {
	case *pkt.Mbuf:
		p.NextPkt = q.(*pkt.Mbuf)
	case *pkt.Desc:
		p.Next = q.(*pkt.Desc)
	}
}
