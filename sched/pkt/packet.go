// Package pkt holds the two concrete packet representations handled by
// the scheduler and the allocator that owns their memory.
package pkt

import "github.com/zjkmxy/pktsched/sched/defn"

// Packet is a closed sum over *Mbuf and *Desc.
type Packet interface {
	// Rep returns the representation tag of the packet.
	Rep() defn.Representation
	// Length returns the packet length in bytes.
	Length() uint32
	// Metadata returns the mutable per-packet metadata.
	Metadata() *Meta

	sealed()
}

// Meta is the metadata shared by both representations.
type Meta struct {
	FlowID       uint32
	FlowSrc      defn.FlowSource
	FlowSrcToken uint32
	FlowSrcIndex uint32
	Flags        defn.PktFlags
	Timestamp    uint64
	Proto        uint8
	SvcClass     defn.ServiceClass
	CompGen      uint32
	TxTimestamp  uint64

	// Opaque to everything but the discipline
	AQMHash  uint32
	AQMFlags uint32
}
