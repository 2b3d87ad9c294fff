package pkt

import (
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/std/types/arc"
)

// Buffer is an externally held data buffer referenced by descriptors.
type Buffer struct {
	b []byte
}

// Desc is a descriptor packet: fixed metadata referencing a shared,
// reference-counted data buffer.
type Desc struct {
	Meta

	// PID of the process that produced the packet.
	PID int32
	// L2Len is the link-layer header length.
	L2Len uint8
	// HdrOff is the classified network header offset, valid when
	// PktFlagClassified is set.
	HdrOff uint16

	// Next is the next packet of a batch.
	Next *Desc

	buf   *arc.Arc[*Buffer]
	off   int
	n     int
	alloc *Allocator
}

func (d *Desc) sealed() {}

func (d *Desc) Rep() defn.Representation {
	return defn.RepDesc
}

func (d *Desc) Length() uint32 {
	return uint32(d.n)
}

func (d *Desc) Metadata() *Meta {
	return &d.Meta
}

// Data returns the packet bytes inside the shared buffer.
func (d *Desc) Data() []byte {
	return d.buf.Load().b[d.off : d.off+d.n]
}

// Free drops the buffer reference and releases the descriptor.
// Next is not followed.
func (d *Desc) Free() {
	if d.Next != nil {
		panic("[BUG] freeing a batched descriptor without unlinking it")
	}
	if d.buf == nil {
		panic("[BUG] descriptor freed twice")
	}
	a := d.alloc
	d.buf.Dec()
	d.buf = nil
	a.putDesc(d)
	a.releasePacket()
}

// Clone deep-copies the descriptor and its bytes into a new buffer.
func (d *Desc) Clone(mode defn.AllocMode) (*Desc, error) {
	c, err := d.alloc.AllocDesc(d.n, mode)
	if err != nil {
		return nil, err
	}
	c.Meta, c.PID, c.L2Len, c.HdrOff = d.Meta, d.PID, d.L2Len, d.HdrOff
	copy(c.Data(), d.Data())
	return c, nil
}
