package pkt

import "github.com/zjkmxy/pktsched/sched/defn"

// Mbuf is one segment of a buffer-chain packet. The first segment of a
// packet carries the packet header; NextPkt links whole packets of a batch.
type Mbuf struct {
	buf []byte
	off int
	n   int

	// Next is the next segment of the same packet.
	Next *Mbuf
	// NextPkt is the next packet of a batch. Only set on first segments.
	NextPkt *Mbuf
	// Pkt is non-nil exactly on the first segment of a packet.
	Pkt *PktHdr

	alloc *Allocator
}

// PktHdr is the packet header of a buffer-chain packet.
type PktHdr struct {
	Meta
	// Len is the total length across all segments.
	Len uint32
	// NetOff is the offset of the network header from the packet start,
	// or -1 when unknown.
	NetOff int
}

func (m *Mbuf) sealed() {}

func (m *Mbuf) Rep() defn.Representation {
	return defn.RepMbuf
}

func (m *Mbuf) hdr() *PktHdr {
	if m.Pkt == nil {
		panic("[BUG] packet header accessed on a non-leading segment")
	}
	return m.Pkt
}

func (m *Mbuf) Length() uint32 {
	return m.hdr().Len
}

func (m *Mbuf) Metadata() *Meta {
	return &m.hdr().Meta
}

// Data returns the bytes held by this segment.
func (m *Mbuf) Data() []byte {
	return m.buf[m.off : m.off+m.n]
}

// Segments returns the number of segments of the packet starting at m.
func (m *Mbuf) Segments() int {
	n := 0
	for s := m; s != nil; s = s.Next {
		n++
	}
	return n
}

// Bytes gathers the packet into one contiguous slice.
func (m *Mbuf) Bytes() []byte {
	out := make([]byte, 0, m.Length())
	for s := m; s != nil; s = s.Next {
		out = append(out, s.Data()...)
	}
	return out
}

// Free releases every segment of the packet. NextPkt is not followed.
func (m *Mbuf) Free() {
	a := m.alloc
	m.hdr()
	if m.NextPkt != nil {
		panic("[BUG] freeing a batched packet without unlinking it")
	}
	for s := m; s != nil; {
		next := s.Next
		a.putSegment(s)
		s = next
	}
	a.releasePacket()
}

// Clone deep-copies the packet into freshly allocated segments.
// NextPkt is not copied.
func (m *Mbuf) Clone(mode defn.AllocMode) (*Mbuf, error) {
	src := m.hdr()
	c, err := m.alloc.AllocMbuf(int(src.Len), mode)
	if err != nil {
		return nil, err
	}
	c.Pkt.Meta = src.Meta
	c.Pkt.NetOff = src.NetOff

	dst, doff := c, 0
	for s := m; s != nil; s = s.Next {
		data := s.Data()
		for len(data) > 0 {
			k := copy(dst.Data()[doff:], data)
			if k == 0 {
				panic("[BUG] packet length disagrees with its segments")
			}
			data = data[k:]
			doff += k
			if doff == dst.n && dst.Next != nil {
				dst, doff = dst.Next, 0
			}
		}
	}
	return c, nil
}
