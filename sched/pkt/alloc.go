package pkt

import (
	"sync/atomic"
	"time"

	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/std/types/arc"
	"github.com/zjkmxy/pktsched/std/types/sync_pool"
)

// AllocConfig sizes an Allocator.
type AllocConfig struct {
	MaxPackets  int
	SegmentSize int
	BufferSize  int
	WaitTimeout time.Duration
}

// Allocator owns segment, descriptor and buffer memory for both packet
// representations. Every live packet holds one budget token.
type Allocator struct {
	budget  *Budget
	segSize int
	bufSize int

	segs  sync_pool.SyncPool[*Mbuf]
	descs sync_pool.SyncPool[*Desc]
	bufs  *arc.ArcPool[*Buffer]

	live atomic.Int64
}

// NewAllocator creates an allocator.
func NewAllocator(cfg AllocConfig) *Allocator {
	a := &Allocator{
		budget:  NewBudget(cfg.MaxPackets, cfg.WaitTimeout),
		segSize: cfg.SegmentSize,
		bufSize: cfg.BufferSize,
	}
	a.segs = sync_pool.New(
		func() *Mbuf { return &Mbuf{buf: make([]byte, a.segSize)} },
		func(m *Mbuf) { *m = Mbuf{buf: m.buf, alloc: a} })
	a.descs = sync_pool.New(
		func() *Desc { return &Desc{} },
		func(d *Desc) { *d = Desc{alloc: a} })
	a.bufs = arc.NewArcPool(
		func() *Buffer { return &Buffer{b: make([]byte, a.bufSize)} },
		func(b *Buffer) {})
	return a
}

func (a *Allocator) String() string {
	return "allocator"
}

// Live returns the number of packets currently allocated.
func (a *Allocator) Live() int {
	return int(a.live.Load())
}

// Budget exposes the packet budget.
func (a *Allocator) Budget() *Budget {
	return a.budget
}

func (a *Allocator) acquirePacket(mode defn.AllocMode) error {
	if err := a.budget.Acquire(mode); err != nil {
		return err
	}
	a.live.Add(1)
	return nil
}

func (a *Allocator) releasePacket() {
	a.live.Add(-1)
	a.budget.Release()
}

func (a *Allocator) putSegment(m *Mbuf) {
	m.Next, m.NextPkt, m.Pkt = nil, nil, nil
	a.segs.Put(m)
}

func (a *Allocator) putDesc(d *Desc) {
	a.descs.Put(d)
}

// AllocMbuf allocates a buffer-chain packet of size bytes spread over as
// many segments as needed.
func (a *Allocator) AllocMbuf(size int, mode defn.AllocMode) (*Mbuf, error) {
	if err := a.acquirePacket(mode); err != nil {
		return nil, err
	}

	head := a.segs.Get()
	head.Pkt = &PktHdr{Len: uint32(size), NetOff: 0}
	head.n = min(size, a.segSize)
	prev, rest := head, size-head.n
	for rest > 0 {
		s := a.segs.Get()
		s.n = min(rest, a.segSize)
		rest -= s.n
		prev.Next = s
		prev = s
	}
	return head, nil
}

// MbufFromBytes allocates a buffer-chain packet holding a copy of b.
func (a *Allocator) MbufFromBytes(b []byte, mode defn.AllocMode) (*Mbuf, error) {
	m, err := a.AllocMbuf(len(b), mode)
	if err != nil {
		return nil, err
	}
	for s := m; s != nil; s = s.Next {
		b = b[copy(s.Data(), b):]
	}
	return m, nil
}

func (a *Allocator) newDesc(mode defn.AllocMode) (*Desc, error) {
	if err := a.acquirePacket(mode); err != nil {
		return nil, err
	}
	return a.descs.Get(), nil
}

// AllocDesc allocates a descriptor with a fresh buffer of size bytes.
// Sizes above the buffer size cannot be served.
func (a *Allocator) AllocDesc(size int, mode defn.AllocMode) (*Desc, error) {
	if size > a.bufSize {
		return nil, defn.ErrNoMemory
	}
	d, err := a.newDesc(mode)
	if err != nil {
		return nil, err
	}
	d.buf = a.bufs.Get()
	d.off, d.n = 0, size
	return d, nil
}

// DescFromBytes allocates a descriptor holding a copy of b.
func (a *Allocator) DescFromBytes(b []byte, mode defn.AllocMode) (*Desc, error) {
	d, err := a.AllocDesc(len(b), mode)
	if err != nil {
		return nil, err
	}
	copy(d.Data(), b)
	return d, nil
}
