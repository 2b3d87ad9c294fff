package pkt_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
	tu "github.com/zjkmxy/pktsched/std/utils/testutils"
)

func newAlloc(maxPkts int) *pkt.Allocator {
	return pkt.NewAllocator(pkt.AllocConfig{
		MaxPackets:  maxPkts,
		SegmentSize: 64,
		BufferSize:  256,
		WaitTimeout: 50 * time.Millisecond,
	})
}

func TestMbufSegmentsAndClone(t *testing.T) {
	tu.SetT(t)
	a := newAlloc(8)

	payload := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 30) // 150 bytes
	m := tu.NoErr(a.MbufFromBytes(payload, defn.AllocNoWait))
	require.Equal(t, 3, m.Segments())
	require.Equal(t, uint32(150), m.Length())
	require.Equal(t, payload, m.Bytes())
	require.Nil(t, m.Next.Pkt)

	m.Metadata().FlowID = 77
	c := tu.NoErr(m.Clone(defn.AllocNoWait))
	require.Equal(t, payload, c.Bytes())
	require.Equal(t, uint32(77), c.Metadata().FlowID)
	require.Equal(t, 2, a.Live())

	c.Data()[0] = 0xFF
	require.Equal(t, byte(1), m.Data()[0])

	c.Free()
	m.Free()
	require.Equal(t, 0, a.Live())
	require.Panics(t, func() { m.Free() })
}

func TestDescClone(t *testing.T) {
	tu.SetT(t)
	a := newAlloc(8)

	d := tu.NoErr(a.DescFromBytes([]byte("descriptor"), defn.AllocNoWait))
	d.PID = 42
	d.L2Len = 14

	c := tu.NoErr(d.Clone(defn.AllocNoWait))
	require.Equal(t, d.Data(), c.Data())
	require.Equal(t, int32(42), c.PID)
	require.Equal(t, uint8(14), c.L2Len)
	c.Data()[0] = 'x'
	require.Equal(t, byte('d'), d.Data()[0])

	d.Free()
	require.Panics(t, func() { d.Free() })
	c.Free()
	require.Equal(t, 0, a.Live())

	_, err := a.AllocDesc(1024, defn.AllocNoWait)
	require.ErrorIs(t, err, defn.ErrNoMemory)
}

func TestBudgetExhaustion(t *testing.T) {
	tu.SetT(t)
	a := newAlloc(1)

	m := tu.NoErr(a.AllocMbuf(10, defn.AllocNoWait))
	_, err := a.AllocMbuf(10, defn.AllocNoWait)
	require.ErrorIs(t, err, defn.ErrNoMemory)

	start := time.Now()
	_, err = a.AllocDesc(10, defn.AllocWait)
	require.ErrorIs(t, err, defn.ErrNoMemory)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	go func() {
		time.Sleep(time.Millisecond)
		m.Free()
	}()
	d := tu.NoErr(a.AllocDesc(10, defn.AllocWait))
	d.Free()
	require.Equal(t, 1, a.Budget().Available())
	require.Panics(t, func() { a.Budget().Release() })
}

func TestBudgetWaitersShareTokens(t *testing.T) {
	tu.SetT(t)
	b := pkt.NewBudget(2, time.Second)
	require.Equal(t, 2, b.Capacity())

	require.NoError(t, b.Acquire(defn.AllocNoWait))
	require.NoError(t, b.Acquire(defn.AllocNoWait))
	require.Equal(t, 0, b.Available())
	require.ErrorIs(t, b.Acquire(defn.AllocNoWait), defn.ErrNoMemory)

	done := make(chan error, 2)
	for range 2 {
		go func() { done <- b.Acquire(defn.AllocWait) }()
	}
	b.Release()
	b.Release()
	require.NoError(t, <-done)
	require.NoError(t, <-done)
	require.Equal(t, 0, b.Available())

	b.Release()
	b.Release()
	require.Equal(t, 2, b.Available())
	require.Panics(t, func() { b.Release() })
	require.Equal(t, 2, b.Available())
}
