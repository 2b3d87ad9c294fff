package fqcodel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/flowadv"
	"github.com/zjkmxy/pktsched/sched/pkt"
	"github.com/zjkmxy/pktsched/sched/pktview"
	"github.com/zjkmxy/pktsched/sched/qdisc"
	"github.com/zjkmxy/pktsched/sched/qdisc/fqcodel"
	"github.com/zjkmxy/pktsched/sched/telemetry"
	tu "github.com/zjkmxy/pktsched/std/utils/testutils"
)

var alloc = pkt.NewAllocator(pkt.AllocConfig{
	MaxPackets:  1024,
	SegmentSize: 256,
	BufferSize:  256,
})

func testParams() fqcodel.Params {
	p := fqcodel.DefaultParams()
	p.Flows = 16
	p.Quantum = 100
	p.Limit = 64
	p.FlowCtlThreshold = 4
	return p
}

// withParams installs a backend with p for the duration of the test.
func withParams(t *testing.T, p fqcodel.Params) {
	prev := qdisc.RegisterBackend(defn.KindFQCoDel, fqcodel.New(p))
	t.Cleanup(func() { qdisc.RegisterBackend(defn.KindFQCoDel, prev) })
}

// packet builds a 100-byte IPv4 packet in the given bucket.
func packet(t *testing.T, bucket, flowID uint32, tos byte) pktview.View {
	b := make([]byte, 100)
	b[0], b[1] = 0x45, tos
	m, err := alloc.MbufFromBytes(b, defn.AllocNoWait)
	require.NoError(t, err)
	m.Pkt.FlowID = flowID
	m.Pkt.AQMHash = bucket
	return pktview.Single(m)
}

func attached(t *testing.T, flags defn.QdiscFlags, adv *flowadv.Advisor, ifh flowadv.Handle) *qdisc.Locked {
	q := qdisc.NewQueue("en0", ifh, adv)
	lq := q.Lock()
	require.NoError(t, lq.Setup(defn.KindFQCoDel, flags, defn.RepMbuf))
	lq.SetEnabled(true)
	t.Cleanup(func() {
		lq.Teardown()
		lq.Unlock()
	})
	return lq
}

func dequeueFlows(t *testing.T, lq *qdisc.Locked) []uint32 {
	var ids []uint32
	for {
		v, ok := lq.Dequeue()
		if !ok {
			return ids
		}
		ids = append(ids, v.Meta().FlowID)
		v.Free()
	}
}

func TestRegistered(t *testing.T) {
	require.Contains(t, qdisc.Registered(), defn.KindFQCoDel)
}

func TestDeficitRoundRobin(t *testing.T) {
	tu.SetT(t)
	withParams(t, testParams())
	lq := attached(t, 0, nil, flowadv.Handle{})

	for i := uint32(1); i <= 4; i++ {
		require.Equal(t, defn.EnqueueOK, tu.NoErr(lq.Enqueue(packet(t, 1, 10+i, 0))))
	}
	for i := uint32(1); i <= 2; i++ {
		require.Equal(t, defn.EnqueueOK, tu.NoErr(lq.Enqueue(packet(t, 2, 20+i, 0))))
	}
	require.Equal(t, 6, lq.Len())

	st, ok := lq.GetStats(0, defn.StatsAllQueues)
	require.True(t, ok)
	require.Equal(t, uint32(6), st.Qlen)
	require.Equal(t, uint32(600), st.Backlog)
	require.Equal(t, uint32(2), st.ActiveFlows)

	require.Equal(t, []uint32{11, 21, 12, 22, 13, 14}, dequeueFlows(t, lq))

	st, _ = lq.GetStats(0, defn.StatsAllQueues)
	require.Equal(t, uint64(6), st.Packets)
	require.Equal(t, uint64(600), st.Bytes)
	require.Zero(t, st.Qlen)
	require.Zero(t, st.ActiveFlows)
}

func TestEnqueueBatch(t *testing.T) {
	tu.SetT(t)
	withParams(t, testParams())
	lq := attached(t, 0, nil, flowadv.Handle{})

	a, b := packet(t, 1, 1, 0), packet(t, 2, 2, 0)
	pktview.Link(a.Mbuf(), b.Mbuf())
	batch := pktview.Chain(a.Mbuf(), b.Mbuf(), 2, 200)
	require.Equal(t, defn.EnqueueOK, tu.NoErr(lq.Enqueue(batch)))
	require.Equal(t, 2, lq.Len())
	require.Equal(t, []uint32{1, 2}, dequeueFlows(t, lq))
}

func TestTailDrop(t *testing.T) {
	tu.SetT(t)
	p := testParams()
	p.Limit = 4
	withParams(t, p)
	lq := attached(t, 0, nil, flowadv.Handle{})

	sink := &telemetry.MemorySink{}
	detach := telemetry.Attach(sink)
	defer detach()

	live := alloc.Live()
	for i := uint32(0); i < 6; i++ {
		res := tu.NoErr(lq.Enqueue(packet(t, i%3+1, i, 0)))
		if i < 4 {
			require.Equal(t, defn.EnqueueOK, res)
		} else {
			require.Equal(t, defn.EnqueueDropped, res)
		}
	}
	require.Equal(t, live+4, alloc.Live())

	st, _ := lq.GetStats(0, defn.StatsAllQueues)
	require.Equal(t, uint64(2), st.Drops)

	recs := sink.Records()
	require.Len(t, recs, 2)
	require.Equal(t, defn.ReasonQueueFull, recs[0].Reason)
	require.Equal(t, defn.DirOutput, recs[0].Dir)
}

func standingQueue(t *testing.T, flags defn.QdiscFlags) *qdisc.Locked {
	p := testParams()
	p.Target = time.Millisecond
	p.Interval = 5 * time.Millisecond
	withParams(t, p)
	lq := attached(t, flags, nil, flowadv.Handle{})

	for i := uint32(0); i < 20; i++ {
		tu.NoErr(lq.Enqueue(packet(t, 1, i, 0x02)))
	}
	time.Sleep(10 * time.Millisecond)
	v, ok := lq.Dequeue()
	require.True(t, ok)
	require.Equal(t, uint32(0), v.Meta().FlowID)
	v.Free()
	time.Sleep(10 * time.Millisecond)
	return lq
}

func TestCoDelMarks(t *testing.T) {
	tu.SetT(t)
	lq := standingQueue(t, defn.QdiscFlagECN)

	v, ok := lq.Dequeue()
	require.True(t, ok)
	require.Equal(t, uint32(1), v.Meta().FlowID)
	require.Equal(t, byte(0x03), v.Mbuf().Data()[1]&0x03)
	v.Free()

	st, _ := lq.GetStats(0, defn.StatsAllQueues)
	require.Equal(t, uint64(1), st.ECNMarks)
	require.Zero(t, st.Drops)
	require.Equal(t, uint32(18), st.Qlen)
}

func TestCoDelDrops(t *testing.T) {
	tu.SetT(t)
	lq := standingQueue(t, 0)

	v, ok := lq.Dequeue()
	require.True(t, ok)
	require.Equal(t, uint32(2), v.Meta().FlowID)
	require.Equal(t, byte(0x02), v.Mbuf().Data()[1])
	v.Free()

	st, _ := lq.GetStats(0, defn.StatsAllQueues)
	require.Equal(t, uint64(1), st.Drops)
	require.Zero(t, st.ECNMarks)
	require.Equal(t, uint32(17), st.Qlen)

	bucket, ok := lq.GetStats(0, 1)
	require.True(t, ok)
	require.Equal(t, uint64(1), bucket.Drops)
	require.Equal(t, uint32(17), bucket.Qlen)
}

func TestFlowAdvisory(t *testing.T) {
	tu.SetT(t)
	withParams(t, testParams())

	ifs := flowadv.NewIfTable()
	ifh := ifs.Attach("en0")
	var events []flowadv.Event
	adv := flowadv.NewAdvisor(ifs, flowadv.NewPool(8, 0), func(ev flowadv.Event) {
		events = append(events, ev)
	})
	lq := attached(t, defn.QdiscFlagFlowCtl, adv, ifh)

	enqueue := func() defn.EnqueueResult {
		v := packet(t, 3, 7, 0)
		v.Meta().Flags = defn.PktFlagFlowAdv
		return tu.NoErr(lq.Enqueue(v))
	}
	for range 4 {
		require.Equal(t, defn.EnqueueOK, enqueue())
	}
	require.Equal(t, defn.EnqueueFlowControlled, enqueue())
	require.True(t, adv.IsSuspended(ifh, 7))
	require.Equal(t, defn.EnqueueFlowControlled, enqueue())
	require.Equal(t, 1, adv.Suspended())

	st, _ := lq.GetStats(0, defn.StatsAllQueues)
	require.Equal(t, uint64(2), st.FlowCtl)
	require.Equal(t, uint64(1), st.FlowAdvised)

	// drain down to half the threshold
	for range 4 {
		v, ok := lq.Dequeue()
		require.True(t, ok)
		v.Free()
	}
	require.False(t, adv.IsSuspended(ifh, 7))
	require.Len(t, events, 2)
	require.Equal(t, flowadv.EventSuspend, events[0].Kind)
	require.Equal(t, flowadv.EventResume, events[1].Kind)
	require.Equal(t, "en0", events[1].Iface)
}

func TestTeardownFlushes(t *testing.T) {
	tu.SetT(t)
	withParams(t, testParams())

	ifs := flowadv.NewIfTable()
	ifh := ifs.Attach("en0")
	adv := flowadv.NewAdvisor(ifs, flowadv.NewPool(8, 0), nil)

	q := qdisc.NewQueue("en0", ifh, adv)
	lq := q.Lock()
	defer lq.Unlock()
	require.NoError(t, lq.Setup(defn.KindFQCoDel, defn.QdiscFlagFlowCtl, defn.RepMbuf))
	lq.SetEnabled(true)

	sink := &telemetry.MemorySink{}
	detach := telemetry.Attach(sink)
	defer detach()

	live := alloc.Live()
	for range 6 {
		v := packet(t, 5, 9, 0)
		v.Meta().Flags = defn.PktFlagFlowAdv
		tu.NoErr(lq.Enqueue(v))
	}
	require.True(t, adv.IsSuspended(ifh, 9))

	lq.Teardown()
	require.Equal(t, defn.KindNone, lq.Kind())
	require.False(t, lq.Enabled())
	require.Equal(t, live, alloc.Live())
	require.False(t, adv.IsSuspended(ifh, 9))

	recs := sink.Records()
	require.Len(t, recs, 6)
	for _, r := range recs {
		require.Equal(t, defn.ReasonIfFlush, r.Reason)
		require.Equal(t, defn.DropFlagOutput|defn.DropFlagFlush, r.Flags)
	}
}

func TestStatsQueries(t *testing.T) {
	tu.SetT(t)
	withParams(t, testParams())
	lq := attached(t, 0, nil, flowadv.Handle{})

	tu.NoErr(lq.Enqueue(packet(t, 4, 1, 0)))

	_, ok := lq.GetStats(1, defn.StatsAllQueues)
	require.False(t, ok)
	_, ok = lq.GetStats(0, 16)
	require.False(t, ok)

	st, ok := lq.GetStats(0, 4)
	require.True(t, ok)
	require.Equal(t, defn.KindFQCoDel, st.Kind)
	require.Equal(t, uint32(1), st.Qlen)
	require.Equal(t, uint32(1), st.ActiveFlows)

	st, _ = lq.GetStats(0, 5)
	require.Zero(t, st.Qlen)
}

func TestInvalidParams(t *testing.T) {
	p := testParams()
	p.Interval = p.Target / 2
	withParams(t, p)

	q := qdisc.NewQueue("en0", flowadv.Handle{}, nil)
	lq := q.Lock()
	defer lq.Unlock()
	require.ErrorIs(t, lq.Setup(defn.KindFQCoDel, 0, defn.RepMbuf), fqcodel.ErrInvalidParams)
	require.Equal(t, defn.KindNone, lq.Kind())
}
