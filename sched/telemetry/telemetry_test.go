package telemetry_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/telemetry"
	"github.com/zjkmxy/pktsched/std/types/optional"
	tu "github.com/zjkmxy/pktsched/std/utils/testutils"
)

func TestAttachDetach(t *testing.T) {
	require.False(t, telemetry.Active())

	sink := &telemetry.MemorySink{}
	detach := telemetry.Attach(sink)
	require.True(t, telemetry.Active())
	require.Panics(t, func() { telemetry.Attach(sink) })

	telemetry.Emit(&telemetry.Record{Reason: defn.ReasonAQM})
	require.Len(t, sink.Records(), 1)

	detach()
	detach()
	require.False(t, telemetry.Active())
	telemetry.Emit(&telemetry.Record{Reason: defn.ReasonAQM})
	require.Len(t, sink.Records(), 1)
}

func TestMultiSink(t *testing.T) {
	a, b := &telemetry.MemorySink{}, &telemetry.MemorySink{}
	m := telemetry.MultiSink{a, b}
	m.Record(&telemetry.Record{FlowID: 1})
	m.Record(&telemetry.Record{FlowID: 2})
	require.Equal(t, a.Records(), b.Records())
	require.Len(t, a.Records(), 2)
}

func TestMetricsSink(t *testing.T) {
	tu.SetT(t)
	reg := prometheus.NewRegistry()
	s := tu.NoErr(telemetry.NewMetricsSink(reg))

	rec := telemetry.Record{
		Rep:    defn.RepMbuf,
		Reason: defn.ReasonQueueFull,
		Dir:    defn.DirOutput,
		Length: 100,
	}
	s.Record(&rec)
	s.Record(&rec)
	rec.Reason = defn.ReasonAQM
	s.Record(&rec)

	expected := `
# HELP pktsched_telemetry_dropped_packets_total Packets dropped, by reason.
# TYPE pktsched_telemetry_dropped_packets_total counter
pktsched_telemetry_dropped_packets_total{direction="out",reason="aqm",representation="mbuf"} 1
pktsched_telemetry_dropped_packets_total{direction="out",reason="queue_full",representation="mbuf"} 2
# HELP pktsched_telemetry_dropped_bytes_total Bytes dropped, by reason.
# TYPE pktsched_telemetry_dropped_bytes_total counter
pktsched_telemetry_dropped_bytes_total{direction="out",reason="aqm",representation="mbuf"} 100
pktsched_telemetry_dropped_bytes_total{direction="out",reason="queue_full",representation="mbuf"} 200
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected)))

	_, err := telemetry.NewMetricsSink(reg)
	require.Error(t, err)
}

func drops(n int) []telemetry.Record {
	recs := make([]telemetry.Record, n)
	for i := range recs {
		recs[i] = telemetry.Record{
			Rep:    defn.RepDesc,
			Reason: defn.ReasonQueueFull,
			Site:   "fqcodel.enqueue",
			Flags:  defn.DropFlagOutput,
			Dir:    defn.DirOutput,
			PID:    optional.Some(int32(40 + i)),
			FlowID: uint32(i),
			Length: 1500,
		}
	}
	return recs
}

func scanAll(t *testing.T, s *telemetry.BadgerSink) (seqs []uint64, recs []telemetry.Record) {
	require.NoError(t, s.Scan(func(seq uint64, r telemetry.Record) bool {
		seqs = append(seqs, seq)
		recs = append(recs, r)
		return true
	}))
	return
}

func TestBadgerSink(t *testing.T) {
	tu.SetT(t)
	s := tu.NoErr(telemetry.OpenBadgerSink(""))

	want := drops(5)
	want[2].PID = optional.None[int32]()
	want[3].Site = ""
	for i := range want {
		s.Record(&want[i])
	}
	require.Eventually(t, func() bool { return s.Written() == 5 },
		5*time.Second, 5*time.Millisecond)

	seqs, got := scanAll(t, s)
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, seqs)
	require.Equal(t, want, got)
	require.NoError(t, s.Close())
}

func TestBadgerSinkReopen(t *testing.T) {
	tu.SetT(t)
	dir := t.TempDir()

	s := tu.NoErr(telemetry.OpenBadgerSink(dir))
	recs := drops(3)
	s.Record(&recs[0])
	s.Record(&recs[1])
	require.NoError(t, s.Close())

	s = tu.NoErr(telemetry.OpenBadgerSink(dir))
	s.Record(&recs[2])
	require.Eventually(t, func() bool { return s.Written() == 1 },
		5*time.Second, 5*time.Millisecond)

	seqs, got := scanAll(t, s)
	require.Equal(t, []uint64{0, 1, 2}, seqs)
	require.Equal(t, recs, got)
	require.NoError(t, s.Close())
}
