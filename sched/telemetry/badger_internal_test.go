package telemetry

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zjkmxy/pktsched/sched/defn"
	tu "github.com/zjkmxy/pktsched/std/utils/testutils"
)

var errStore = errors.New("store unavailable")

type flakyBatch struct {
	writeBatch
	broken *atomic.Bool
}

func (b flakyBatch) Set(k, v []byte) error {
	if b.broken.Load() {
		return errStore
	}
	return b.writeBatch.Set(k, v)
}

func TestBadgerSinkRecoversAfterStoreError(t *testing.T) {
	tu.SetT(t)
	s := tu.NoErr(OpenBadgerSink(""))

	var broken atomic.Bool
	broken.Store(true)
	s.newBatch = func() writeBatch {
		return flakyBatch{writeBatch: s.db.NewWriteBatch(), broken: &broken}
	}

	r := Record{Rep: defn.RepDesc, Reason: defn.ReasonQueueFull, Site: "test", FlowID: 1}
	s.Record(&r)
	s.Record(&r)
	require.Eventually(t, func() bool { return s.Failed() == 2 && s.queue.Len() == 0 },
		5*time.Second, 5*time.Millisecond)
	require.Zero(t, s.Written())

	// the writer still wakes up for records arriving after the failure
	broken.Store(false)
	r.FlowID = 2
	s.Record(&r)
	require.Eventually(t, func() bool { return s.Written() == 1 },
		5*time.Second, 5*time.Millisecond)

	var flows []uint32
	require.NoError(t, s.Scan(func(_ uint64, r Record) bool {
		flows = append(flows, r.FlowID)
		return true
	}))
	require.Equal(t, []uint32{2}, flows)
	require.ErrorIs(t, s.Close(), errStore)
}
