// Package telemetry is the optional drop tap. When no sink is attached
// the data path pays a single atomic load per drop.
package telemetry

import (
	"sync"
	"sync/atomic"

	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/std/types/optional"
)

// Record describes one dropped packet.
type Record struct {
	Rep    defn.Representation
	Reason defn.DropReason
	Site   defn.DropSite
	Flags  defn.DropFlags
	Dir    defn.Direction
	// PID is only known for descriptor packets.
	PID    optional.Optional[int32]
	FlowID uint32
	Length uint32
}

// Sink consumes drop records. Record may be called concurrently from
// every queue and must not retain r.
type Sink interface {
	Record(r *Record)
}

type sinkBox struct {
	sink Sink
}

var (
	active  atomic.Int32
	current atomic.Pointer[sinkBox]
	attachM sync.Mutex
)

// Active reports whether a sink is attached.
func Active() bool {
	return active.Load() > 0
}

// Attach installs sink as the process-wide tap and returns the function
// that removes it. Only one sink can be attached at a time; use MultiSink
// to fan out.
func Attach(sink Sink) (detach func()) {
	attachM.Lock()
	defer attachM.Unlock()
	if current.Load() != nil {
		panic("[BUG] telemetry sink already attached")
	}
	current.Store(&sinkBox{sink: sink})
	active.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			attachM.Lock()
			defer attachM.Unlock()
			active.Add(-1)
			current.Store(nil)
		})
	}
}

// Emit hands r to the attached sink, if any.
func Emit(r *Record) {
	if box := current.Load(); box != nil {
		box.sink.Record(r)
	}
}
