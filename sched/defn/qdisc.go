package defn

// Kind identifies a queueing discipline.
type Kind uint8

const (
	KindNone Kind = iota
	KindFQCoDel
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindFQCoDel:
		return "fq_codel"
	default:
		return "unknown"
	}
}

// ParseKind parses a discipline name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "none", "":
		return KindNone, nil
	case "fq_codel", "fqcodel":
		return KindFQCoDel, nil
	}
	return KindNone, ErrUnknownDiscipline
}

// EnqueueResult is the admission outcome of one packet.
type EnqueueResult uint8

const (
	// EnqueueOK means the packet is queued.
	EnqueueOK EnqueueResult = iota
	// EnqueueDropped means the packet was dropped and freed.
	EnqueueDropped
	// EnqueueFlowControlled means the packet was queued or dropped and the
	// sender received a flow advisory.
	EnqueueFlowControlled
)

func (r EnqueueResult) String() string {
	switch r {
	case EnqueueOK:
		return "ok"
	case EnqueueDropped:
		return "dropped"
	case EnqueueFlowControlled:
		return "flow_controlled"
	default:
		return "unknown"
	}
}

// StatsAllQueues requests aggregate statistics of a group.
const StatsAllQueues = ^uint32(0)

// QueueStats is a snapshot of discipline counters.
type QueueStats struct {
	Kind Kind

	// Cumulative counters
	Packets     uint64
	Bytes       uint64
	Drops       uint64
	ECNMarks    uint64
	FlowCtl     uint64
	FlowAdvised uint64

	// Instantaneous state
	Qlen        uint32
	Backlog     uint32
	ActiveFlows uint32
}
