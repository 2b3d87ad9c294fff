package defn

// DropReason classifies why a packet was dropped.
type DropReason uint16

const (
	ReasonUnspecified DropReason = iota
	// ReasonIfFlush is used when a queue is flushed on teardown.
	ReasonIfFlush
	// ReasonQueueFull is a tail drop at the queue limit.
	ReasonQueueFull
	// ReasonAQM is a drop decided by the AQM control law.
	ReasonAQM
	// ReasonFlowCtl is a drop of a flow under an active advisory.
	ReasonFlowCtl
	// ReasonQueueDisabled is a drop at a detached or disabled queue.
	ReasonQueueDisabled
	// ReasonNoMemory is a drop after an allocation failure.
	ReasonNoMemory
)

func (r DropReason) String() string {
	switch r {
	case ReasonUnspecified:
		return "unspecified"
	case ReasonIfFlush:
		return "if_flush"
	case ReasonQueueFull:
		return "queue_full"
	case ReasonAQM:
		return "aqm"
	case ReasonFlowCtl:
		return "flow_control"
	case ReasonQueueDisabled:
		return "queue_disabled"
	case ReasonNoMemory:
		return "no_memory"
	default:
		return "unknown"
	}
}

// DropSite names the code location issuing a drop.
type DropSite string

// DropFlags qualify a drop record.
type DropFlags uint16

const (
	// DropFlagOutput marks the transmit direction; absent means receive.
	DropFlagOutput DropFlags = 1 << iota
	// DropFlagFlush marks drops issued while flushing a queue.
	DropFlagFlush
)

// Direction of the packet at the drop point.
type Direction uint8

const (
	DirInput Direction = iota
	DirOutput
)

func (d Direction) String() string {
	if d == DirOutput {
		return "out"
	}
	return "in"
}

// Direction derives the direction carried by the flags.
func (f DropFlags) Direction() Direction {
	if f&DropFlagOutput != 0 {
		return DirOutput
	}
	return DirInput
}
