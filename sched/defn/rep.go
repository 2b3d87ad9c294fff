package defn

// Representation tags the concrete packet object behind a view.
type Representation uint8

const (
	// RepNone marks an empty or freed view.
	RepNone Representation = iota
	// RepMbuf is the buffer-chain representation.
	RepMbuf
	// RepDesc is the descriptor representation used by the zero-copy datapath.
	RepDesc
)

func (r Representation) String() string {
	switch r {
	case RepNone:
		return "none"
	case RepMbuf:
		return "mbuf"
	case RepDesc:
		return "desc"
	default:
		return "unknown"
	}
}

// ParseRepresentation parses the configuration spelling of a representation.
func ParseRepresentation(s string) (Representation, error) {
	switch s {
	case "mbuf", "buffer":
		return RepMbuf, nil
	case "desc", "descriptor":
		return RepDesc, nil
	}
	return RepNone, ErrRepresentation
}

// AllocMode selects whether an allocation may wait for resources.
type AllocMode uint8

const (
	AllocWait AllocMode = iota
	AllocNoWait
)

func (m AllocMode) String() string {
	if m == AllocNoWait {
		return "nowait"
	}
	return "wait"
}
