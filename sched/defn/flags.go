package defn

// PktFlags are per-packet attributes set upstream of the scheduler.
type PktFlags uint32

const (
	// PktFlagFlowAdv marks a packet whose sender accepts flow advisories.
	PktFlagFlowAdv PktFlags = 1 << iota
	// PktFlagL4S marks a low-latency (L4S) packet.
	PktFlagL4S
	// PktFlagQUIC marks a packet carrying the QUIC transport.
	PktFlagQUIC
	// PktFlagCsumOffloadIPv4 defers the IPv4 header checksum to hardware.
	PktFlagCsumOffloadIPv4
	// PktFlagClassified means the descriptor's HdrOff is valid.
	PktFlagClassified
	// PktFlagNewFlow marks the first packet of a flow.
	PktFlagNewFlow
)

func (f PktFlags) Has(flag PktFlags) bool {
	return f&flag != 0
}

// FlowSource identifies who owns a flow.
type FlowSource uint8

const (
	FlowSrcNone FlowSource = iota
	// FlowSrcInpcb is a socket-originated flow.
	FlowSrcInpcb
	// FlowSrcIfnet is an interface-originated flow.
	FlowSrcIfnet
	// FlowSrcPF is a packet-filter originated flow.
	FlowSrcPF
	// FlowSrcChannel is a user channel flow. Only this source carries a
	// source token and index for sub-flow rate limiting.
	FlowSrcChannel
)

func (s FlowSource) String() string {
	switch s {
	case FlowSrcNone:
		return "none"
	case FlowSrcInpcb:
		return "inpcb"
	case FlowSrcIfnet:
		return "ifnet"
	case FlowSrcPF:
		return "pf"
	case FlowSrcChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// ServiceClass is the traffic class of a packet.
type ServiceClass uint8

const (
	SvcBestEffort ServiceClass = iota
	SvcBackground
	SvcResponsiveData
	SvcOAM
	SvcAudioVideo
	SvcVideo
	SvcVoice
	SvcControl
)

func (c ServiceClass) String() string {
	switch c {
	case SvcBestEffort:
		return "BE"
	case SvcBackground:
		return "BK"
	case SvcResponsiveData:
		return "RD"
	case SvcOAM:
		return "OAM"
	case SvcAudioVideo:
		return "AV"
	case SvcVideo:
		return "VI"
	case SvcVoice:
		return "VO"
	case SvcControl:
		return "CTL"
	default:
		return "unknown"
	}
}

// ProtoQUIC is reported instead of the IP protocol for QUIC-marked packets.
const ProtoQUIC uint8 = 253

// Transport protocol numbers used by the generator and tests.
const (
	ProtoTCP uint8 = 6
	ProtoUDP uint8 = 17
)

// QdiscFlags configure a discipline at setup time.
type QdiscFlags uint32

const (
	// QdiscFlagECN marks ECN-capable packets instead of dropping them.
	QdiscFlagECN QdiscFlags = 1 << iota
	// QdiscFlagFlowCtl issues flow advisories for over-limit flows.
	QdiscFlagFlowCtl
	// QdiscFlagLowLatency gives L4S packets a shallow marking threshold.
	QdiscFlagLowLatency
)

func (f QdiscFlags) Has(flag QdiscFlags) bool {
	return f&flag != 0
}

// ParseQdiscFlags maps configuration names to flags.
func ParseQdiscFlags(names []string) (QdiscFlags, error) {
	var f QdiscFlags
	for _, n := range names {
		switch n {
		case "ecn":
			f |= QdiscFlagECN
		case "flowctl":
			f |= QdiscFlagFlowCtl
		case "lowlatency":
			f |= QdiscFlagLowLatency
		default:
			return 0, ErrUnknownFlag
		}
	}
	return f, nil
}
