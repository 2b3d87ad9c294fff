package pktview

import (
	"encoding/binary"

	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
)

// ECNOutcome is the result of a congestion mark attempt.
type ECNOutcome uint8

const (
	// ECNNone is returned alongside errors.
	ECNNone ECNOutcome = iota
	// ECNMarked means the packet now carries CE.
	ECNMarked
	// ECNNotECT means the transport is not ECN capable.
	ECNNotECT
	// ECNAlreadyCE means the packet was marked before.
	ECNAlreadyCE
	// ECNNoHeader means the network header is missing, truncated or split
	// across segments.
	ECNNoHeader
)

const (
	ecnNotECT = 0b00
	ecnCE     = 0b11

	ipv4MinHdr  = 20
	ipv4CsumOff = 10
	ipv6MinHdr  = 2
)

func (o ECNOutcome) String() string {
	switch o {
	case ECNNone:
		return "none"
	case ECNMarked:
		return "marked"
	case ECNNotECT:
		return "not-ect"
	case ECNAlreadyCE:
		return "already-ce"
	case ECNNoHeader:
		return "no-header"
	default:
		return "unknown"
	}
}

// Applied reports whether the packet was modified. The other outcomes are
// expected and are not failures.
func (o ECNOutcome) Applied() bool {
	return o == ECNMarked
}

// MarkCE sets Congestion Experienced on the first packet of the view.
func MarkCE(v *View) (ECNOutcome, error) {
	hdr := netHeader(v)
	if len(hdr) == 0 {
		return ECNNoHeader, nil
	}

	switch hdr[0] >> 4 {
	case 4:
		if len(hdr) < ipv4MinHdr {
			return ECNNoHeader, nil
		}
		return markIPv4(hdr, !v.Meta().Flags.Has(defn.PktFlagCsumOffloadIPv4)), nil
	case 6:
		if len(hdr) < ipv6MinHdr {
			return ECNNoHeader, nil
		}
		return markIPv6(hdr), nil
	default:
		return ECNNone, defn.ErrUnsupportedProtocol
	}
}

// netHeader returns the contiguous bytes starting at the network header of
// the first packet, or nil.
func netHeader(v *View) []byte {
	v.mustLive()
	switch p := v.head.(type) {
	case *pkt.Mbuf:
		off := p.Pkt.NetOff
		if off < 0 {
			return nil
		}
		for s := p; s != nil; s = s.Next {
			data := s.Data()
			if off < len(data) {
				return data[off:]
			}
			off -= len(data)
		}
	case *pkt.Desc:
		off := int(p.L2Len)
		if p.Flags.Has(defn.PktFlagClassified) {
			off = int(p.HdrOff)
		}
		if data := p.Data(); off < len(data) {
			return data[off:]
		}
	}
	return nil
}

func markIPv4(hdr []byte, updateCsum bool) ECNOutcome {
	switch hdr[1] & ecnCE {
	case ecnNotECT:
		return ECNNotECT
	case ecnCE:
		return ECNAlreadyCE
	}

	old := binary.BigEndian.Uint16(hdr[0:2])
	hdr[1] |= ecnCE
	if updateCsum {
		hc := binary.BigEndian.Uint16(hdr[ipv4CsumOff:])
		hc = IncrementalChecksum(hc, old, binary.BigEndian.Uint16(hdr[0:2]))
		binary.BigEndian.PutUint16(hdr[ipv4CsumOff:], hc)
	}
	return ECNMarked
}

func markIPv6(hdr []byte) ECNOutcome {
	switch (hdr[1] >> 4) & ecnCE {
	case ecnNotECT:
		return ECNNotECT
	case ecnCE:
		return ECNAlreadyCE
	}
	hdr[1] |= ecnCE << 4
	return ECNMarked
}

// IncrementalChecksum updates an Internet checksum hc after one 16-bit
// word changed from m to mp (RFC 1624, eqn. 3).
func IncrementalChecksum(hc, m, mp uint16) uint16 {
	sum := uint32(^hc) + uint32(^m) + uint32(mp)
	sum = (sum & 0xffff) + (sum >> 16)
	sum = (sum & 0xffff) + (sum >> 16)
	return ^uint16(sum)
}
