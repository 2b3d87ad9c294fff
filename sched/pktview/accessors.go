package pktview

import "github.com/zjkmxy/pktsched/sched/defn"

// Fields is a read-only snapshot of the first packet's metadata.
type Fields struct {
	Flags       defn.PktFlags
	Timestamp   uint64
	FlowID      uint32
	FlowSrc     defn.FlowSource
	Proto       uint8
	CompGen     uint32
	TxTimestamp uint64
}

// AQMVars returns the per-packet hash and flag words owned by the discipline.
func (v *View) AQMVars() (hash *uint32, flags *uint32) {
	m := v.Meta()
	return &m.AQMHash, &m.AQMFlags
}

func (v *View) ServiceClass() defn.ServiceClass {
	return v.Meta().SvcClass
}

// IsLowLatency reports the L4S mark.
func (v *View) IsLowLatency() bool {
	return v.Meta().Flags.Has(defn.PktFlagL4S)
}

// Fields reads the first packet's metadata. QUIC-marked packets report
// ProtoQUIC regardless of their IP protocol.
func (v *View) Fields() Fields {
	m := v.Meta()
	proto := m.Proto
	if m.Flags.Has(defn.PktFlagQUIC) {
		proto = defn.ProtoQUIC
	}
	return Fields{
		Flags:       m.Flags,
		Timestamp:   m.Timestamp,
		FlowID:      m.FlowID,
		FlowSrc:     m.FlowSrc,
		Proto:       proto,
		CompGen:     m.CompGen,
		TxTimestamp: m.TxTimestamp,
	}
}
