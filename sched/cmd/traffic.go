package cmd

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/pkt"
	"github.com/zjkmxy/pktsched/sched/pktview"
	"github.com/zjkmxy/pktsched/std/utils"
)

const (
	ipv4HdrLen = 20
	ipv6HdrLen = 40

	ecnECT0 = 0b10
)

// TrafficReport summarizes the synthetic load offered to one interface.
type TrafficReport struct {
	Iface          string
	Offered        int
	Enqueued       int
	Dropped        int
	FlowControlled int
	// Packets withheld because their flow was suspended
	Paused int
	Sent   int
	Stats  defn.QueueStats
}

// generator builds synthetic IPv4 and IPv6 packets.
type generator struct {
	rng     *rand.Rand
	alloc   *pkt.Allocator
	rep     defn.Representation
	flows   int
	payload int
	v6Ratio float64
	ectRate float64
	buf     []byte
}

func newGenerator(c *core.Config, alloc *pkt.Allocator, rep defn.Representation, seed uint64) *generator {
	return &generator{
		rng:     rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15)),
		alloc:   alloc,
		rep:     rep,
		flows:   c.Traffic.Flows,
		payload: c.Traffic.PayloadSize,
		v6Ratio: c.Traffic.IPv6Ratio,
		ectRate: c.Traffic.ECTRatio,
	}
}

// flow picks the flow of the next packet.
func (g *generator) flow() uint32 {
	return uint32(g.rng.IntN(g.flows)) + 1
}

// packet builds one packet of flow.
func (g *generator) packet(flow uint32) (pktview.View, error) {
	ecn := byte(0)
	if g.rng.Float64() < g.ectRate {
		ecn = ecnECT0
	}
	proto := utils.If(flow%4 == 0, defn.ProtoUDP, defn.ProtoTCP)

	if g.rng.Float64() < g.v6Ratio {
		g.buf = ipv6Packet(g.buf[:0], ecn, proto, flow, g.payload)
	} else {
		g.buf = ipv4Packet(g.buf[:0], ecn, proto, flow, g.payload)
	}

	var p pkt.Packet
	switch g.rep {
	case defn.RepMbuf:
		m, err := g.alloc.MbufFromBytes(g.buf, defn.AllocWait)
		if err != nil {
			return pktview.View{}, err
		}
		p = m
	default:
		d, err := g.alloc.DescFromBytes(g.buf, defn.AllocWait)
		if err != nil {
			return pktview.View{}, err
		}
		d.PID = int32(1000 + flow)
		p = d
	}

	m := p.Metadata()
	m.FlowID = flow
	m.FlowSrc = defn.FlowSrcInpcb
	m.Flags = defn.PktFlagFlowAdv
	if proto == defn.ProtoUDP {
		m.FlowSrc = defn.FlowSrcChannel
		m.FlowSrcToken = flow << 8
		m.FlowSrcIndex = flow % 8
		m.Flags |= defn.PktFlagQUIC | defn.PktFlagL4S
	}
	m.Proto = proto
	m.SvcClass = defn.ServiceClass(flow % 8)
	m.Timestamp = core.Now()
	return pktview.Single(p), nil
}

func ipv4Packet(b []byte, ecn, proto byte, flow uint32, payload int) []byte {
	total := ipv4HdrLen + payload
	b = append(b, 0x45, ecn)
	b = binary.BigEndian.AppendUint16(b, uint16(total))
	b = append(b, 0, 0, 0x40, 0, 64, proto, 0, 0)
	b = append(b, 10, 0, 0, 1)
	b = binary.BigEndian.AppendUint32(b, 0x0a010000|flow&0xffff)
	binary.BigEndian.PutUint16(b[10:], ipv4Checksum(b[:ipv4HdrLen]))
	return append(b, make([]byte, payload)...)
}

func ipv6Packet(b []byte, ecn, proto byte, flow uint32, payload int) []byte {
	// version 6, traffic class carries ECN in its low bits
	b = append(b, 0x60, ecn<<4|byte(flow>>16)&0x0f, byte(flow>>8), byte(flow))
	b = binary.BigEndian.AppendUint16(b, uint16(payload))
	b = append(b, proto, 64)
	b = append(b, make([]byte, 32)...)
	b[8+15] = 1
	b[24+15] = byte(flow)
	return append(b, make([]byte, payload)...)
}

func ipv4Checksum(h []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(h); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(h[i:]))
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// RunTraffic offers the configured synthetic load to every interface and
// drains it at the configured ratio.
func (s *Scheduler) RunTraffic() ([]TrafficReport, error) {
	reports := make([]TrafficReport, 0, len(s.queues))
	for i, iq := range s.queues {
		seed := s.config.Traffic.Seed + uint64(i)
		r, err := s.runInterface(iq, newGenerator(s.config, s.alloc, iq.rep, seed))
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Scheduler) runInterface(iq *ifQueue, g *generator) (TrafficReport, error) {
	r := TrafficReport{Iface: iq.name}
	credit := 0.0

	lq := iq.queue.Lock()
	defer lq.Unlock()

	transmit := func() bool {
		v, ok := lq.Dequeue()
		if ok {
			r.Sent++
			v.Free()
		}
		return ok
	}

	for range s.config.Traffic.Packets {
		flow := g.flow()
		r.Offered++
		if s.advisor.IsSuspended(iq.iface, flow) {
			r.Paused++
		} else {
			v, err := g.packet(flow)
			if err != nil {
				return r, err
			}
			res, err := lq.Enqueue(v)
			if err != nil {
				return r, err
			}
			switch res {
			case defn.EnqueueOK:
				r.Enqueued++
			case defn.EnqueueFlowControlled:
				r.Enqueued++
				r.FlowControlled++
			case defn.EnqueueDropped:
				r.Dropped++
			}
		}

		credit += s.config.Traffic.DrainRatio
		for credit >= 1 {
			credit--
			if !transmit() {
				credit = 0
				break
			}
		}
	}
	for transmit() {
	}

	r.Stats, _ = lq.GetStats(0, defn.StatsAllQueues)
	core.Log.Info(s, "Traffic finished", "iface", iq.name, "offered", r.Offered,
		"sent", r.Sent, "dropped", r.Dropped, "paused", r.Paused)
	return r, nil
}
