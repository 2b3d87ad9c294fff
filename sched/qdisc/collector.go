package qdisc

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/flowadv"
)

// Collector exports the aggregate statistics of a set of queues, and the
// advisory counters of their flow advisor.
type Collector struct {
	mu      sync.Mutex
	queues  []*Queue
	advisor *flowadv.Advisor

	packets     *prometheus.Desc
	bytes       *prometheus.Desc
	drops       *prometheus.Desc
	ecnMarks    *prometheus.Desc
	flowCtl     *prometheus.Desc
	flowAdvised *prometheus.Desc
	qlen        *prometheus.Desc
	backlog     *prometheus.Desc
	activeFlows *prometheus.Desc
	advisories  *prometheus.Desc
	suspended   *prometheus.Desc
}

// NewCollector creates a collector. advisor may be nil.
func NewCollector(advisor *flowadv.Advisor) *Collector {
	labels := []string{"interface", "discipline"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("pktsched", "qdisc", name), help, labels, nil)
	}
	return &Collector{
		advisor: advisor,
		advisories: prometheus.NewDesc(prometheus.BuildFQName("pktsched", "flowadv", "advisories_total"),
			"Flow advisories, by event.", []string{"event"}, nil),
		suspended: prometheus.NewDesc(prometheus.BuildFQName("pktsched", "flowadv", "suspended_flows"),
			"Flows currently suspended.", nil, nil),
		packets:     desc("packets_total", "Packets dequeued."),
		bytes:       desc("bytes_total", "Bytes dequeued."),
		drops:       desc("drops_total", "Packets dropped by the discipline."),
		ecnMarks:    desc("ecn_marks_total", "Packets marked Congestion Experienced."),
		flowCtl:     desc("flow_control_total", "Packets enqueued or dropped under a flow advisory."),
		flowAdvised: desc("flow_advisories_total", "Flow advisories issued."),
		qlen:        desc("queue_length", "Packets currently queued."),
		backlog:     desc("backlog_bytes", "Bytes currently queued."),
		activeFlows: desc("active_flows", "Flows with queued packets."),
	}
}

// Add starts exporting q.
func (c *Collector) Add(q *Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, q)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packets
	ch <- c.bytes
	ch <- c.drops
	ch <- c.ecnMarks
	ch <- c.flowCtl
	ch <- c.flowAdvised
	ch <- c.qlen
	ch <- c.backlog
	ch <- c.activeFlows
	if c.advisor != nil {
		ch <- c.advisories
		ch <- c.suspended
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	queues := append([]*Queue(nil), c.queues...)
	c.mu.Unlock()

	if c.advisor != nil {
		advised, resumed := c.advisor.Counters()
		ch <- prometheus.MustNewConstMetric(c.advisories, prometheus.CounterValue, float64(advised), flowadv.EventSuspend.String())
		ch <- prometheus.MustNewConstMetric(c.advisories, prometheus.CounterValue, float64(resumed), flowadv.EventResume.String())
		ch <- prometheus.MustNewConstMetric(c.suspended, prometheus.GaugeValue, float64(c.advisor.Suspended()))
	}

	for _, q := range queues {
		lq := q.Lock()
		st, ok := lq.GetStats(0, defn.StatsAllQueues)
		lq.Unlock()
		if !ok {
			continue
		}

		labels := []string{q.Name(), st.Kind.String()}
		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
		}
		gauge := func(d *prometheus.Desc, v uint32) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
		}
		counter(c.packets, st.Packets)
		counter(c.bytes, st.Bytes)
		counter(c.drops, st.Drops)
		counter(c.ecnMarks, st.ECNMarks)
		counter(c.flowCtl, st.FlowCtl)
		counter(c.flowAdvised, st.FlowAdvised)
		gauge(c.qlen, st.Qlen)
		gauge(c.backlog, st.Backlog)
		gauge(c.activeFlows, st.ActiveFlows)
	}
}
