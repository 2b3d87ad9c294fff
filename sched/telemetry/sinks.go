package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MemorySink keeps every record in memory.
type MemorySink struct {
	mu   sync.Mutex
	recs []Record
}

func (s *MemorySink) Record(r *Record) {
	s.mu.Lock()
	s.recs = append(s.recs, *r)
	s.mu.Unlock()
}

// Records returns a copy of the recorded drops.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.recs...)
}

// Reset forgets all records.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.recs = nil
	s.mu.Unlock()
}

// MultiSink fans a record out to several sinks.
type MultiSink []Sink

func (m MultiSink) Record(r *Record) {
	for _, s := range m {
		s.Record(r)
	}
}

// MetricsSink counts drops in Prometheus.
type MetricsSink struct {
	drops *prometheus.CounterVec
	bytes *prometheus.CounterVec
}

// NewMetricsSink creates the drop counters and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	labels := []string{"reason", "direction", "representation"}
	s := &MetricsSink{
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pktsched",
			Subsystem: "telemetry",
			Name:      "dropped_packets_total",
			Help:      "Packets dropped, by reason.",
		}, labels),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pktsched",
			Subsystem: "telemetry",
			Name:      "dropped_bytes_total",
			Help:      "Bytes dropped, by reason.",
		}, labels),
	}
	if err := reg.Register(s.drops); err != nil {
		return nil, err
	}
	if err := reg.Register(s.bytes); err != nil {
		reg.Unregister(s.drops)
		return nil, err
	}
	return s, nil
}

func (s *MetricsSink) Record(r *Record) {
	reason, dir, rep := r.Reason.String(), r.Dir.String(), r.Rep.String()
	s.drops.WithLabelValues(reason, dir, rep).Inc()
	s.bytes.WithLabelValues(reason, dir, rep).Add(float64(r.Length))
}
