package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/flowadv"
	"github.com/zjkmxy/pktsched/sched/pkt"
	"github.com/zjkmxy/pktsched/sched/qdisc"
	"github.com/zjkmxy/pktsched/sched/qdisc/fqcodel"
	"github.com/zjkmxy/pktsched/sched/telemetry"
	"github.com/zjkmxy/pktsched/std/utils"
)

// ifQueue is one configured interface and its output queue.
type ifQueue struct {
	name  string
	iface flowadv.Handle
	rep   defn.Representation
	queue *qdisc.Queue
}

// Scheduler wires the configured interfaces, their disciplines and the
// telemetry tap together.
// Note: only one instance should be created per process.
type Scheduler struct {
	config   *core.Config
	profiler *Profiler

	alloc    *pkt.Allocator
	ifs      *flowadv.IfTable
	advisor  *flowadv.Advisor
	queues   []*ifQueue
	registry *prometheus.Registry

	detach func()
	memory *telemetry.MemorySink
	badger *telemetry.BadgerSink
	server *http.Server
}

// NewScheduler creates a Scheduler and initializes the process-wide state.
func NewScheduler(config *core.Config) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	core.C = config
	core.StartTimestamp = time.Now()
	if err := core.OpenLogger(); err != nil {
		return nil, err
	}
	core.InitTimebase()

	return &Scheduler{
		config:   config,
		profiler: NewProfiler(config),
		registry: prometheus.NewRegistry(),
	}, nil
}

func (s *Scheduler) String() string {
	return "pktsched"
}

// Start attaches a discipline to every configured interface. On error the
// caller should still call Stop.
func (s *Scheduler) Start() error {
	core.Log.Info(s, "Starting packet scheduler", "version", utils.PktschedVersion)

	if err := s.profiler.Start(); err != nil {
		return err
	}

	flags, err := defn.ParseQdiscFlags(s.config.Qdisc.Flags)
	if err != nil {
		return err
	}
	qdisc.RegisterBackend(defn.KindFQCoDel, fqcodel.New(fqcodel.ParamsFromConfig(s.config)))

	s.alloc = pkt.NewAllocator(pkt.AllocConfig{
		MaxPackets:  s.config.Alloc.MaxPackets,
		SegmentSize: s.config.Alloc.SegmentSize,
		BufferSize:  s.config.Alloc.BufferSize,
		WaitTimeout: s.config.WaitTimeout(),
	})
	s.ifs = flowadv.NewIfTable()
	s.advisor = flowadv.NewAdvisor(s.ifs,
		flowadv.NewPool(s.config.Alloc.MaxFlowRecords, s.config.WaitTimeout()),
		s.onAdvisory)

	collector := qdisc.NewCollector(s.advisor)
	s.registry.MustRegister(collector)
	s.registry.MustRegister(collectors.NewGoCollector())

	if err := s.startTelemetry(); err != nil {
		return err
	}

	for _, ic := range s.config.Interfaces {
		iq, err := s.attach(ic, flags)
		if err != nil {
			return fmt.Errorf("interface %s: %w", ic.Name, err)
		}
		s.queues = append(s.queues, iq)
		collector.Add(iq.queue)
	}

	if addr := s.config.Telemetry.MetricsAddr; addr != "" {
		if err := s.serveMetrics(addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) attach(ic core.InterfaceConfig, flags defn.QdiscFlags) (*ifQueue, error) {
	rep, err := defn.ParseRepresentation(ic.Representation)
	if err != nil {
		return nil, err
	}
	discipline := s.config.Qdisc.Discipline
	if ic.Discipline != "" {
		discipline = ic.Discipline
	}
	kind, err := defn.ParseKind(discipline)
	if err != nil {
		return nil, err
	}

	iq := &ifQueue{name: ic.Name, rep: rep}
	iq.iface = s.ifs.Attach(ic.Name)
	iq.queue = qdisc.NewQueue(ic.Name, iq.iface, s.advisor)

	lq := iq.queue.Lock()
	defer lq.Unlock()
	if err := lq.Setup(kind, flags, rep); err != nil {
		s.ifs.Detach(iq.iface)
		return nil, err
	}
	lq.SetEnabled(true)
	return iq, nil
}

func (s *Scheduler) startTelemetry() error {
	if !s.config.Telemetry.Enabled {
		return nil
	}

	var sinks telemetry.MultiSink
	for _, name := range s.config.Telemetry.Sinks {
		switch name {
		case "memory":
			s.memory = &telemetry.MemorySink{}
			sinks = append(sinks, s.memory)
		case "metrics":
			ms, err := telemetry.NewMetricsSink(s.registry)
			if err != nil {
				return err
			}
			sinks = append(sinks, ms)
		case "badger":
			path := s.config.ResolveRelPath(s.config.Telemetry.BadgerPath)
			bs, err := telemetry.OpenBadgerSink(path)
			if err != nil {
				return err
			}
			s.badger = bs
			sinks = append(sinks, bs)
			core.Log.Info(s, "Recording drops", "path", path)
		}
	}
	if len(sinks) > 0 {
		s.detach = telemetry.Attach(sinks)
	}
	return nil
}

func (s *Scheduler) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.Log.Error(s, "Metrics server failed", "err", err)
		}
	}()
	core.Log.Info(s, "Serving metrics", "addr", ln.Addr())
	return nil
}

func (s *Scheduler) onAdvisory(ev flowadv.Event) {
	core.Log.Debug(s, "Flow advisory", "kind", ev.Kind, "iface", ev.Iface, "flow", ev.Record.FlowID)
}

// Registry returns the Prometheus registry of the scheduler.
func (s *Scheduler) Registry() *prometheus.Registry {
	return s.registry
}

// Drops returns the drops recorded by the memory sink, if configured.
func (s *Scheduler) Drops() []telemetry.Record {
	if s.memory == nil {
		return nil
	}
	return s.memory.Records()
}

// Stop tears down every queue and releases the telemetry sinks.
func (s *Scheduler) Stop() (err error) {
	core.Log.Info(s, "Stopping packet scheduler")

	for _, iq := range s.queues {
		lq := iq.queue.Lock()
		lq.Teardown()
		lq.Unlock()
		err = multierr.Append(err, s.ifs.Detach(iq.iface))
	}
	s.queues = nil

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = multierr.Append(err, s.server.Shutdown(ctx))
		cancel()
		s.server = nil
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	if s.badger != nil {
		err = multierr.Append(err, s.badger.Close())
		s.badger = nil
	}
	err = multierr.Append(err, s.profiler.Stop())

	core.CloseLogger()
	return err
}
