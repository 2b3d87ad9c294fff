package core

import (
	"path/filepath"
	"time"
)

// Global initial configuration of the scheduler.
// This configuration is IMMUTABLE once the daemon starts. Do not modify it.
var C = DefaultConfig()

// InterfaceConfig describes one output queue to build at startup.
type InterfaceConfig struct {
	// Interface name
	Name string `json:"name" validate:"required"`
	// Packet representation used by the interface: mbuf or desc
	Representation string `json:"representation" validate:"oneof=mbuf buffer desc descriptor"`
	// Discipline to attach, overrides qdisc.discipline
	Discipline string `json:"discipline,omitempty" validate:"omitempty,oneof=none fq_codel fqcodel"`
}

// Config represents the configuration of the scheduler.
type Config struct {
	Core struct {
		// Logging level
		LogLevel string `json:"log_level" validate:"oneof=TRACE DEBUG INFO WARN ERROR FATAL"`
		// Output log to file
		LogFile string `json:"log_file"`
		// Write JSON lines instead of logfmt
		LogJson bool `json:"log_json"`

		// Config file base dir
		BaseDir string `json:"-"`
		// Enable CPU profiling
		CpuProfile string `json:"-"`
		// Enable memory profiling
		MemProfile string `json:"-"`
		// Enable block profiling
		BlockProfile string `json:"-"`
	} `json:"core"`

	Alloc struct {
		// Maximum number of packets alive at once, across both representations
		MaxPackets int `json:"max_packets" validate:"gt=0"`
		// Size of one buffer-chain segment
		SegmentSize int `json:"segment_size" validate:"gte=64"`
		// Size of one descriptor data buffer
		BufferSize int `json:"buffer_size" validate:"gte=128"`
		// How long a waiting allocation may block (milliseconds)
		WaitTimeoutMs int `json:"wait_timeout_ms" validate:"gte=0"`
		// Maximum number of outstanding flow-control records
		MaxFlowRecords int `json:"max_flow_records" validate:"gt=0"`
	} `json:"alloc"`

	Qdisc struct {
		// Default discipline for interfaces: none or fq_codel
		Discipline string `json:"discipline" validate:"oneof=none fq_codel fqcodel"`
		// Discipline flags: ecn, flowctl, lowlatency
		Flags []string `json:"flags" validate:"dive,oneof=ecn flowctl lowlatency"`
		// Maximum number of packets held by one queue
		Limit int `json:"limit" validate:"gt=0"`
		// Per-flow backlog (packets) above which a flow advisory is issued
		FlowCtlThreshold int `json:"flowctl_threshold" validate:"gt=0"`
	} `json:"qdisc"`

	FQCoDel struct {
		// Number of flow buckets
		Flows int `json:"flows" validate:"gt=0,lte=65536"`
		// DRR quantum in bytes
		Quantum int `json:"quantum" validate:"gt=0"`
		// CoDel target sojourn time (microseconds)
		TargetUs int `json:"target_us" validate:"gt=0"`
		// CoDel interval (microseconds)
		IntervalUs int `json:"interval_us" validate:"gtfield=TargetUs"`
		// Sojourn time above which L4S packets are marked (microseconds)
		L4STargetUs int `json:"l4s_target_us" validate:"gt=0"`
	} `json:"fq_codel"`

	Telemetry struct {
		// Whether the drop telemetry tap is active
		Enabled bool `json:"enabled"`
		// Sinks to record drops into: memory, metrics, badger
		Sinks []string `json:"sinks" validate:"dive,oneof=memory metrics badger"`
		// Badger directory (relative to the config file), required by the badger sink
		BadgerPath string `json:"badger_path"`
		// Address to serve Prometheus metrics on, empty to disable
		MetricsAddr string `json:"metrics_addr" validate:"omitempty,hostname_port"`
	} `json:"telemetry"`

	Interfaces []InterfaceConfig `json:"interfaces" validate:"dive"`

	Traffic struct {
		// Number of synthetic packets to offer per interface
		Packets int `json:"packets" validate:"gte=0"`
		// Number of distinct flows
		Flows int `json:"flows" validate:"gt=0"`
		// Payload size in bytes
		PayloadSize int `json:"payload_size" validate:"gte=0,lte=9000"`
		// Fraction of IPv6 packets
		IPv6Ratio float64 `json:"ipv6_ratio" validate:"gte=0,lte=1"`
		// Fraction of ECN-capable packets
		ECTRatio float64 `json:"ect_ratio" validate:"gte=0,lte=1"`
		// Packets dequeued per enqueued packet; below 1 builds a standing queue
		DrainRatio float64 `json:"drain_ratio" validate:"gte=0,lte=1"`
		// Random seed for the generator
		Seed uint64 `json:"seed"`
	} `json:"traffic"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Core.LogLevel = "INFO"
	c.Core.LogFile = ""

	c.Alloc.MaxPackets = 65536
	c.Alloc.SegmentSize = 2048
	c.Alloc.BufferSize = 9216
	c.Alloc.WaitTimeoutMs = 10
	c.Alloc.MaxFlowRecords = 1024

	c.Qdisc.Discipline = "fq_codel"
	c.Qdisc.Flags = []string{"ecn", "flowctl"}
	c.Qdisc.Limit = 2048
	c.Qdisc.FlowCtlThreshold = 128

	c.FQCoDel.Flows = 1024
	c.FQCoDel.Quantum = 1514
	c.FQCoDel.TargetUs = 5000
	c.FQCoDel.IntervalUs = 100000
	c.FQCoDel.L4STargetUs = 1000

	c.Telemetry.Enabled = false
	c.Telemetry.Sinks = []string{"metrics"}
	c.Telemetry.BadgerPath = "drops.db"
	c.Telemetry.MetricsAddr = ""

	c.Interfaces = []InterfaceConfig{{Name: "en0", Representation: "mbuf"}}

	c.Traffic.Packets = 10000
	c.Traffic.Flows = 16
	c.Traffic.PayloadSize = 1200
	c.Traffic.IPv6Ratio = 0.5
	c.Traffic.ECTRatio = 0.5
	c.Traffic.DrainRatio = 0.9
	c.Traffic.Seed = 1

	return c
}

// ResolveRelPath resolves a possibly relative path based on config file path.
func (c *Config) ResolveRelPath(target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(c.Core.BaseDir, target)
}

// WaitTimeout returns the allocation wait bound.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Alloc.WaitTimeoutMs) * time.Millisecond
}
