package fqcodel

import (
	"errors"
	"time"

	"github.com/zjkmxy/pktsched/sched/core"
)

var ErrInvalidParams = errors.New("invalid fq_codel parameters")

// Params tune the discipline.
type Params struct {
	// Number of flow buckets
	Flows int
	// DRR quantum in bytes
	Quantum int
	// CoDel target sojourn time
	Target time.Duration
	// CoDel interval
	Interval time.Duration
	// Sojourn time above which L4S packets are marked
	L4STarget time.Duration
	// Maximum packets held across all flows
	Limit int
	// Per-flow packet backlog that triggers a flow advisory
	FlowCtlThreshold int
}

// DefaultParams returns the RFC 8290 defaults.
func DefaultParams() Params {
	return Params{
		Flows:            1024,
		Quantum:          1514,
		Target:           5 * time.Millisecond,
		Interval:         100 * time.Millisecond,
		L4STarget:        time.Millisecond,
		Limit:            10240,
		FlowCtlThreshold: 128,
	}
}

// ParamsFromConfig reads the parameters from a configuration.
func ParamsFromConfig(c *core.Config) Params {
	return Params{
		Flows:            c.FQCoDel.Flows,
		Quantum:          c.FQCoDel.Quantum,
		Target:           time.Duration(c.FQCoDel.TargetUs) * time.Microsecond,
		Interval:         time.Duration(c.FQCoDel.IntervalUs) * time.Microsecond,
		L4STarget:        time.Duration(c.FQCoDel.L4STargetUs) * time.Microsecond,
		Limit:            c.Qdisc.Limit,
		FlowCtlThreshold: c.Qdisc.FlowCtlThreshold,
	}
}

func (p Params) validate() error {
	if p.Flows <= 0 || p.Quantum <= 0 || p.Limit <= 0 || p.FlowCtlThreshold <= 0 {
		return ErrInvalidParams
	}
	if p.Target <= 0 || p.Interval < p.Target || p.L4STarget <= 0 {
		return ErrInvalidParams
	}
	return nil
}
