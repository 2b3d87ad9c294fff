// Package fqcodel is the FQ-CoDel discipline (RFC 8290): stochastic flow
// queueing with deficit round robin between flows and CoDel on each flow.
package fqcodel

import (
	"fmt"

	"github.com/zjkmxy/pktsched/sched/core"
	"github.com/zjkmxy/pktsched/sched/defn"
	"github.com/zjkmxy/pktsched/sched/qdisc"
)

func init() {
	qdisc.MustRegister(defn.KindFQCoDel, New(DefaultParams()))
}

// Backend creates FQ-CoDel disciplines with fixed parameters.
type Backend struct {
	params Params
}

func New(p Params) *Backend {
	return &Backend{params: p}
}

func (b *Backend) Setup(lq *qdisc.Locked, flags defn.QdiscFlags, rep defn.Representation) (qdisc.Discipline, error) {
	if err := b.params.validate(); err != nil {
		return nil, err
	}
	if rep != defn.RepMbuf && rep != defn.RepDesc {
		return nil, fmt.Errorf("%w: %s", defn.ErrRepresentation, rep)
	}
	core.InitTimebase()

	p := b.params
	d := &FQCoDel{
		params:    p,
		flags:     flags,
		rep:       rep,
		queue:     lq.Queue(),
		advisor:   lq.Advisor(),
		iface:     lq.Iface(),
		flows:     make([]flow, p.Flows),
		target:    core.ToTicks(p.Target),
		interval:  core.ToTicks(p.Interval),
		l4sTarget: core.ToTicks(p.L4STarget),
	}
	for i := range d.flows {
		d.flows[i].idx = uint32(i)
	}
	core.Log.Debug(d, "Discipline set up", "flows", p.Flows, "limit", p.Limit, "flags", flags)
	return d, nil
}
