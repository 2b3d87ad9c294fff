package fqcodel

import (
	"math"

	"github.com/zjkmxy/pktsched/sched/defn"
)

// codel is the per-flow CoDel state (RFC 8289).
type codel struct {
	firstAbove uint64
	dropNext   uint64
	count      uint32
	lastCount  uint32
	dropping   bool
}

func (d *FQCoDel) controlLaw(t uint64, count uint32) uint64 {
	return t + uint64(float64(d.interval)/math.Sqrt(float64(count)))
}

// okToDrop decides whether e has been queued above target for a full
// interval.
func (d *FQCoDel) okToDrop(f *flow, e *entry, now uint64) bool {
	c := &f.codel
	sojourn := now - e.enq
	if sojourn < d.target || f.backlog <= uint32(d.params.Quantum) {
		c.firstAbove = 0
		return false
	}
	if c.firstAbove == 0 {
		c.firstAbove = now + d.interval
		return false
	}
	return now >= c.firstAbove
}

// codelDequeue pops the next packet of f that survives the control law.
func (d *FQCoDel) codelDequeue(f *flow, now uint64) (entry, bool) {
	c := &f.codel
	e, ok := d.pop(f)
	if !ok {
		c.dropping = false
		c.firstAbove = 0
		return entry{}, false
	}

	drop := d.okToDrop(f, &e, now)
	switch {
	case c.dropping:
		if !drop {
			c.dropping = false
			break
		}
		for c.dropping && now >= c.dropNext {
			c.count++
			if d.mark(f, &e) {
				c.dropNext = d.controlLaw(c.dropNext, c.count)
				return e, true
			}
			d.dropEntry(f, &e, defn.ReasonAQM)
			if e, ok = d.pop(f); !ok {
				c.dropping = false
				c.firstAbove = 0
				return entry{}, false
			}
			if !d.okToDrop(f, &e, now) {
				c.dropping = false
			} else {
				c.dropNext = d.controlLaw(c.dropNext, c.count)
			}
		}

	case drop:
		if !d.mark(f, &e) {
			d.dropEntry(f, &e, defn.ReasonAQM)
			if e, ok = d.pop(f); !ok {
				c.firstAbove = 0
				return entry{}, false
			}
			d.okToDrop(f, &e, now)
		}
		c.dropping = true
		c.count = c.reentryCount(now, d.interval)
		c.lastCount = c.count
		c.dropNext = d.controlLaw(now, c.count)
	}
	return e, true
}

// reentryCount is the drop count to start from when dropping resumes.
// A flow that left the dropping state recently keeps its drop rate.
// dropNext may lie ahead of now, so the distance is signed.
func (c *codel) reentryCount(now, interval uint64) uint32 {
	delta := c.count - c.lastCount
	if delta > 1 && int64(now-c.dropNext) < int64(16*interval) {
		return delta
	}
	return 1
}
