package pktview

import (
	"fmt"

	"github.com/zjkmxy/pktsched/sched/pkt"
)

// verifyChain checks that tail is reached from head in exactly count hops
// and ends the batch.
func verifyChain(head, tail pkt.Packet, count uint32) error {
	p := head
	for i := uint32(1); i < count; i++ {
		p = next(p)
		if p == nil {
			return fmt.Errorf("chain ends after %d of %d packets", i, count)
		}
	}
	if p != tail {
		return fmt.Errorf("packet %d of the chain is not its tail", count)
	}
	if next(p) != nil {
		return fmt.Errorf("chain continues past its tail")
	}
	return nil
}
