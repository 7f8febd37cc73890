package rn

import (
	"github.com/moiri/streamix-go/collector"
	"github.com/moiri/streamix-go/msg"
	"github.com/moiri/streamix-go/pkg"
)

// output is the minimal channel surface a Node writes to; [channel.Channel]
// satisfies it, kept narrow here so rn never needs to import channel's
// full API.
type output interface {
	Write(m *msg.Message) error
}

// Node is a routing node: one collector read fanned out to K output
// channels. Writes proceed strictly sequentially; a blocking
// write on output k delays servicing of outputs beyond k but never frees
// the collector read slot until every output has been written.
type Node struct {
	name string
	coll *collector.Collector
	outs []output
}

// New creates a Node reading from coll and writing to outs, in the given
// order. The last element of outs receives the original message; every
// other element receives a deep copy.
func New(name string, coll *collector.Collector, outs ...output) *Node {
	return &Node{name: name, coll: coll, outs: outs}
}

// Route services one collector read. ok reports whether a message was
// routed; ended reports whether the collector has permanently drained
// (no more messages will ever arrive), in which case the caller's owning
// net should terminate.
func (n *Node) Route() (ok, ended bool) {
	has, ended := n.coll.Acquire()
	if !has {
		return false, ended
	}

	member := n.coll.Select()
	if member == nil {
		pkg.LogError(pkg.ComponentRN, "collector reported a message but no member is ready",
			"node", n.name)
		return false, false
	}

	m, dequeued := member.Dequeue()
	if !dequeued {
		pkg.LogError(pkg.ComponentRN, "selected member had no message to dequeue",
			"node", n.name)
		return false, false
	}

	if len(n.outs) == 0 {
		m.Destroy(true)
		return true, false
	}

	last := len(n.outs) - 1
	for i, out := range n.outs {
		var err error
		if i == last {
			err = out.Write(m)
		} else {
			err = out.Write(m.Copy())
		}
		if err != nil {
			pkg.LogWarn(pkg.ComponentRN, "output write failed, continuing fan-out",
				"node", n.name, "output", i, "error", err)
		}
	}
	return true, false
}
