package tf

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/pkg"
	"github.com/moiri/streamix-go/profiler"
)

// Pair is one (input, output) channel pair serviced by a Group on every
// tick. CopyMode selects FIFO_D duplicate-on-empty semantics for the
// input read; when false, an empty input yields nothing.
type Pair struct {
	In       *channel.Channel
	Out      *channel.Channel
	CopyMode bool
}

// Group is a temporal firewall group: one goroutine, one time.Ticker,
// many pairs serviced per tick. Deadline- and tick-to-tick-miss events
// are reported through each pair's own channels (whichever profiler sink
// they were constructed with), matching how a channel reports its own
// read/write events.
type Group struct {
	name   string
	period time.Duration
	pairs  []Pair

	missedProduce  atomic.Uint64
	missedConsume  atomic.Uint64
	deadlineMissed atomic.Uint64
}

// New creates a Group with the given tick period. period must be > 0.
func New(name string, period time.Duration) *Group {
	return &Group{name: name, period: period}
}

// AddPair registers one (in, out) pair to be serviced every tick.
func (g *Group) AddPair(in, out *channel.Channel, copyMode bool) {
	g.pairs = append(g.pairs, Pair{In: in, Out: out, CopyMode: copyMode})
}

// Name returns the group's configured name.
func (g *Group) Name() string { return g.name }

// MissedProduce returns the number of ticks on which a pair had nothing
// fresh to forward (input empty, or a duplicate served under copy mode).
func (g *Group) MissedProduce() uint64 { return g.missedProduce.Load() }

// MissedConsume returns the number of ticks on which forwarding a message
// overwrote an unread slot on a pair's output.
func (g *Group) MissedConsume() uint64 { return g.missedConsume.Load() }

// DeadlineMissed returns the number of ticks whose previous deadline had
// already elapsed by the time the ticker fired.
func (g *Group) DeadlineMissed() uint64 { return g.deadlineMissed.Load() }

// Run drives the tick loop until ctx is cancelled. Each tick services
// every registered pair via Tick.
func (g *Group) Run(ctx context.Context) {
	ticker := time.NewTicker(g.period)
	defer ticker.Stop()

	next := time.Now().Add(g.period)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.After(next.Add(g.period / 2)) {
				g.deadlineMissed.Add(1)
				pkg.LogWarn(pkg.ComponentTF, "tick fired after its deadline had already passed",
					"group", g.name)
				for _, p := range g.pairs {
					if p.CopyMode {
						p.In.Emit(profiler.ChanDLMissSrcCp, 0)
					} else {
						p.In.Emit(profiler.ChanDLMissSrc, 0)
					}
					p.Out.Emit(profiler.ChanDLMissSink, 0)
				}
			}
			next = next.Add(g.period)
			g.Tick()
		}
	}
}

// Tick services every registered pair once, non-blocking throughout.
// Exported so tests can drive ticks deterministically instead of waiting
// on a real Ticker.
func (g *Group) Tick() {
	for _, p := range g.pairs {
		g.tickPair(p)
	}
}

func (g *Group) tickPair(p Pair) {
	if p.In.SourceState() == channel.StateUninitialised {
		return
	}

	// inDrained: the producer across the firewall boundary has terminated
	// and nothing more will ever arrive — propagate END forward to the
	// output's source so the downstream consumer unblocks, mirroring the
	// unblock property of a net's own terminate step.
	inDrained := p.In.Count() == 0 && p.In.SourceState() == channel.StateEnd
	// consumerGone: the consumer across the boundary has already
	// terminated — propagate END backward to the input's sink so a
	// producer parked on a full queue unblocks.
	consumerGone := p.Out.SinkState() == channel.StateEnd
	if inDrained || consumerGone {
		if inDrained {
			p.Out.EndSource()
		}
		if consumerGone {
			p.In.EndSink()
		}
		return
	}

	m, duplicated := p.In.RawDequeue(p.CopyMode)
	p.In.MarkSinkReady()

	if m == nil || (p.CopyMode && duplicated) {
		p.Out.ClearCopyCount()
		g.missedProduce.Add(1)
		pkg.LogWarn(pkg.ComponentTF, "missed deadline to produce", "group", g.name)
		if p.CopyMode {
			p.In.Emit(profiler.ChanTTMissSrcCp, 0)
		} else {
			p.In.Emit(profiler.ChanTTMissSrc, 0)
		}
	}
	if m == nil {
		return
	}

	if overwrote := p.Out.RawEnqueueOverwrite(m); overwrote {
		g.missedConsume.Add(1)
		pkg.LogWarn(pkg.ComponentTF, "missed deadline to consume", "group", g.name)
		p.Out.Emit(profiler.ChanTTMissSink, m.ID())
	}
}
