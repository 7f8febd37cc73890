package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/moiri/streamix-go/channel"
	"github.com/moiri/streamix-go/pkg"
	"github.com/moiri/streamix-go/profiler"
)

var idSeq atomic.Uint64

func nextID() uint64 { return idSeq.Add(1) }

// InitFunc runs once before the step loop starts. An error skips the net
// straight to terminate/cleanup and is reported as a fatal status.
type InitFunc func(n *Net) (state any, err error)

// StepFunc runs once per loop iteration. Its return value feeds
// updateState, which decides whether the loop continues.
type StepFunc func(n *Net, state any) pkg.NetStatus

// CleanupFunc runs once after terminate, regardless of how the loop
// exited.
type CleanupFunc func(state any)

// port names one end of a Net's wiring: the core addresses channels
// both positionally by index and logically by name.
type port struct {
	name string
	ch   *channel.Channel
}

// Net wraps a user-supplied init/step/cleanup triad in the core's
// termination bookkeeping. Build one with New, wire its ports
// with AddInput/AddOutput, then hand it to a runtime to run.
type Net struct {
	id   uint64
	name string

	initFn    InitFunc
	stepFn    StepFunc
	cleanupFn CleanupFunc

	ins  []port
	outs []port

	profilerPort *channel.Channel
	prof         profiler.Sink

	priority int

	mu          sync.Mutex
	triggerDone int
}

// Option configures optional Net behavior at construction.
type Option func(*Net)

// WithPriority requests fixed-priority real-time scheduling for the net's
// goroutine. A zero priority (the default) requests the normal
// scheduling policy. The value is clamped to the platform's allowed range
// when the net starts running.
func WithPriority(priority int) Option {
	return func(n *Net) { n.priority = priority }
}

// WithProfiler attaches a profiler sink that receives this net's
// lifecycle events.
func WithProfiler(sink profiler.Sink) Option {
	return func(n *Net) { n.prof = sink }
}

// New creates a Net. init, step, and cleanup must all be non-nil.
func New(name string, init InitFunc, step StepFunc, cleanup CleanupFunc, opts ...Option) *Net {
	n := &Net{
		id:        nextID(),
		name:      name,
		initFn:    init,
		stepFn:    step,
		cleanupFn: cleanup,
		prof:      profiler.NopSink{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ID returns the net's monotonic identifier.
func (n *Net) ID() uint64 { return n.id }

// Name returns the net's configured name.
func (n *Net) Name() string { return n.name }

// AddInput registers ch as a named input.
func (n *Net) AddInput(name string, ch *channel.Channel) {
	n.ins = append(n.ins, port{name: name, ch: ch})
}

// AddOutput registers ch as a named output.
func (n *Net) AddOutput(name string, ch *channel.Channel) {
	n.outs = append(n.outs, port{name: name, ch: ch})
}

// AttachProfilerPort records ch as this net's own profiler event channel,
// returned by ProfilerPort, wired with a direct call instead of a
// declarative attribute lookup. The net itself does not write events to
// ch; its lifecycle events go to the sink given by WithProfiler.
func (n *Net) AttachProfilerPort(ch *channel.Channel) { n.profilerPort = ch }

// ProfilerPort returns the net's profiler event channel, or nil.
func (n *Net) ProfilerPort() *channel.Channel { return n.profilerPort }

// Inputs returns the net's input channels in registration order.
func (n *Net) Inputs() []*channel.Channel { return ports(n.ins) }

// Outputs returns the net's output channels in registration order.
func (n *Net) Outputs() []*channel.Channel { return ports(n.outs) }

func ports(ps []port) []*channel.Channel {
	out := make([]*channel.Channel, len(ps))
	for i, p := range ps {
		out[i] = p.ch
	}
	return out
}

// InputByName returns the named input channel, or [pkg.ErrNoTarget] if no
// input was registered under that name.
func (n *Net) InputByName(name string) (*channel.Channel, error) {
	return byName(n.ins, name)
}

// OutputByName returns the named output channel, or [pkg.ErrNoTarget] if
// no output was registered under that name.
func (n *Net) OutputByName(name string) (*channel.Channel, error) {
	return byName(n.outs, name)
}

func byName(ps []port, name string) (*channel.Channel, error) {
	for _, p := range ps {
		if p.name == name {
			return p.ch, nil
		}
	}
	return nil, pkg.ErrNoTarget
}

func (n *Net) emit(kind profiler.Kind) {
	n.prof.Emit(profiler.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		NetID:     n.id,
		NetName:   n.name,
	})
}

// Run executes the full lifecycle: init, the pre-init barrier wait,
// the step loop, terminate, and cleanup. barrier must be a
// WaitGroup sized to the total number of nets the runtime is starting;
// Run calls barrier.Done() once init returns and then barrier.Wait()
// before entering the step loop, so no net's step runs before every
// net's init has completed. Run applies the net's requested scheduling
// priority to its own goroutine before calling init.
func (n *Net) Run(barrier *sync.WaitGroup) error {
	applyPriority(n.priority)

	state, initErr := n.initFn(n)
	if initErr != nil {
		pkg.LogError(pkg.ComponentNet, "init failed, skipping to terminate",
			"net", n.name, "error", initErr)
	}
	barrier.Done()
	barrier.Wait()

	if initErr == nil {
		n.loop(state)
	}

	n.terminate()
	n.cleanupFn(state)
	n.emit(profiler.NetEnd)

	if initErr != nil {
		return pkg.ErrFatal
	}
	return nil
}

func (n *Net) loop(state any) {
	for {
		n.emit(profiler.NetStart)
		n.emit(profiler.NetStartImpl)
		status := n.stepFn(n, state)
		n.emit(profiler.NetEndImpl)

		status = n.updateState(status)
		if status == pkg.NetContinue {
			continue
		}
		return
	}
}

// updateState decides the next loop status: an explicit CONTINUE/END
// from the step function is returned unchanged; a RETURN defers to the
// triggering-input/drained-output counting rule.
func (n *Net) updateState(status pkg.NetStatus) pkg.NetStatus {
	if status != pkg.NetReturn {
		return status
	}

	triggerCount, doneIn := 0, 0
	for _, p := range n.ins {
		if !p.ch.Kind().IsTriggering() {
			continue
		}
		triggerCount++
		if p.ch.SourceState() == channel.StateEnd && p.ch.Count() == 0 {
			doneIn++
		}
	}
	if triggerCount > 0 && doneIn >= triggerCount {
		return pkg.NetEnd
	}

	doneOut := 0
	for _, p := range n.outs {
		if p.ch.SinkState() == channel.StateEnd {
			doneOut++
		}
	}
	if len(n.outs) > 0 && doneOut >= len(n.outs) {
		return pkg.NetEnd
	}

	return pkg.NetContinue
}

// terminate broadcasts END across every port: each input's sink
// transitions to END, unblocking a producer parked on a full queue; each
// output's source transitions to END, unblocking a consumer parked on an
// empty queue (and notifying its collector that this producer has ended,
// if any).
func (n *Net) terminate() {
	for _, p := range n.ins {
		p.ch.EndSink()
	}
	for _, p := range n.outs {
		p.ch.EndSource()
	}
}
