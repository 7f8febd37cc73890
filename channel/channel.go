package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moiri/streamix-go/collector"
	"github.com/moiri/streamix-go/fifo"
	"github.com/moiri/streamix-go/guard"
	"github.com/moiri/streamix-go/msg"
	"github.com/moiri/streamix-go/pkg"
	"github.com/moiri/streamix-go/profiler"
)

// Kind selects a channel's buffering discipline: blocking vs
// overwriting on the writer side, blocking vs duplicating on the reader
// side.
type Kind int

// Channel disciplines.
const (
	KindFIFO    Kind = iota // blocking write, blocking read
	KindFIFOD               // blocking write, decoupled (duplicating) read
	KindDFIFO               // decoupled (overwriting) write, blocking read
	KindDFIFOD              // decoupled write, decoupled read
)

// String returns the discipline name used in log lines and test failures.
func (k Kind) String() string {
	switch k {
	case KindFIFO:
		return "FIFO"
	case KindFIFOD:
		return "FIFO_D"
	case KindDFIFO:
		return "D_FIFO"
	case KindDFIFOD:
		return "D_FIFO_D"
	default:
		return "unknown"
	}
}

func (k Kind) decoupledWrite() bool { return k == KindDFIFO || k == KindDFIFOD }
func (k Kind) decoupledRead() bool  { return k == KindFIFOD || k == KindDFIFOD }

// IsTriggering reports whether a channel of this kind counts toward a
// net's triggering-input total in update_state: only the
// blocking-read disciplines (FIFO, D_FIFO) can trigger termination, since
// a decoupled-read channel never blocks and therefore never "waits" for
// its producer.
func (k Kind) IsTriggering() bool { return !k.decoupledRead() }

// State is the liveness of one channel end.
type State int

// Channel end states. END is absorbing: once an end reaches END it never
// transitions again.
const (
	StateUninitialised State = iota
	StatePending
	StateReady
	StateEnd
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "UNINITIALISED"
	case StatePending:
		return "PENDING"
	case StateReady:
		return "READY"
	case StateEnd:
		return "END"
	default:
		return "unknown"
	}
}

// end is one side of a channel: a liveness state plus the mutex and
// condition variable that let the other side wake it. Each end owns its
// own mutex; no routine ever holds two end-mutexes of different channels
// at once.
type end struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state State
}

func newEnd(initial State) *end {
	e := &end{state: initial}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *end) get() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// set transitions the end to s and wakes any waiter, unless the end has
// already reached END (absorbing).
func (e *end) set(s State) {
	e.mu.Lock()
	if e.state == StateEnd {
		e.mu.Unlock()
		return
	}
	e.state = s
	e.mu.Unlock()
	e.cond.Broadcast()
}

// waitWhilePending blocks while the end is PENDING, using a while-loop
// predicate check so a lost-wakeup race can never leave the caller parked
// forever. It reports whether the end was
// observed at END once the wait exits.
func (e *end) waitWhilePending() (atEnd bool) {
	e.mu.Lock()
	for e.state == StatePending {
		e.cond.Wait()
	}
	atEnd = e.state == StateEnd
	e.mu.Unlock()
	return atEnd
}

var idSeq atomic.Uint64

func nextID() uint64 { return idSeq.Add(1) }

// Channel connects exactly one producer to one consumer (or collector)
// through a bounded FIFO under one of four buffering disciplines. source
// is the consumer-facing gate (its state governs whether Read blocks);
// sink is the producer-facing gate (its state governs whether Write
// blocks). A net's terminate step closes the sink of each of its input
// channels and the source of each of its output channels.
type Channel struct {
	id   uint64
	name string
	kind Kind

	fifo  *fifo.FIFO
	guard *guard.Guard
	coll  *collector.Collector
	prof  profiler.Sink

	source *end
	sink   *end
}

// Option configures optional Channel behavior at construction.
type Option func(*Channel)

// WithGuard attaches a minimum-inter-arrival-time guard to the channel's
// write path.
func WithGuard(iat time.Duration) Option {
	return func(c *Channel) { c.guard = guard.New(iat) }
}

// WithCollector joins the channel to a shared collector, registering it
// as a member. The collector is owned by the consumer net, not by the
// channel.
func WithCollector(coll *collector.Collector) Option {
	return func(c *Channel) {
		c.coll = coll
	}
}

// WithProfiler attaches a profiler sink that receives this channel's
// events. A nil sink (the default) emits nothing.
func WithProfiler(sink profiler.Sink) Option {
	return func(c *Channel) { c.prof = sink }
}

// New creates a Channel of the given kind and FIFO capacity (length must
// be ≥ 1). The source end starts UNINITIALISED for the decoupled-read
// disciplines and PENDING otherwise; the sink end always starts READY.
func New(name string, kind Kind, length int, opts ...Option) *Channel {
	c := &Channel{
		id:   nextID(),
		name: name,
		kind: kind,
		fifo: fifo.New(length),
		prof: profiler.NopSink{},
	}
	initialSource := StatePending
	if kind.decoupledRead() {
		initialSource = StateUninitialised
	}
	c.source = newEnd(initialSource)
	c.sink = newEnd(StateReady)
	for _, opt := range opts {
		opt(c)
	}
	if c.coll != nil {
		c.coll.Join(c)
	}
	return c
}

// ID returns the channel's monotonic identifier.
func (c *Channel) ID() uint64 { return c.id }

// Name returns the channel's configured name.
func (c *Channel) Name() string { return c.name }

// Kind returns the channel's buffering discipline.
func (c *Channel) Kind() Kind { return c.kind }

// Length returns the FIFO's fixed capacity.
func (c *Channel) Length() int { return c.fifo.Length() }

// Count returns the FIFO's current occupancy.
func (c *Channel) Count() int { return c.fifo.Count() }

// SourceState returns the current state of the consumer-facing end.
func (c *Channel) SourceState() State { return c.source.get() }

// SinkState returns the current state of the producer-facing end.
func (c *Channel) SinkState() State { return c.sink.get() }

// Collector returns the collector this channel belongs to, or nil.
func (c *Channel) Collector() *collector.Collector { return c.coll }

func (c *Channel) emit(kind profiler.Kind, messageID uint64) {
	c.prof.Emit(profiler.Event{
		Kind:        kind,
		Timestamp:   time.Now(),
		ChannelID:   c.id,
		ChannelName: c.name,
		MessageID:   messageID,
		Count:       c.fifo.Count(),
	})
}

// Write delivers m to the channel following the channel's write contract.
// On [pkg.ErrWriteAfterEnd] or [pkg.ErrDismissed] the message has already
// been destroyed; the caller must not use it again.
func (c *Channel) Write(m *msg.Message) error {
	if c.sink.get() == StateEnd {
		m.Destroy(true)
		return pkg.ErrWriteAfterEnd
	}

	// Only the blocking-write disciplines (FIFO, FIFO_D) ever wait here: an
	// overwriting writer (D_FIFO, D_FIFO_D) proceeds straight to the
	// discipline's enqueue step regardless of sink state, since a full
	// queue is handled by overwriting the oldest unread slot rather than
	// waiting for room.
	if !c.kind.decoupledWrite() {
		if c.sink.get() == StatePending {
			c.emit(profiler.ChanWriteBlock, m.ID())
		}
		if atEnd := c.sink.waitWhilePending(); atEnd {
			m.Destroy(true)
			return pkg.ErrWriteAfterEnd
		}
	}

	if c.guard != nil {
		if c.kind.decoupledWrite() {
			if c.guard.DismissWrite() {
				m.Destroy(true)
				c.emit(profiler.ChanDismiss, m.ID())
				return pkg.ErrDismissed
			}
		} else if err := c.guard.BlockingWrite(context.Background()); err != nil {
			return err
		}
	}

	fifo.MarkEnqueued(m, time.Now())

	var count int
	if c.kind.decoupledWrite() {
		var overwrote bool
		count, overwrote = c.fifo.EnqueueOverwrite(m)
		if overwrote {
			c.emit(profiler.ChanOverwrite, m.ID())
		}
	} else {
		var ok bool
		count, ok = c.fifo.Enqueue(m)
		if !ok {
			pkg.LogError(pkg.ComponentChannel, "write observed full fifo after sink was ready",
				"channel", c.name)
			return pkg.ErrReadyButFull
		}
	}

	c.emit(profiler.ChanWrite, m.ID())

	if count == c.fifo.Length() {
		c.sink.set(StatePending)
	}
	c.source.set(StateReady)

	if c.coll != nil {
		c.coll.NotifyWrite()
		c.emit(profiler.ChanWriteCollector, m.ID())
	}
	return nil
}

// Read retrieves the next message following the channel's read contract.
// It returns (nil, nil) when there is nothing to deliver: the producer has
// terminated and the FIFO is empty (non-decoupled-read kinds), or a
// decoupled-read kind has never delivered anything. It returns
// [pkg.ErrReadUninitialised] only for a non-decoupled-read channel whose
// source has never seen a write.
func (c *Channel) Read() (*msg.Message, error) {
	if !c.kind.decoupledRead() && c.source.get() == StateUninitialised {
		return nil, pkg.ErrReadUninitialised
	}

	if c.source.get() == StatePending {
		c.emit(profiler.ChanReadBlock, 0)
	}
	if !c.kind.decoupledRead() {
		c.source.waitWhilePending()
	}

	m, duplicated := c.dequeue()
	if m == nil {
		return nil, nil
	}
	if duplicated {
		c.emit(profiler.ChanDuplicate, m.ID())
	}
	c.emit(profiler.ChanRead, m.ID())
	return m, nil
}

// dequeue pops one message per the channel's discipline and applies the
// post-read state transitions.
func (c *Channel) dequeue() (m *msg.Message, duplicated bool) {
	if c.kind.decoupledRead() {
		dup, wasDup, _ := c.fifo.DequeueOrDuplicate()
		if dup == nil {
			return nil, false
		}
		// Decoupled-read disciplines never touch source/sink state on a
		// duplicated read: state transitions only occur for a
		// fresh dequeue from the FIFO proper.
		if !wasDup {
			c.applyReadTransition(c.fifo.Count())
		}
		return dup, wasDup
	}

	msg, newCount, ok := c.fifo.Dequeue()
	if !ok {
		return nil, false
	}
	c.applyReadTransition(newCount)
	return msg, false
}

func (c *Channel) applyReadTransition(newCount int) {
	if newCount == 0 {
		c.source.set(StatePending)
	}
	c.sink.set(StateReady)
}

// Ready implements [collector.Member]: a non-decoupled-read channel is
// ready iff its FIFO holds a message; a decoupled-read channel is ready
// whenever either the FIFO holds a message or a backup from a prior
// delivery exists.
func (c *Channel) Ready() bool {
	if c.fifo.Count() > 0 {
		return true
	}
	return c.kind.decoupledRead() && c.fifo.HasBackup()
}

// HeadTimestamp implements [collector.Member] for the profiler collector's
// oldest-timestamp selection.
func (c *Channel) HeadTimestamp() time.Time { return c.fifo.HeadTimestamp() }

// Dequeue implements [collector.Member]. It performs the same read as
// Read but never returns the ReadUninitialised error, since a collector
// only ever selects a member that Ready reported true for.
func (c *Channel) Dequeue() (*msg.Message, bool) {
	m, duplicated := c.dequeue()
	if m == nil {
		return nil, false
	}
	if duplicated {
		c.emit(profiler.ChanDuplicate, m.ID())
	}
	c.emit(profiler.ChanReadCollector, m.ID())
	return m, true
}

// EndSink transitions the channel's producer-facing end to END, used by
// the consuming net's terminate step to unblock a producer parked on a
// full queue and abort its next write.
func (c *Channel) EndSink() { c.sink.set(StateEnd) }

// EndSource transitions the channel's consumer-facing end to END and, if
// the channel is a collector member, notifies the collector that this
// member's producer has terminated, used by the producing net's
// terminate step to unblock a consumer parked on an empty queue. A
// collector with other still-live members stays READY until every
// member has reported its producer's end.
func (c *Channel) EndSource() {
	c.source.set(StateEnd)
	if c.coll != nil {
		c.coll.NotifyProducerEnd()
	}
}

// Emit reports a profiler event against this channel directly, bypassing
// the internal event shapes Write/Read construct for their own steps.
// Used exclusively by the temporal firewall to report deadline- and
// tick-to-tick-miss events the channel itself never produces.
func (c *Channel) Emit(kind profiler.Kind, messageID uint64) { c.emit(kind, messageID) }

// RawDequeue performs a non-blocking pop directly against the channel's
// FIFO, bypassing the source-end wait entirely: duplicateOnEmpty selects
// FIFO_D semantics (hand back a deep copy of the
// most recently delivered message when the FIFO is empty) instead of
// plain semantics (return nothing on empty, no duplication). Used
// exclusively by the temporal firewall, which schedules its own
// non-blocking I/O independent of a channel's declared kind.
func (c *Channel) RawDequeue(duplicateOnEmpty bool) (m *msg.Message, duplicated bool) {
	if duplicateOnEmpty {
		dup, wasDup, _ := c.fifo.DequeueOrDuplicate()
		if dup == nil {
			return nil, false
		}
		return dup, wasDup
	}
	mm, _, ok := c.fifo.Dequeue()
	if !ok {
		return nil, false
	}
	return mm, false
}

// MarkSinkReady transitions the sink end to READY unconditionally,
// regardless of current state, used by the temporal firewall after every
// tick's read attempt to signal that space has been freed.
func (c *Channel) MarkSinkReady() { c.sink.set(StateReady) }

// RawEnqueueOverwrite performs a non-blocking overwrite-if-full push
// directly against the channel's FIFO, bypassing the sink-end wait
// entirely. Used exclusively by the temporal firewall,
// which always treats its output as overwriting regardless of the
// channel's declared kind.
func (c *Channel) RawEnqueueOverwrite(m *msg.Message) (overwrote bool) {
	fifo.MarkEnqueued(m, time.Now())
	count, overwrote := c.fifo.EnqueueOverwrite(m)
	if count == c.fifo.Length() {
		c.sink.set(StatePending)
	}
	c.source.set(StateReady)
	if c.coll != nil {
		c.coll.NotifyWrite()
	}
	c.emit(profiler.ChanWrite, m.ID())
	return overwrote
}

// Destroy releases every message still held by the channel's FIFO,
// including its backup slot. Called once during runtime teardown after
// every net thread has joined.
func (c *Channel) Destroy() { c.fifo.Destroy() }

// OverwriteCount returns the number of D_* overwrite discards performed.
func (c *Channel) OverwriteCount() uint64 { return c.fifo.OverwriteCount() }

// CopyCount returns the number of decoupled-read backup duplications
// served.
func (c *Channel) CopyCount() uint64 { return c.fifo.CopyCount() }

// ClearCopyCount resets the copy counter, used by the temporal firewall to
// detect "nothing fresh was produced this tick".
func (c *Channel) ClearCopyCount() { c.fifo.ClearCopyCount() }
