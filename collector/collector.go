package collector

import (
	"sync"
	"time"

	"github.com/moiri/streamix-go/msg"
)

// State reports a collector's externally observable liveness: READY iff
// count>0 or any producer is still live; END iff every producer has ended
// and count has drained to zero.
type State int

// Collector states.
const (
	StateReady State = iota
	StateEnd
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == StateEnd {
		return "END"
	}
	return "READY"
}

// Member is a channel that has joined a collector. Channel
// implements this interface; collector never constructs a Message itself,
// it only selects which member to read from.
type Member interface {
	// ID uniquely identifies the member channel, used to tie-break the
	// profiler collector's oldest-timestamp selection.
	ID() uint64
	// Ready reports whether the member currently has something a read
	// would return without blocking: a non-decoupled-read member reports
	// FIFO count > 0; a decoupled-read member also reports true whenever a
	// backup exists, since a read on it always returns something once any
	// message has ever been delivered.
	Ready() bool
	// HeadTimestamp returns the enqueue time of the head-of-FIFO message,
	// used only by the profiler collector's selection order. Zero Time
	// when the FIFO is empty.
	HeadTimestamp() time.Time
	// Dequeue performs one channel read following the channel's read contract.
	Dequeue() (*msg.Message, bool)
}

// Collector aggregates several channels feeding one consuming net, merging
// their readiness into a single wait point. It is owned by the
// consumer net; member channels hold a non-owning reference.
type Collector struct {
	mu   sync.Mutex
	cond *sync.Cond

	profiler bool

	count         int
	liveProducers int
	ended         bool

	members    []Member
	lastServed int
}

// New creates a Collector. When profilerMode is true, Select picks the
// member whose head-of-FIFO message is oldest instead of rotating fairly.
func New(profilerMode bool) *Collector {
	c := &Collector{profiler: profilerMode, lastServed: -1}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Join registers a member channel and counts it as one live producer. Call
// this once per member at boot, before the collector is read from.
func (c *Collector) Join(m Member) {
	c.mu.Lock()
	c.members = append(c.members, m)
	c.liveProducers++
	c.mu.Unlock()
}

// NotifyWrite records that a member delivered one message. Called by
// Channel.Write under its own critical section, as part of the write path.
func (c *Collector) NotifyWrite() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	c.cond.Broadcast()
}

// NotifyProducerEnd records that one member's producer has terminated. The
// collector transitions to END only once every producer has ended and the
// count has drained to zero — a single member's producer terminating does
// not end the collector while any other member is still live.
func (c *Collector) NotifyProducerEnd() {
	c.mu.Lock()
	if c.liveProducers > 0 {
		c.liveProducers--
	}
	if c.liveProducers == 0 && c.count == 0 {
		c.ended = true
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// ForceEnd transitions the collector to END unconditionally, regardless of
// live-producer count, and signals the collector condition so a blocked
// Acquire unblocks. Nothing in this module calls it; a net's terminate
// step ends a collector only through NotifyProducerEnd.
func (c *Collector) ForceEnd() {
	c.mu.Lock()
	c.ended = true
	c.mu.Unlock()
	c.cond.Broadcast()
}

// State reports the collector's current liveness.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return StateEnd
	}
	return StateReady
}

// Count returns the aggregate unread-message count across members.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Acquire blocks until a message is available or the collector has ended.
// hasMessage is true iff the caller should proceed to
// Select and Read; when hasMessage is false, ended reports whether the
// collector is permanently drained.
func (c *Collector) Acquire() (hasMessage, ended bool) {
	c.mu.Lock()
	for c.count == 0 && !c.ended {
		c.cond.Wait()
	}
	if c.count > 0 {
		c.count--
		if c.count == 0 && c.liveProducers == 0 {
			c.ended = true
		}
		c.mu.Unlock()
		return true, false
	}
	c.mu.Unlock()
	return false, true
}

// Select picks the member channel to read from after Acquire reports a
// message is available: fair round-robin starting just
// after the last-served member, or oldest-timestamp-first with a
// lower-id tie-break for a profiler collector. It returns nil if no member
// currently reports Ready — an internal invariant violation (the count
// said a message was available) that callers should treat as
// pkg.ErrReadyButEmpty.
func (c *Collector) Select() Member {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := len(c.members)
	if m == 0 {
		return nil
	}

	if c.profiler {
		var best Member
		var bestTS time.Time
		for _, mem := range c.members {
			if !mem.Ready() {
				continue
			}
			ts := mem.HeadTimestamp()
			if best == nil || ts.Before(bestTS) || (ts.Equal(bestTS) && mem.ID() < best.ID()) {
				best, bestTS = mem, ts
			}
		}
		return best
	}

	start := (c.lastServed + 1) % m
	for i := 0; i < m; i++ {
		idx := (start + i) % m
		if c.members[idx].Ready() {
			c.lastServed = idx
			return c.members[idx]
		}
	}
	return nil
}
