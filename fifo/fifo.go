package fifo

import (
	"sync"
	"time"

	"github.com/moiri/streamix-go/msg"
)

// FIFO is a fixed-capacity ring buffer of message slots plus one backup
// slot for the decoupled-read disciplines. It knows
// nothing about channel ends or liveness state; callers translate the
// counts it returns into end-state transitions.
type FIFO struct {
	mu    sync.Mutex
	slots []*msg.Message
	head  int
	count int

	backup *msg.Message

	overwriteCount uint64
	copyCount      uint64
}

// New creates a FIFO with the given capacity. length must be ≥ 1.
func New(length int) *FIFO {
	if length < 1 {
		length = 1
	}
	return &FIFO{slots: make([]*msg.Message, length)}
}

// Length returns the FIFO's fixed capacity.
func (f *FIFO) Length() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots)
}

// Count returns the number of occupied slots.
func (f *FIFO) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// OverwriteCount returns the number of D_* overwrites performed so far.
func (f *FIFO) OverwriteCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overwriteCount
}

// CopyCount returns the number of backup duplications served so far.
func (f *FIFO) CopyCount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.copyCount
}

// ClearCopyCount resets the copy counter to zero. Used by the temporal
// firewall to detect whether a fresh message arrived this tick.
func (f *FIFO) ClearCopyCount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copyCount = 0
}

func (f *FIFO) tailIndex() int {
	return (f.head + f.count - 1 + len(f.slots)) % len(f.slots)
}

func (f *FIFO) nextIndex() int {
	return (f.head + f.count) % len(f.slots)
}

// Enqueue appends m at the tail. It reports ok=false without modifying
// state if the FIFO is already full — blocking disciplines must never
// call Enqueue on a full FIFO (the channel contract keeps the writer
// waiting until there is space); this return exists to surface a logic
// error rather than to be a normal control path.
func (f *FIFO) Enqueue(m *msg.Message) (newCount int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == len(f.slots) {
		return f.count, false
	}
	f.slots[f.nextIndex()] = m
	f.count++
	return f.count, true
}

// EnqueueOverwrite appends m if there is space, otherwise discards the
// oldest unread message (the head), destroys it, and appends m as the new
// tail, so the queue keeps the most recent writes in arrival order.
func (f *FIFO) EnqueueOverwrite(m *msg.Message) (newCount int, overwrote bool) {
	f.mu.Lock()
	if f.count < len(f.slots) {
		f.slots[f.nextIndex()] = m
		f.count++
		f.mu.Unlock()
		return f.count, false
	}
	idx := f.head
	old := f.slots[idx]
	f.slots[idx] = m
	f.head = (f.head + 1) % len(f.slots)
	f.overwriteCount++
	count := f.count
	f.mu.Unlock()
	if old != nil {
		old.Destroy(true)
	}
	return count, true
}

// Dequeue pops the head message. It is used directly by the FIFO and
// D_FIFO disciplines, and by the temporal firewall's non-copy mode, which
// never touches the backup slot.
func (f *FIFO) Dequeue() (m *msg.Message, newCount int, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == 0 {
		return nil, 0, false
	}
	m = f.slots[f.head]
	f.slots[f.head] = nil
	f.head = (f.head + 1) % len(f.slots)
	f.count--
	if m != nil {
		m.EnqueuedAt = time.Time{}
	}
	return m, f.count, true
}

// DequeueOrDuplicate pops the head message and updates the backup to a
// fresh deep copy of it, or, if the FIFO is empty, hands back a deep copy
// of the existing backup (incrementing the copy counter). It reports
// duplicated=true in the latter case. Used by the FIFO_D and D_FIFO_D
// disciplines and by the temporal firewall's copy mode.
func (f *FIFO) DequeueOrDuplicate() (m *msg.Message, duplicated bool, newCount int) {
	f.mu.Lock()
	if f.count > 0 {
		mm := f.slots[f.head]
		f.slots[f.head] = nil
		f.head = (f.head + 1) % len(f.slots)
		f.count--
		oldBackup := f.backup
		f.backup = mm.Copy()
		count := f.count
		f.mu.Unlock()
		if oldBackup != nil {
			oldBackup.Destroy(true)
		}
		return mm, false, count
	}
	if f.backup == nil {
		f.mu.Unlock()
		return nil, false, 0
	}
	dup := f.backup.Copy()
	f.copyCount++
	f.mu.Unlock()
	return dup, true, 0
}

// HeadTimestamp returns the enqueue time of the head-of-queue message, used
// by the profiler collector's oldest-timestamp merge strategy. The zero
// Time is returned when the FIFO is empty.
func (f *FIFO) HeadTimestamp() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count == 0 {
		return time.Time{}
	}
	if m := f.slots[f.head]; m != nil {
		return m.EnqueuedAt
	}
	return time.Time{}
}

// MarkEnqueued stamps m with the current time, enabling HeadTimestamp
// lookups. Channel.Write calls this right before Enqueue/EnqueueOverwrite.
func MarkEnqueued(m *msg.Message, at time.Time) {
	m.EnqueuedAt = at
}

// Destroy releases every message still held by the FIFO, including the
// backup slot, with deep destroy semantics. Called when a channel is torn
// down.
func (f *FIFO) Destroy() {
	f.mu.Lock()
	slots := f.slots
	backup := f.backup
	f.backup = nil
	f.slots = make([]*msg.Message, len(slots))
	f.head = 0
	f.count = 0
	f.mu.Unlock()

	for _, m := range slots {
		if m != nil {
			m.Destroy(true)
		}
	}
	if backup != nil {
		backup.Destroy(true)
	}
}

// HasBackup reports whether a backup message exists from a prior
// decoupled-read delivery, used by the collector's readiness check: for
// decoupled-read kinds, readiness is always at least 1 once a backup
// exists.
func (f *FIFO) HasBackup() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.backup != nil
}
