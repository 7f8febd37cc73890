package msg

import (
	"sync/atomic"
	"time"

	"github.com/moiri/streamix-go/pkg"
)

// idSeq is the process-wide monotonic message id counter, kept as a
// sync/atomic counter since nets run as concurrent goroutines.
var idSeq atomic.Uint64

func nextID() uint64 {
	return idSeq.Add(1)
}

// CopyFunc deep-copies a payload of the given size, returning the copy.
type CopyFunc func(payload any, size int) any

// DestroyFunc releases a payload's resources. It is invoked at most once
// per Message.
type DestroyFunc func(payload any)

// UnpackFunc returns a consumer-facing view of a payload, by default the
// payload itself unchanged.
type UnpackFunc func(payload any) any

// Message is an opaque payload with copy/destroy/unpack hooks and a
// monotonically assigned identifier.
type Message struct {
	id         uint64
	Type       string
	Payload    any
	Size       int
	IsProfiler bool
	EnqueuedAt time.Time

	copy    CopyFunc
	destroy DestroyFunc
	unpack  UnpackFunc

	destroyed atomic.Bool
}

// New creates a message wrapping payload, assigning it a fresh id. A nil
// copyFn, destroyFn, or unpackFn falls back to the package defaults
// (DefaultCopy, DefaultDestroy, DefaultUnpack).
func New(typ string, payload any, size int, copyFn CopyFunc, destroyFn DestroyFunc, unpackFn UnpackFunc) *Message {
	if copyFn == nil {
		copyFn = DefaultCopy
	}
	if destroyFn == nil {
		destroyFn = DefaultDestroy
	}
	if unpackFn == nil {
		unpackFn = DefaultUnpack
	}
	m := &Message{
		id:      nextID(),
		Type:    typ,
		Payload: payload,
		Size:    size,
		copy:    copyFn,
		destroy: destroyFn,
		unpack:  unpackFn,
	}
	pkg.LogDebug(pkg.ComponentMsg, "create message", "id", m.id, "type", typ)
	return m
}

// ID returns the message's monotonic identifier.
func (m *Message) ID() uint64 { return m.id }

// Copy produces a deep copy of m via its copy hook, assigning the copy a
// fresh id: every copy is itself a newly numbered message, distinct from
// its source.
func (m *Message) Copy() *Message {
	pkg.LogDebug(pkg.ComponentMsg, "copy start", "id", m.id)
	payload := m.copy(m.Payload, m.Size)
	c := &Message{
		id:         nextID(),
		Type:       m.Type,
		Payload:    payload,
		Size:       m.Size,
		IsProfiler: m.IsProfiler,
		copy:       m.copy,
		destroy:    m.destroy,
		unpack:     m.unpack,
	}
	pkg.LogDebug(pkg.ComponentMsg, "copy end", "id", m.id, "new_id", c.id)
	return c
}

// Unpack returns the consumer-facing view of the payload.
func (m *Message) Unpack() any {
	return m.unpack(m.Payload)
}

// Destroy runs the destroy hook on the payload exactly once. When deep is
// false the hook is skipped and only the message itself is retired (used
// when a consumer only borrowed the payload view and another owner
// remains responsible for it).
func (m *Message) Destroy(deep bool) {
	if !m.destroyed.CompareAndSwap(false, true) {
		return
	}
	if deep && m.destroy != nil {
		m.destroy(m.Payload)
	}
	pkg.LogDebug(pkg.ComponentMsg, "destroy", "id", m.id, "deep", deep)
}

// DefaultCopy deep-copies []byte payloads; any other payload type is
// returned unchanged (a shallow alias).
func DefaultCopy(payload any, _ int) any {
	if b, ok := payload.([]byte); ok {
		cp := make([]byte, len(b))
		copy(cp, b)
		return cp
	}
	return payload
}

// DefaultDestroy is a no-op: Go payloads are garbage collected, so the
// default destroy hook exists only to preserve the call site contract
// (user hooks that wrap external resources replace it).
func DefaultDestroy(_ any) {}

// DefaultUnpack returns the payload unchanged.
func DefaultUnpack(payload any) any { return payload }
