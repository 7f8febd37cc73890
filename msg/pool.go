package msg

import (
	"sync"
	"time"
)

// Pool recycles Message structs to avoid an allocation on every producer
// write in hot loops, the same role device/transfer.go's TransferPool plays
// for USB transfers.
type Pool struct {
	pool sync.Pool
}

// NewPool creates an empty message pool.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return &Message{} },
		},
	}
}

// Get returns a recycled Message populated with the given fields, assigning
// it a fresh id. Hooks fall back to the package defaults when nil.
func (p *Pool) Get(typ string, payload any, size int, copyFn CopyFunc, destroyFn DestroyFunc, unpackFn UnpackFunc) *Message {
	m := p.pool.Get().(*Message)
	if copyFn == nil {
		copyFn = DefaultCopy
	}
	if destroyFn == nil {
		destroyFn = DefaultDestroy
	}
	if unpackFn == nil {
		unpackFn = DefaultUnpack
	}
	m.id = nextID()
	m.Type = typ
	m.Payload = payload
	m.Size = size
	m.IsProfiler = false
	m.EnqueuedAt = time.Time{}
	m.copy = copyFn
	m.destroy = destroyFn
	m.unpack = unpackFn
	m.destroyed.Store(false)
	return m
}

// Put returns a destroyed message's struct to the pool. Callers must not
// use m after calling Put.
func (p *Pool) Put(m *Message) {
	if m == nil {
		return
	}
	m.Payload = nil
	p.pool.Put(m)
}
