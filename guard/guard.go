// Package guard implements the per-channel minimum-inter-arrival-time
// enforcer, using plain time.Time bookkeeping: the blocking variant
// parks the caller until the interval has elapsed, the dismissing
// variant rejects the write outright.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/moiri/streamix-go/pkg"
)

// Guard enforces a minimum inter-arrival time on a channel's write path.
type Guard struct {
	mu          sync.Mutex
	iat         time.Duration
	nextAllowed time.Time
	missed      uint64
}

// New creates a guard with the given minimum inter-arrival interval. The
// first write is never delayed.
func New(iat time.Duration) *Guard {
	return &Guard{iat: iat, nextAllowed: time.Now()}
}

// Missed returns the number of times a write observed the guard interval
// already elapsed by more than one full period, i.e. a rearm the caller
// never showed up in time to consume. Reported but does not change
// semantics.
func (g *Guard) Missed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.missed
}

// BlockingWrite parks the caller until the configured interval since the
// previous release has elapsed, then rearms for the next interval. Used by
// the FIFO and FIFO_D disciplines.
func (g *Guard) BlockingWrite(ctx context.Context) error {
	g.mu.Lock()
	wait := time.Until(g.nextAllowed)
	if wait < -g.iat {
		g.missed++
	}
	g.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	g.nextAllowed = time.Now().Add(g.iat)
	g.mu.Unlock()
	pkg.LogDebug(pkg.ComponentGuard, "guard released write", "iat", g.iat)
	return nil
}

// DismissWrite reports whether a write arriving right now must be
// dismissed because the interval has not yet elapsed. When it returns
// false, the guard has been rearmed and the caller should proceed with the
// write. Used by the D_FIFO and D_FIFO_D disciplines.
func (g *Guard) DismissWrite() (dismissed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Before(g.nextAllowed) {
		return true
	}
	g.nextAllowed = now.Add(g.iat)
	return false
}
