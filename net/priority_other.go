//go:build !linux

package net

import "github.com/moiri/streamix-go/pkg"

// applyPriority is a no-op on platforms without a SCHED_FIFO equivalent
// wired in; the net runs at its goroutine's default scheduling priority.
func applyPriority(priority int) {
	if priority != 0 {
		pkg.LogWarn(pkg.ComponentNet, "real-time priority requested but not supported on this platform",
			"requested", priority)
	}
}
