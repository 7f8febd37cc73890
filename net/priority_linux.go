//go:build linux

package net

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/moiri/streamix-go/pkg"
)

// applyPriority requests SCHED_FIFO real-time scheduling for the calling
// goroutine's OS thread at the given priority, clamped between the
// platform's allowed min and max. A zero priority is a no-op: the
// goroutine keeps the default scheduling policy and stays free to
// migrate between OS threads.
func applyPriority(priority int) {
	if priority == 0 {
		return
	}

	runtime.LockOSThread()

	min, err := unix.SchedGetPriorityMin(unix.SCHED_FIFO)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNet, "sched_get_priority_min failed", "error", err)
		return
	}
	max, err := unix.SchedGetPriorityMax(unix.SCHED_FIFO)
	if err != nil {
		pkg.LogWarn(pkg.ComponentNet, "sched_get_priority_max failed", "error", err)
		return
	}

	clamped := priority
	if clamped < min {
		clamped = min
	}
	if clamped > max {
		clamped = max
	}

	param := &unix.SchedParam{Priority: int32(clamped)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_FIFO, param); err != nil {
		pkg.LogWarn(pkg.ComponentNet, "sched_setscheduler failed, continuing at default priority",
			"requested", priority, "error", err)
	}
}
