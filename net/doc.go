// Package net implements a graph node's step-loop lifecycle: a
// user-supplied init/step/cleanup triad wrapped in the core's
// updateState termination logic and terminate broadcast, running on its
// own goroutine with an optional fixed-priority real-time scheduling
// request.
package net
