// Package profiler defines the event taxonomy the core emits for nets,
// channels, and messages, plus the [Sink] interface an externally
// supplied profiler net implements to receive them. Emission is
// best-effort and non-blocking: a full or nil sink never slows down the
// core operation that triggered the event.
//
// Package profiler/promsink provides a concrete [Sink] that turns events
// into a Prometheus event counter and a FIFO-occupancy gauge, exercising an externally
// supplied profiler net without pulling profiler transport into the core
// itself.
package profiler
