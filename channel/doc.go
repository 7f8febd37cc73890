// Package channel implements the four channel disciplines that connect
// nets: a fixed-capacity [fifo.FIFO] plus two independently tracked
// ends, each with its own mutex and condition variable. A channel
// optionally carries a write guard and optional membership in a
// [collector.Collector] for fan-in merge.
//
// The four [Kind] values differ only in writer-on-full and reader-on-empty
// behavior; Write and Read implement the shared contract once per kind,
// rather than four independent code paths.
package channel
