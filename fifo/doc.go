// Package fifo implements the bounded ring buffer shared by all four
// channel disciplines: a fixed-size array of slots addressed by
// head/tail indices modulo the capacity, plus one reserved backup slot used
// by the decoupled-read disciplines.
package fifo
