// Package tf implements the temporal firewall group: one goroutine,
// driven by a single time.Ticker, servicing many (in,out)
// channel pairs per tick. Every operation it performs is non-blocking, so
// one pair's producer or consumer stalling can never stall another pair
// multiplexed on the same tick.
package tf
