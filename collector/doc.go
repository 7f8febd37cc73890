// Package collector implements the fan-in merge point shared by several
// channels feeding a single consuming net: a mutex+condition-guarded
// aggregate count plus nondeterministic (round-robin) or profiler
// (oldest-timestamp) selection among ready member channels.
//
// A collector is owned by its consuming net, not by any one member
// channel; member channels hold a non-owning reference and must never
// outlive the consumer.
package collector
