// Package rn implements the routing node: a fan-in/fan-out
// synchroniser that reads one message from a collector and writes it to
// every output channel, deep-copying to all but the last so each
// downstream consumer owns an independent message.
package rn
