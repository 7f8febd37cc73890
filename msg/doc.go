// Package msg implements the runtime's message type: an opaque payload
// carrying user-supplied copy, destroy, and unpack hooks plus a
// monotonically assigned identifier.
//
// A Message has exactly one owner at a time as it travels along a channel:
// the producer before write, the FIFO between write and read, and the
// consumer after read. Destroy must run the destroy hook exactly once
// across a message's lifetime, including overwrite, dismiss, and
// backup-replacement paths; Message enforces that with an atomic flag
// rather than trusting callers to single-source the call.
package msg
