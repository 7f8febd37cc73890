// Package runtime owns the global channel/net tables and the
// Init/Run/Stop/Cleanup boot/run/shutdown lifecycle: a pre-initialisation
// barrier that guarantees every net's init completes before any net's
// step begins,
// one goroutine per net and per temporal firewall group supervised
// through an errgroup, and a run-scoped correlation id for logs and
// profiler output.
package runtime
