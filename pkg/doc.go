// Package pkg provides shared utilities for the streamix dataflow runtime.
//
// This package contains common functionality used across channels, the
// net lifecycle, and the runtime boot sequence, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for the core error taxonomy
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with runtime-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentNet, "net started", "id", 1)
//
// # Errors
//
// Core errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrWriteAfterEnd) {
//	    // sink has terminated, stop producing
//	}
package pkg
