// Package pkg provides shared utilities for the xspi controller stack.
//
// This package contains common functionality used by the host controller,
// its HAL backends and the command-line tools, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors for the controller error taxonomy
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentController, "controller ready", "version", ver)
//
// # Errors
//
// Controller failures are reported as sentinel values, usually wrapped with
// context:
//
//	if errors.Is(err, pkg.ErrBusy) {
//	    // Controller owned by another device; retry later
//	}
package pkg
