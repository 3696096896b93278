// Package logging assembles structured slog loggers and formatting helpers used
// across mvsync.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so reconcile code can tag log
// lines with run identifiers and phases. Each run writes an append-only file
// in the log directory; a stable mvsync.log pointer always names the current
// one so tailing collaborators need no knowledge of run stamps. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
