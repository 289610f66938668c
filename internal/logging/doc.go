// Package logging assembles structured slog loggers and formatting helpers used
// across amequeue.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so job code can tag log lines
// with local job ids, remote job ids and correlation ids. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
