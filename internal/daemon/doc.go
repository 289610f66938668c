// Package daemon coordinates the long-running amequeue process.
//
// It wires configuration, the workflow manager, the HTTP API, the encoder
// notification callback listener and the cron-driven encoder health monitor
// into a single lifecycle, with flock-based locking to prevent multiple
// instances sharing one log directory. Run blocks until its context is
// cancelled, then drains or aborts outstanding jobs according to
// queue.abort_on_shutdown and releases every resource.
//
// Keep orchestration logic here: job semantics live in internal/job and
// sequencing in internal/queue.
package daemon
