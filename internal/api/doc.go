// Package api defines the wire-format types of the daemon's HTTP API and a
// client for it.
//
// # Key Types
//
// Job: transport representation of a queued or finished encode job with its
// lifecycle status, progress and last encoder snapshot.
//
// EnqueueRequest: body of POST /api/jobs. The preset may be a preset file
// path or a name from the preset catalog.
//
// DaemonStatus: queue state, per-status job counts and the last encoder
// health probe.
//
// # Converters
//
// FromJobView: job.View -> Job.
//
// FromStatusSummary: workflow.StatusSummary -> DaemonStatus fields.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Lifecycle and encoder statuses are passed
// through as their string values. Timestamps use RFC3339 with milliseconds.
package api
