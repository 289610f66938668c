package queue

import "errors"

// ErrClosed is returned by Enqueue once the sequencer stopped accepting jobs.
var ErrClosed = errors.New("queue: sequencer closed")

// ErrDuplicate is returned when a job with the same id is already queued or
// active.
var ErrDuplicate = errors.New("queue: job already queued")
