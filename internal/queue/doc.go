// Package queue sequences encode jobs through the encoder's single slot.
//
// The Sequencer holds a FIFO backlog of jobs that have not started yet and
// activates them one at a time: the head of the backlog is submitted only
// after the previous job published its end-of-life event. Jobs that ended
// while waiting in the backlog (for example because they were aborted) are
// skipped.
//
// The backlog lives in memory only. The workflow manager owns the registry of
// jobs and decides what to enqueue; this package only decides when a job may
// talk to the encoder.
package queue
