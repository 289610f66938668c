// Package job drives a single encode request through its life on the remote
// encoder: submission with retries, status polling, abort, reconciliation
// against the server's job history and termination.
//
// Each Job is an actor. One goroutine owns the machine and consumes events in
// the order they were posted; handlers raise follow-up events into a local
// FIFO that drains before the next posted event is taken. Gateway calls and
// timers run elsewhere and post their results back, tagged with the state
// entry that issued them so late results from an earlier entry are dropped.
//
// Observers subscribe to progress and end-of-life events. Delivery is
// asynchronous and ordered, and a panicking observer is logged and skipped.
package job
