// Package workflow owns the encode jobs of a running amequeue instance.
//
// The Manager creates jobs from submissions, hands them to the queue
// sequencer so only one talks to the encoder at a time, and keeps a registry
// of live jobs plus a bounded tail of finished ones for the API and CLI. It
// logs sampled job progress, publishes notifications when jobs end or the
// queue drains, and aborts outstanding work on shutdown when configured to.
//
// Everything here is in memory. Restarting the daemon forgets finished jobs;
// the encoder's own history remains available through the gateway.
package workflow
