// Command amequeue queues encode jobs for the Adobe Media Encoder web service.
//
// The daemon subcommand runs the long-lived queue with its HTTP API; queue
// subcommands talk to that API. The encode subcommand runs a single job in
// process and renders its progress. The server, job and presets subcommands
// talk to the encoder or read its preset catalogs directly.
package main
