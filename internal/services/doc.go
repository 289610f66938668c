// Package services defines shared utilities consumed by the job state machine,
// the workflow manager and the external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp local job IDs, remote job IDs and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so gateway and API failures
//     can be classified (retryable vs not) without string matching.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
