// Package ame is a stateless client for the Adobe Media Encoder web service.
//
// The service exposes three resources: /server (status, start, stop), /job
// (submit, status, abort) and /history (recently completed jobs). Requests
// and responses are XML; responses share a single <payload> document shape.
// Status texts are mapped onto small vocabularies and anything unrecognised
// becomes Unknown rather than an error.
//
// The client holds no job state. It performs exactly one HTTP round-trip per
// call and reports non-2xx responses, network failures and malformed bodies
// as errors tagged with the services sentinel markers.
package ame
