package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	remoteIDKey  contextKey = "remote_job_id"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the local job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the local job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRemoteJobID annotates context with the identifier the encoding service
// assigned to the job.
func WithRemoteJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, remoteIDKey, id)
}

// RemoteJobIDFromContext returns the remote job identifier if present.
func RemoteJobIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(remoteIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
