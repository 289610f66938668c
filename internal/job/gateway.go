package job

import (
	"context"

	"amequeue/internal/services/ame"
)

// Gateway is the slice of the encoder web service a job needs.
// *ame.Client satisfies it.
type Gateway interface {
	SubmitJob(ctx context.Context, sub ame.Submission) (*ame.SubmitStatus, error)
	JobStatus(ctx context.Context) (*ame.JobStatusSnapshot, error)
	AbortJob(ctx context.Context) error
	JobHistory(ctx context.Context) (*ame.JobHistory, error)
}
