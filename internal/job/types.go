package job

import (
	"time"

	"amequeue/internal/services/ame"
)

// Lifecycle is the caller-facing status of a job.
type Lifecycle string

const (
	LifecyclePending    Lifecycle = "Pending"
	LifecycleSubmitting Lifecycle = "Submitting"
	LifecycleEncoding   Lifecycle = "Encoding"
	LifecycleAborting   Lifecycle = "Aborting"
	LifecycleAborted    Lifecycle = "Aborted"
	LifecycleFailed     Lifecycle = "Failed"
	LifecycleSucceeded  Lifecycle = "Succeeded"
)

// Terminal reports whether the lifecycle status is final.
func (l Lifecycle) Terminal() bool {
	switch l {
	case LifecycleAborted, LifecycleFailed, LifecycleSucceeded:
		return true
	default:
		return false
	}
}

// Lifecycles lists every lifecycle status in progression order.
func Lifecycles() []Lifecycle {
	return []Lifecycle{
		LifecyclePending,
		LifecycleSubmitting,
		LifecycleEncoding,
		LifecycleAborting,
		LifecycleAborted,
		LifecycleFailed,
		LifecycleSucceeded,
	}
}

// State is the machine's internal state.
type State string

const (
	StatePending            State = "Pending"
	StateSubmitting         State = "Submitting"
	StateWaiting            State = "Waiting"
	StateAborting           State = "Aborting"
	StateReconcilingHistory State = "ReconcilingHistory"
	StateEnded              State = "Ended"
)

// Event is delivered to progress and end-of-life observers. Snapshot is a
// private copy owned by the receiver.
type Event struct {
	JobID     string
	Lifecycle Lifecycle
	Detail    string
	JobStatus ame.JobStatus
	// Progress is meaningful only when HasProgress is set.
	Progress    float64
	HasProgress bool
	Snapshot    *ame.JobStatusSnapshot
	Final       bool
	At          time.Time
}

// View is a point-in-time copy of a job's observable state.
type View struct {
	ID            string
	Submission    ame.Submission
	State         State
	Lifecycle     Lifecycle
	Detail        string
	Progress      float64
	HasProgress   bool
	SubmitStatus  *ame.SubmitStatus
	Snapshot      *ame.JobStatusSnapshot
	SubmitRetries int
	AbortRetries  int
	CreatedAt     time.Time
	EndedAt       time.Time
}

// RemoteJobID returns the id the encoder assigned, if any.
func (v View) RemoteJobID() string {
	if v.SubmitStatus == nil {
		return ""
	}
	return v.SubmitStatus.JobID
}
