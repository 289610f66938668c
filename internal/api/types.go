package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Snapshot mirrors an encoder job status report.
type Snapshot struct {
	ServerStatus     string   `json:"serverStatus"`
	ServerStatusText string   `json:"serverStatusText,omitempty"`
	JobStatus        string   `json:"jobStatus"`
	JobStatusText    string   `json:"jobStatusText,omitempty"`
	JobID            string   `json:"jobId,omitempty"`
	Progress         *float64 `json:"progress,omitempty"`
	Details          string   `json:"details,omitempty"`
}

// Job describes a queue entry in a transport-friendly format.
type Job struct {
	ID                 string    `json:"id"`
	Source             string    `json:"source"`
	Destination        string    `json:"destination"`
	Preset             string    `json:"preset"`
	NotificationTarget string    `json:"notificationTarget,omitempty"`
	State              string    `json:"state"`
	Lifecycle          string    `json:"lifecycle"`
	Detail             string    `json:"detail,omitempty"`
	Progress           *float64  `json:"progress,omitempty"`
	RemoteJobID        string    `json:"remoteJobId,omitempty"`
	SubmitResult       string    `json:"submitResult,omitempty"`
	Snapshot           *Snapshot `json:"snapshot,omitempty"`
	SubmitRetries      int       `json:"submitRetries"`
	AbortRetries       int       `json:"abortRetries"`
	CreatedAt          string    `json:"createdAt,omitempty"`
	EndedAt            string    `json:"endedAt,omitempty"`
}

// Finished reports whether the job reached a terminal lifecycle status.
func (j Job) Finished() bool {
	switch j.Lifecycle {
	case "Succeeded", "Failed", "Aborted":
		return true
	default:
		return false
	}
}

// EnqueueRequest is the body of POST /api/jobs.
type EnqueueRequest struct {
	ID                       string `json:"id,omitempty"`
	Source                   string `json:"source"`
	Destination              string `json:"destination"`
	Preset                   string `json:"preset"`
	Overwrite                *bool  `json:"overwrite,omitempty"`
	NotificationTarget       string `json:"notificationTarget,omitempty"`
	BackupNotificationTarget string `json:"backupNotificationTarget,omitempty"`
	NotificationRateMillis   *int   `json:"notificationRateMillis,omitempty"`
}

// QueueStatus summarizes the sequencer.
type QueueStatus struct {
	State   string   `json:"state"`
	Active  string   `json:"active,omitempty"`
	Backlog []string `json:"backlog"`
	Since   string   `json:"since,omitempty"`
}

// ServerHealth mirrors the last encoder probe.
type ServerHealth struct {
	Status    string `json:"status,omitempty"`
	Ready     bool   `json:"ready"`
	Detail    string `json:"detail,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LockFilePath string         `json:"lockFilePath"`
	GatewayURL   string         `json:"gatewayUrl"`
	CallbackURL  string         `json:"callbackUrl,omitempty"`
	Accepting    bool           `json:"accepting"`
	Queue        QueueStatus    `json:"queue"`
	Counts       map[string]int `json:"counts"`
	Registered   int            `json:"registered"`
	Server       ServerHealth   `json:"server"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
