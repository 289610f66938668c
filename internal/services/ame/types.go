package ame

import "strings"

// ServerStatus is the encoding server's availability as reported by the service.
type ServerStatus string

const (
	ServerOnline  ServerStatus = "Online"
	ServerOffline ServerStatus = "Offline"
	ServerUnknown ServerStatus = "Unknown"
)

// JobStatus is the remote slot's view of a job.
type JobStatus string

const (
	JobQueued   JobStatus = "Queued"
	JobEncoding JobStatus = "Encoding"
	JobStopped  JobStatus = "Stopped"
	JobPaused   JobStatus = "Paused"
	JobSuccess  JobStatus = "Success"
	JobFailed   JobStatus = "Failed"
	JobNotFound JobStatus = "NotFound"
	JobUnknown  JobStatus = "Unknown"
)

// Terminal reports whether the remote job can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed || s == JobStopped
}

// SubmitResult is the service's verdict on a submission.
type SubmitResult string

const (
	SubmitAccepted  SubmitResult = "Accepted"
	SubmitRejected  SubmitResult = "Rejected"
	SubmitBusy      SubmitResult = "Busy"
	SubmitBadSyntax SubmitResult = "BadSyntax"
	SubmitNoServer  SubmitResult = "NoServer"
	SubmitUnknown   SubmitResult = "Unknown"
)

var serverStatusLookup = map[string]ServerStatus{
	"Online":  ServerOnline,
	"Offline": ServerOffline,
}

var jobStatusLookup = map[string]JobStatus{
	"Queued":    JobQueued,
	"Encoding":  JobEncoding,
	"Stopped":   JobStopped,
	"Paused":    JobPaused,
	"Success":   JobSuccess,
	"Failed":    JobFailed,
	"Not Found": JobNotFound,
}

var submitResultLookup = map[string]SubmitResult{
	"Accepted":  SubmitAccepted,
	"Rejected":  SubmitRejected,
	"Busy":      SubmitBusy,
	"BadSyntax": SubmitBadSyntax,
	"NoServer":  SubmitNoServer,
}

// ParseServerStatus maps a raw ServerStatus text; unrecognised text yields ServerUnknown.
func ParseServerStatus(text string) ServerStatus {
	if status, ok := serverStatusLookup[strings.TrimSpace(text)]; ok {
		return status
	}
	return ServerUnknown
}

// ParseJobStatus maps a raw JobStatus text. The service spells NotFound as
// "Not Found".
func ParseJobStatus(text string) JobStatus {
	if status, ok := jobStatusLookup[strings.TrimSpace(text)]; ok {
		return status
	}
	return JobUnknown
}

// ParseSubmitResult maps a raw SubmitResult text; unrecognised text yields SubmitUnknown.
func ParseSubmitResult(text string) SubmitResult {
	if result, ok := submitResultLookup[strings.TrimSpace(text)]; ok {
		return result
	}
	return SubmitUnknown
}

// Submission describes one encode request. Empty optional strings and nil
// pointers are left out of the manifest.
type Submission struct {
	SourceFilePath           string `json:"source_file_path"`
	DestinationPath          string `json:"destination_path"`
	SourcePresetPath         string `json:"source_preset_path"`
	OverwriteDestination     *bool  `json:"overwrite_destination,omitempty"`
	NotificationTarget       string `json:"notification_target,omitempty"`
	BackupNotificationTarget string `json:"backup_notification_target,omitempty"`
	NotificationRateMillis   *int   `json:"notification_rate_ms,omitempty"`
}

// JobStatusSnapshot is one observation of the remote slot. Snapshots are
// values; callers replace them rather than mutate them.
type JobStatusSnapshot struct {
	ServerStatus     ServerStatus `json:"server_status"`
	ServerStatusText string       `json:"server_status_text,omitempty"`
	JobStatus        JobStatus    `json:"job_status"`
	JobStatusText    string       `json:"job_status_text,omitempty"`
	JobID            string       `json:"job_id,omitempty"`
	Progress         *float64     `json:"progress,omitempty"`
	Details          string       `json:"details,omitempty"`
}

// ProgressValue returns the progress percentage and whether one was reported.
func (s JobStatusSnapshot) ProgressValue() (float64, bool) {
	if s.Progress == nil {
		return 0, false
	}
	return *s.Progress, true
}

// WithProgress returns a copy of s carrying the given progress.
func (s JobStatusSnapshot) WithProgress(value float64) JobStatusSnapshot {
	s.Progress = &value
	return s
}

// Clone returns a deep copy of s.
func (s JobStatusSnapshot) Clone() JobStatusSnapshot {
	if s.Progress != nil {
		value := *s.Progress
		s.Progress = &value
	}
	return s
}

// SubmitStatus is the response to a submission.
type SubmitStatus struct {
	Result     SubmitResult `json:"result"`
	ResultText string       `json:"result_text,omitempty"`
	JobStatusSnapshot
}

// Clone returns a deep copy of s.
func (s SubmitStatus) Clone() SubmitStatus {
	s.JobStatusSnapshot = s.JobStatusSnapshot.Clone()
	return s
}

// ServerInfo is the response to a server status query.
type ServerInfo struct {
	ServerIP         string `json:"server_ip,omitempty"`
	ServerPort       int    `json:"server_port,omitempty"`
	RestartThreshold int    `json:"restart_threshold,omitempty"`
	JobHistorySize   int    `json:"job_history_size,omitempty"`
	JobStatusSnapshot
}

// HistoricJob is one entry of the completed job list.
type HistoricJob struct {
	JobID            string    `json:"job_id"`
	JobStatus        JobStatus `json:"job_status"`
	JobStatusText    string    `json:"job_status_text,omitempty"`
	Details          string    `json:"details,omitempty"`
	SourceFilePath   string    `json:"source_file_path,omitempty"`
	DestinationPath  string    `json:"destination_path,omitempty"`
	SourcePresetPath string    `json:"source_preset_path,omitempty"`
}

// JobHistory is the response to a history query: the current slot plus the
// completed job list, most recent first as delivered by the service.
type JobHistory struct {
	JobStatusSnapshot
	SourceFilePath   string        `json:"source_file_path,omitempty"`
	DestinationPath  string        `json:"destination_path,omitempty"`
	SourcePresetPath string        `json:"source_preset_path,omitempty"`
	Jobs             []HistoricJob `json:"jobs"`
}

// Find returns the first historic job with the given remote id.
func (h *JobHistory) Find(jobID string) (HistoricJob, bool) {
	if h == nil || jobID == "" {
		return HistoricJob{}, false
	}
	for _, job := range h.Jobs {
		if job.JobID == jobID {
			return job, true
		}
	}
	return HistoricJob{}, false
}
