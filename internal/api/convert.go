package api

import (
	"time"

	"amequeue/internal/job"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

// FromJobView converts a job view to its API representation.
func FromJobView(v job.View) Job {
	sub := v.Submission
	dto := Job{
		ID:                 v.ID,
		Source:             sub.SourceFilePath,
		Destination:        sub.DestinationPath,
		Preset:             sub.SourcePresetPath,
		NotificationTarget: sub.NotificationTarget,
		State:              string(v.State),
		Lifecycle:          string(v.Lifecycle),
		Detail:             v.Detail,
		RemoteJobID:        v.RemoteJobID(),
		SubmitRetries:      v.SubmitRetries,
		AbortRetries:       v.AbortRetries,
		CreatedAt:          formatTime(v.CreatedAt),
		EndedAt:            formatTime(v.EndedAt),
	}
	if v.HasProgress {
		progress := v.Progress
		dto.Progress = &progress
	}
	if v.SubmitStatus != nil {
		dto.SubmitResult = v.SubmitStatus.ResultText
		if dto.SubmitResult == "" {
			dto.SubmitResult = string(v.SubmitStatus.Result)
		}
	}
	if v.Snapshot != nil {
		dto.Snapshot = FromSnapshot(*v.Snapshot)
	}
	return dto
}

// FromJobs converts jobs into API DTOs, preserving order.
func FromJobs(jobs []*job.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJobView(j.View()))
	}
	return out
}

// FromSnapshot converts an encoder snapshot.
func FromSnapshot(s ame.JobStatusSnapshot) *Snapshot {
	dto := &Snapshot{
		ServerStatus:     string(s.ServerStatus),
		ServerStatusText: s.ServerStatusText,
		JobStatus:        string(s.JobStatus),
		JobStatusText:    s.JobStatusText,
		JobID:            s.JobID,
		Details:          s.Details,
	}
	if value, ok := s.ProgressValue(); ok {
		dto.Progress = &value
	}
	return dto
}

// FromStatusSummary fills the workflow portion of a DaemonStatus.
func FromStatusSummary(summary workflow.StatusSummary) DaemonStatus {
	counts := make(map[string]int, len(summary.Counts))
	for lifecycle, n := range summary.Counts {
		counts[string(lifecycle)] = n
	}
	backlog := summary.Queue.Backlog
	if backlog == nil {
		backlog = []string{}
	}
	return DaemonStatus{
		Accepting: summary.Accepting,
		Queue: QueueStatus{
			State:   string(summary.Queue.State),
			Active:  summary.Queue.Active,
			Backlog: backlog,
			Since:   formatTime(summary.QueueSince),
		},
		Counts:     counts,
		Registered: summary.Registered,
		Server: ServerHealth{
			Status:    summary.Server.Status,
			Ready:     summary.Server.Ready,
			Detail:    summary.Server.Detail,
			CheckedAt: formatTime(summary.Server.CheckedAt),
		},
	}
}

// ToSubmission converts an enqueue request. The preset is taken verbatim;
// resolving catalog names is the server's job.
func (r EnqueueRequest) ToSubmission() ame.Submission {
	return ame.Submission{
		SourceFilePath:           r.Source,
		DestinationPath:          r.Destination,
		SourcePresetPath:         r.Preset,
		OverwriteDestination:     r.Overwrite,
		NotificationTarget:       r.NotificationTarget,
		BackupNotificationTarget: r.BackupNotificationTarget,
		NotificationRateMillis:   r.NotificationRateMillis,
	}
}

// ParseTime parses a timestamp produced by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
