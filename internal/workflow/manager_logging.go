package workflow

import (
	"amequeue/internal/job"
	"amequeue/internal/logging"
)

const progressBucket = 10

// trackProgress logs job progress when the remote status changes or the
// percentage crosses a bucket boundary.
func (m *Manager) trackProgress(j *job.Job) {
	sampler := logging.NewProgressSampler(progressBucket)
	logger := m.logger.With(logging.String(logging.FieldJobID, j.ID()))
	j.OnProgress(func(ev job.Event) {
		if ev.Final {
			return
		}
		percent := -1.0
		if ev.HasProgress {
			percent = ev.Progress
		}
		status := string(ev.Lifecycle)
		if ev.JobStatus != "" {
			status += "/" + string(ev.JobStatus)
		}
		if !sampler.ShouldLog(percent, status) {
			return
		}
		attrs := []logging.Attr{
			logging.String("lifecycle", string(ev.Lifecycle)),
			logging.String(logging.FieldEventType, "job_progress"),
		}
		if ev.JobStatus != "" {
			attrs = append(attrs, logging.String("job_status", string(ev.JobStatus)))
		}
		if ev.HasProgress {
			attrs = append(attrs, logging.Float64("progress", ev.Progress))
		}
		if ev.Detail != "" {
			attrs = append(attrs, logging.String("detail", ev.Detail))
		}
		logger.Info("job progress", logging.Args(attrs...)...)
	})
}
