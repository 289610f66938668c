package job

import (
	"context"
	"fmt"
	"time"

	"amequeue/internal/logging"
	"amequeue/internal/services/ame"
)

const (
	neverSubmittedDetail      = "(Job was never submitted to the server)"
	abortedDetail             = "Aborted upon request"
	abortedBeforeAcceptDetail = "Aborted before the encoder accepted the job"
)

func (j *Job) remoteID() string {
	if j.submitStatus == nil {
		return ""
	}
	return j.submitStatus.JobID
}

// Submitting

func (j *Job) enterSubmitting() {
	j.setLifecycle(LifecycleSubmitting, attemptsDetail(j.submitRetry.remaining()))
	j.logger.Info("submitting job",
		logging.String("source", j.submission.SourceFilePath),
		logging.String("destination", j.submission.DestinationPath),
		logging.String(logging.FieldEventType, "submit"),
	)
	sub := j.submission
	j.call(evSubmitResponse, func(ctx context.Context) event {
		status, err := j.gateway.SubmitJob(ctx, sub)
		return event{submit: status, err: err}
	})
}

func (j *Job) onSubmitResponse(ev event) {
	if ev.err != nil {
		j.logger.Warn("submit failed", logging.Error(ev.err), logging.String(logging.FieldEventType, "submit_error"))
		j.retrySubmit(false, fmt.Sprintf("Error submitting job: %v", ev.err))
		return
	}
	if ev.submit == nil {
		j.retrySubmit(false, "Empty submit response")
		return
	}
	status := ev.submit.Clone()
	j.mu.Lock()
	j.submitStatus = &status
	j.mu.Unlock()

	j.logger.Info("submit response",
		logging.String("result", status.ResultText),
		logging.String(logging.FieldRemoteJobID, status.JobID),
	)

	switch status.Result {
	case ame.SubmitAccepted:
		j.setDetail("Accepted by the encoder")
		j.raise(evAccepted)
	case ame.SubmitBadSyntax:
		j.setDetail("Encoder rejected the job as bad syntax")
		j.raise(evRejected)
	case ame.SubmitBusy, ame.SubmitNoServer:
		j.retrySubmit(true, fmt.Sprintf("Encoder reported %s", status.ResultText))
	default:
		reason := fmt.Sprintf("Encoder reported %s", status.ResultText)
		if status.Result == ame.SubmitUnknown {
			reason = fmt.Sprintf("Unrecognised submit result %q", status.ResultText)
		}
		j.retrySubmit(false, reason)
	}
}

// retrySubmit schedules another submission. Busy and NoServer retries do not
// count against the bounded retry budget.
func (j *Job) retrySubmit(unbounded bool, reason string) {
	policy := j.submitRetry
	if unbounded {
		policy = j.busyRetry
	}
	delay, ok := policy.next()
	if !ok {
		j.setDetail(fmt.Sprintf("Exceeded submit retry limit: %s", reason))
		j.logger.Error("submit retries exhausted",
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "submit_exhausted"),
			logging.String(logging.FieldErrorHint, "check the encoder is running and accepting jobs"),
		)
		j.emit(true)
		j.raise(evFailed)
		return
	}
	if !unbounded {
		j.mu.Lock()
		j.submitTries = j.submitRetry.used
		j.mu.Unlock()
	}
	detail := fmt.Sprintf("%s; retrying submit in %s (%s)", reason, delay, attemptsDetail(j.submitRetry.remaining()))
	j.setLifecycle(LifecyclePending, detail)
	j.logger.Info("submit retry scheduled",
		logging.String("reason", reason),
		logging.Duration("delay", delay),
		logging.Bool("counted", !unbounded),
		logging.String(logging.FieldEventType, "submit_retry"),
	)
	j.emit(true)
	j.schedule(delay, evSubmit)
}

// Waiting

func (j *Job) enterWaiting() {
	j.setLifecycle(LifecycleEncoding, "")
	j.call(evPollResponse, func(ctx context.Context) event {
		snap, err := j.gateway.JobStatus(ctx)
		return event{snapshot: snap, err: err}
	})
}

func (j *Job) onPollResponse(ev event) {
	if ev.err != nil {
		j.pollTrouble(fmt.Sprintf("Encoder is not responding: %v", ev.err))
		return
	}
	if ev.snapshot == nil {
		j.pollTrouble("Encoder returned an empty status")
		return
	}
	snap := *ev.snapshot
	if snap.JobID != j.remoteID() {
		j.logger.Warn("encoder reports a different current job; checking history",
			logging.String("reported_job_id", snap.JobID),
			logging.String(logging.FieldEventType, "job_identity_drift"),
		)
		j.raise(evReconcile)
		return
	}
	if snap.JobStatus == ame.JobUnknown {
		j.pollTrouble(fmt.Sprintf("Encoder reports unknown job status %q", snap.JobStatusText))
		return
	}

	j.errorSince = time.Time{}
	j.setSnapshot(snap)

	switch snap.JobStatus {
	case ame.JobQueued, ame.JobEncoding, ame.JobPaused:
		j.schedule(j.policy.PollInterval, evPoll)
	case ame.JobNotFound:
		j.logger.Warn("encoder reports no current job; checking history", logging.String(logging.FieldEventType, "job_not_found"))
		j.raise(evReconcile)
	case ame.JobStopped:
		j.setLifecycle(LifecycleAborted, "Encoder reports the job as stopped")
		j.raise(evEnd)
	case ame.JobFailed:
		j.setDetail("Encoder reports the job as failed")
		j.raise(evEnd)
	case ame.JobSuccess:
		j.setLifecycle(LifecycleSucceeded, "Encoder reports the job as completed")
		j.raise(evEnd)
	}
}

// pollTrouble tracks a continuous error condition while polling. Once it
// outlasts the error-state timeout the job is assumed failed.
func (j *Job) pollTrouble(reason string) {
	now := j.clock.Now()
	if j.errorSince.IsZero() {
		j.errorSince = now
	}
	elapsed := now.Sub(j.errorSince)
	if elapsed > j.policy.ErrorStateTimeout {
		detail := fmt.Sprintf("Encoder has been in an error state for %s; assuming the job failed", elapsed.Round(time.Second))
		j.logger.Error("error state timeout",
			logging.String("reason", reason),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "error_state_timeout"),
			logging.String(logging.FieldErrorHint, "check the encoder web service"),
		)
		j.fallbackSnapshot(detail, ame.JobFailed)
		j.setDetail(detail)
		j.raise(evReconcile)
		return
	}
	j.logger.Warn("poll trouble", logging.String("reason", reason), logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "poll_error"))
	j.setDetail(reason)
	j.schedule(j.policy.PollInterval, evPoll)
}

// Aborting

func (j *Job) enterAborting() {
	j.setLifecycle(LifecycleAborting, fmt.Sprintf("Aborting job (%s)", attemptsDetail(j.abortRetry.remaining())))
	j.emit(true)
	if j.remoteID() == "" {
		j.logger.Info("abort requested before the encoder assigned an id; checking history")
		j.setDetail(abortedBeforeAcceptDetail)
		j.raise(evReconcile)
		return
	}
	j.call(evAbortStatusResponse, func(ctx context.Context) event {
		snap, err := j.gateway.JobStatus(ctx)
		return event{snapshot: snap, err: err}
	})
}

func (j *Job) onAbortStatusResponse(ev event) {
	if ev.err != nil {
		j.retryAbort(fmt.Sprintf("Error querying status before abort: %v", ev.err))
		return
	}
	if ev.snapshot == nil || ev.snapshot.JobID != j.remoteID() {
		j.logger.Warn("encoder reports a different current job; checking history before abort",
			logging.String(logging.FieldEventType, "job_identity_drift"))
		j.raise(evReconcile)
		return
	}
	j.logger.Info("asking encoder to abort the job", logging.String(logging.FieldEventType, "abort"))
	j.call(evAbortResponse, func(ctx context.Context) event {
		return event{err: j.gateway.AbortJob(ctx)}
	})
}

func (j *Job) onAbortResponse(ev event) {
	if ev.err != nil {
		j.retryAbort(fmt.Sprintf("Error while aborting job: %v", ev.err))
		return
	}
	j.fallbackSnapshot(abortedDetail, ame.JobStopped)
	j.setLifecycle(LifecycleAborted, "Encoder confirmed the abort")
	j.logger.Info("job aborted", logging.String(logging.FieldEventType, "aborted"))
	j.raise(evEnd)
}

func (j *Job) retryAbort(reason string) {
	delay, ok := j.abortRetry.next()
	if !ok {
		j.setDetail(fmt.Sprintf("%s; abort retries exhausted", reason))
		j.logger.Error("abort retries exhausted", logging.String("reason", reason),
			logging.String(logging.FieldEventType, "abort_exhausted"))
		j.emit(true)
		j.raise(evReconcile)
		return
	}
	j.mu.Lock()
	j.abortTries = j.abortRetry.used
	j.mu.Unlock()
	j.setDetail(fmt.Sprintf("%s; retrying abort in %s (%s)", reason, delay, attemptsDetail(j.abortRetry.remaining())))
	j.logger.Warn("abort retry scheduled", logging.String("reason", reason), logging.Duration("delay", delay),
		logging.String(logging.FieldEventType, "abort_retry"))
	j.emit(true)
	j.schedule(delay, evAbort)
}

// ReconcilingHistory

func (j *Job) enterReconciling() {
	if j.snapshot != nil && (j.snapshot.JobStatus == ame.JobSuccess || j.snapshot.JobStatus == ame.JobFailed) {
		j.raise(evEnd)
		return
	}
	if j.remoteID() == "" {
		j.raise(evEnd)
		return
	}
	j.logger.Info("fetching job history")
	j.call(evHistoryResponse, func(ctx context.Context) event {
		history, err := j.gateway.JobHistory(ctx)
		return event{history: history, err: err}
	})
}

func (j *Job) onHistoryResponse(ev event) {
	if ev.err != nil {
		detail := fmt.Sprintf("Unable to get job history: %v", ev.err)
		j.logger.Error("history query failed", logging.Error(ev.err), logging.String(logging.FieldEventType, "history_error"))
		j.fallbackSnapshot(detail, ame.JobFailed)
		j.setDetail(detail)
		j.raise(evEnd)
		return
	}
	record, found := ev.history.Find(j.remoteID())
	if !found {
		j.logger.Error("job not found in history", logging.String(logging.FieldEventType, "history_miss"))
		j.setDetail("Job was not found in the encoder history")
		j.raise(evEnd)
		return
	}
	j.logger.Info("job found in history", logging.String("status", record.JobStatusText))
	j.setSnapshot(ame.JobStatusSnapshot{
		ServerStatus:     ev.history.ServerStatus,
		ServerStatusText: ev.history.ServerStatusText,
		JobStatus:        record.JobStatus,
		JobStatusText:    record.JobStatusText,
		JobID:            record.JobID,
		Details:          record.Details,
	})
	if lifecycle, ok := lifecycleFor(record.JobStatus); ok {
		j.setLifecycle(lifecycle, record.Details)
	} else {
		j.setDetail(record.Details)
	}
	j.raise(evEnd)
}

// Ended

func (j *Job) enterEnded() {
	if !j.lifecycle.Terminal() {
		var derived Lifecycle
		var ok bool
		if j.snapshot != nil {
			derived, ok = lifecycleFor(j.snapshot.JobStatus)
		}
		if !ok {
			derived = LifecycleFailed
			j.fallbackSnapshot("", ame.JobFailed)
		}
		detail := j.detail
		if detail == "" && j.snapshot != nil {
			detail = j.snapshot.Details
		}
		j.setLifecycle(derived, detail)
	}
	j.mu.Lock()
	j.endedAt = j.clock.Now()
	j.mu.Unlock()
	j.stopTimer()

	j.logger.Info("job ended",
		logging.String("lifecycle", string(j.lifecycle)),
		logging.String("detail", j.detail),
		logging.String(logging.FieldEventType, "job_ended"),
	)
	j.emit(true)
	j.mu.RLock()
	final := Event{JobID: j.id, Lifecycle: j.lifecycle, Detail: j.detail, At: j.endedAt}
	if snap := j.currentSnapshotLocked(); snap != nil {
		clone := snap.Clone()
		final.Snapshot = &clone
		final.JobStatus = snap.JobStatus
	}
	final.Progress, final.HasProgress = j.progressLocked()
	j.mu.RUnlock()
	j.bus.End(final)
	close(j.done)
}

// fallbackSnapshot makes sure a snapshot exists for the final report. The
// base is the latest snapshot, else a copy of the submit-time snapshot, else
// a synthetic one. A base that already carries a final status is kept;
// otherwise the copy is stamped with status and detail.
func (j *Job) fallbackSnapshot(detail string, status ame.JobStatus) {
	var base ame.JobStatusSnapshot
	switch {
	case j.snapshot != nil:
		base = j.snapshot.Clone()
	case j.submitStatus != nil:
		base = j.submitStatus.JobStatusSnapshot.Clone()
	default:
		base = ame.JobStatusSnapshot{
			ServerStatus:     ame.ServerUnknown,
			ServerStatusText: string(ame.ServerUnknown),
			JobStatus:        ame.JobUnknown,
			JobStatusText:    string(ame.JobUnknown),
			Details:          neverSubmittedDetail,
		}
	}
	if !base.JobStatus.Terminal() {
		base.ServerStatus = ame.ServerUnknown
		base.ServerStatusText = string(ame.ServerUnknown)
		base.JobStatus = status
		base.JobStatusText = string(status)
		if detail != "" {
			base.Details = detail
		}
	}
	j.mu.Lock()
	j.snapshot = &base
	j.mu.Unlock()
}

func lifecycleFor(status ame.JobStatus) (Lifecycle, bool) {
	switch status {
	case ame.JobSuccess:
		return LifecycleSucceeded, true
	case ame.JobFailed:
		return LifecycleFailed, true
	case ame.JobStopped:
		return LifecycleAborted, true
	default:
		return "", false
	}
}

func attemptsDetail(remaining int) string {
	if remaining < 0 {
		return "unlimited attempts"
	}
	return fmt.Sprintf("retries left: %d", remaining)
}
