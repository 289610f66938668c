package workflow

import (
	"context"
	"errors"

	"amequeue/internal/job"
	"amequeue/internal/logging"
	"amequeue/internal/notifications"
)

func (m *Manager) onActivate(j *job.Job) {
	m.logger.Info("job starting",
		logging.String(logging.FieldJobID, j.ID()),
		logging.String("source", j.Submission().SourceFilePath),
		logging.String("preset", j.Submission().SourcePresetPath),
	)
}

func (m *Manager) onJobEnded(ev job.Event) {
	m.mu.Lock()
	if _, ok := m.jobs[ev.JobID]; !ok {
		m.mu.Unlock()
		return
	}
	m.finished = append(m.finished, ev.JobID)
	m.runCounts[ev.Lifecycle]++
	m.forgetLocked()
	m.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, ev.JobID),
		logging.String("lifecycle", string(ev.Lifecycle)),
		logging.String(logging.FieldEventType, "job_finished"),
	}
	if ev.Detail != "" {
		attrs = append(attrs, logging.String("detail", ev.Detail))
	}
	if ev.Lifecycle == job.LifecycleFailed {
		logging.WarnWithContext(m.logger, "job failed", "job_failed",
			append(attrs, logging.String(logging.FieldErrorHint, "inspect the detail and the encoder log"))...)
	} else {
		m.logger.Info("job finished", logging.Args(attrs...)...)
	}

	var event notifications.Event
	switch ev.Lifecycle {
	case job.LifecycleSucceeded:
		event = notifications.EventJobSucceeded
	case job.LifecycleFailed:
		event = notifications.EventJobFailed
	case job.LifecycleAborted:
		event = notifications.EventJobAborted
	default:
		return
	}
	payload := notifications.Payload{"job_id": ev.JobID, "detail": ev.Detail}
	if j, ok := m.Get(ev.JobID); ok {
		payload["source"] = j.Submission().SourceFilePath
	}
	m.publish(event, payload)
}

func (m *Manager) notifyQueueStarted() {
	count := len(m.seq.Backlog())
	if m.seq.Active() != nil {
		count++
	}
	if count == 0 {
		count = 1
	}
	m.publish(notifications.EventQueueStarted, notifications.Payload{"count": count})
}

func (m *Manager) onDrained() {
	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	counts := m.runCounts
	m.queueActive = false
	m.queueStart = m.clock.Now()
	m.runCounts = make(map[job.Lifecycle]int)
	m.mu.Unlock()

	duration := m.clock.Now().Sub(start)
	m.logger.Info("queue drained",
		logging.Int("succeeded", counts[job.LifecycleSucceeded]),
		logging.Int("failed", counts[job.LifecycleFailed]),
		logging.Int("aborted", counts[job.LifecycleAborted]),
		logging.Duration("duration", duration),
		logging.String(logging.FieldEventType, "queue_drained"),
	)
	m.publish(notifications.EventQueueDrained, notifications.Payload{
		"succeeded": counts[job.LifecycleSucceeded],
		"failed":    counts[job.LifecycleFailed],
		"aborted":   counts[job.LifecycleAborted],
		"duration":  duration,
	})
}

// publish sends a notification without blocking the caller, which is usually
// a job's event dispatcher.
func (m *Manager) publish(event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.notifier.Publish(m.ctx, event, payload); err != nil {
			if errors.Is(err, context.Canceled) {
				m.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
				return
			}
			m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}()
}
