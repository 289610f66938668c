package workflow

import (
	"errors"
	"fmt"
	"strings"

	"amequeue/internal/job"
	"amequeue/internal/logging"
	"amequeue/internal/services"
	"amequeue/internal/services/ame"
)

// ErrShuttingDown is returned by EnqueueJob after Shutdown started.
var ErrShuttingDown = errors.New("workflow: manager is shutting down")

// EnqueueJob creates a job for sub and appends it to the queue. An empty id
// is replaced by a generated one. The returned job can be observed and
// aborted right away; it is submitted once every earlier job ended.
func (m *Manager) EnqueueJob(sub ame.Submission, id string) (*job.Job, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = m.newID()
	}
	if m.cfg.Callback.Enabled && strings.TrimSpace(sub.NotificationTarget) == "" {
		sub.NotificationTarget = m.cfg.CallbackURL()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, exists := m.jobs[id]; exists {
		m.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "workflow", "enqueue", fmt.Sprintf("job id %q already in use", id), nil)
	}
	j := job.New(id, sub, job.Options{
		Gateway: m.gateway,
		Clock:   m.clock,
		Policy:  m.policy,
		Logger:  m.base,
		Context: m.ctx,
	})
	m.jobs[id] = j
	m.order = append(m.order, id)
	startQueue := !m.queueActive
	if startQueue {
		m.queueActive = true
		m.queueStart = m.clock.Now()
		m.runCounts = make(map[job.Lifecycle]int)
	}
	m.mu.Unlock()

	m.trackProgress(j)
	j.OnEnd(m.onJobEnded)

	if err := m.seq.Enqueue(j); err != nil {
		m.mu.Lock()
		m.unregisterLocked(id)
		if startQueue {
			m.queueActive = false
		}
		m.mu.Unlock()
		j.Abort()
		return nil, fmt.Errorf("enqueue job %s: %w", id, err)
	}
	if startQueue {
		m.notifyQueueStarted()
	}
	return j, nil
}

// Get returns the job with the given id, if it is still registered.
func (m *Manager) Get(id string) (*job.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[strings.TrimSpace(id)]
	return j, ok
}

// List returns registered jobs in enqueue order.
func (m *Manager) List() []*job.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*job.Job, 0, len(m.order))
	for _, id := range m.order {
		if j, ok := m.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out
}

// Abort asks the job with the given id to stop.
func (m *Manager) Abort(id string) (*job.Job, error) {
	j, ok := m.Get(id)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "abort", fmt.Sprintf("job %q", id), nil)
	}
	m.logger.Info("abort requested",
		logging.String(logging.FieldJobID, j.ID()),
		logging.String("lifecycle", string(j.Lifecycle())),
		logging.String(logging.FieldEventType, "abort_requested"),
	)
	j.Abort()
	return j, nil
}

func validateSubmission(sub ame.Submission) error {
	var missing []string
	if strings.TrimSpace(sub.SourceFilePath) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(sub.DestinationPath) == "" {
		missing = append(missing, "destination")
	}
	if strings.TrimSpace(sub.SourcePresetPath) == "" {
		missing = append(missing, "preset")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrValidation, "workflow", "enqueue", "missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// forgetLocked drops finished jobs beyond the retention limit. Caller holds mu.
func (m *Manager) forgetLocked() {
	limit := m.cfg.Queue.RetainFinished
	if limit < 0 {
		limit = 0
	}
	for len(m.finished) > limit {
		id := m.finished[0]
		m.finished = m.finished[1:]
		delete(m.jobs, id)
	}
	if len(m.order) > 2*len(m.jobs)+16 {
		kept := m.order[:0]
		for _, id := range m.order {
			if _, ok := m.jobs[id]; ok {
				kept = append(kept, id)
			}
		}
		m.order = kept
	}
}

func (m *Manager) unregisterLocked(id string) {
	delete(m.jobs, id)
	for i, known := range m.order {
		if known == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
