package workflow

import (
	"time"

	"amequeue/internal/job"
	"amequeue/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Queue      queue.Snapshot
	Counts     map[job.Lifecycle]int
	Registered int
	Accepting  bool
	Server     ServerHealth
	QueueSince time.Time
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	jobs := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	summary := StatusSummary{
		Registered: len(m.jobs),
		Accepting:  !m.closed,
		Server:     m.server,
	}
	if m.queueActive {
		summary.QueueSince = m.queueStart
	}
	m.mu.RUnlock()

	summary.Queue = m.seq.Snapshot()
	summary.Counts = make(map[job.Lifecycle]int, len(job.Lifecycles()))
	for _, lifecycle := range job.Lifecycles() {
		summary.Counts[lifecycle] = 0
	}
	for _, j := range jobs {
		summary.Counts[j.Lifecycle()]++
	}
	return summary
}

// RecordServerHealth stores the result of the latest encoder probe.
func (m *Manager) RecordServerHealth(h ServerHealth) {
	m.mu.Lock()
	m.server = h
	m.mu.Unlock()
}
