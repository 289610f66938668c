package workflow

import (
	"context"
	"fmt"

	"amequeue/internal/job"
	"amequeue/internal/logging"
)

// Shutdown stops accepting jobs. With queue.abort_on_shutdown every queued
// and active job is aborted; otherwise queued jobs are left unsubmitted and
// the active one runs on. Shutdown then waits for the affected jobs and any
// in-flight notifications until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	pending := m.seq.Close()
	active := m.seq.Active()

	waitFor := make([]*job.Job, 0, len(pending)+1)
	if m.cfg.Queue.AbortOnShutdown {
		m.logger.Info("aborting outstanding jobs",
			logging.Int("queued", len(pending)),
			logging.Bool("active", active != nil),
			logging.String(logging.FieldEventType, "shutdown_abort"),
		)
		for _, j := range pending {
			j.Abort()
			waitFor = append(waitFor, j)
		}
		if active != nil {
			active.Abort()
		}
	} else if len(pending) > 0 {
		logging.WarnWithContext(m.logger, "leaving queued jobs unsubmitted", "shutdown_pending",
			logging.Int("queued", len(pending)),
			logging.String(logging.FieldImpact, "queued jobs are dropped when the process exits"),
		)
	}
	if active != nil {
		waitFor = append(waitFor, active)
	}

	for _, j := range waitFor {
		select {
		case <-j.Done():
		case <-ctx.Done():
			return fmt.Errorf("workflow shutdown: waiting for job %s: %w", j.ID(), ctx.Err())
		}
		j.Flush()
	}

	idle := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		return fmt.Errorf("workflow shutdown: waiting for notifications: %w", ctx.Err())
	}
	return nil
}
