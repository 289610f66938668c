package queue

import (
	"fmt"
	"log/slog"
	"sync"

	"amequeue/internal/job"
	"amequeue/internal/logging"
)

// State is the sequencer's activity state.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
)

// Options configures a Sequencer.
type Options struct {
	Logger *slog.Logger
	// OnActivate runs before a job is submitted.
	OnActivate func(*job.Job)
	// OnDrained runs when the last active job ended and the backlog is empty.
	OnDrained func()
}

// Snapshot describes the sequencer at one instant.
type Snapshot struct {
	State   State
	Active  string
	Backlog []string
}

// Sequencer feeds jobs to the encoder one at a time in enqueue order.
type Sequencer struct {
	logger     *slog.Logger
	onActivate func(*job.Job)
	onDrained  func()

	mu      sync.Mutex
	state   State
	active  *job.Job
	backlog []*job.Job
	closed  bool
}

// NewSequencer returns an idle sequencer with an empty backlog.
func NewSequencer(opts Options) *Sequencer {
	return &Sequencer{
		logger:     logging.NewComponentLogger(opts.Logger, "queue"),
		onActivate: opts.OnActivate,
		onDrained:  opts.OnDrained,
		state:      StateIdle,
	}
}

// Enqueue appends j to the backlog and starts it when the sequencer is idle.
func (s *Sequencer) Enqueue(j *job.Job) error {
	if j == nil {
		return fmt.Errorf("queue: nil job")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.containsLocked(j.ID()) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicate, j.ID())
	}
	s.backlog = append(s.backlog, j)
	position := len(s.backlog)
	s.mu.Unlock()

	s.logger.Info("job queued",
		logging.String(logging.FieldJobID, j.ID()),
		logging.Int("position", position),
		logging.String(logging.FieldEventType, "job_queued"),
	)
	s.advance(false)
	return nil
}

// State reports whether a job is currently active.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the job holding the encoder slot, or nil.
func (s *Sequencer) Active() *job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Backlog returns the jobs waiting for the slot, head first.
func (s *Sequencer) Backlog() []*job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*job.Job(nil), s.backlog...)
}

// Snapshot returns the sequencer state with job ids.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, Backlog: make([]string, 0, len(s.backlog))}
	if s.active != nil {
		snap.Active = s.active.ID()
	}
	for _, j := range s.backlog {
		snap.Backlog = append(snap.Backlog, j.ID())
	}
	return snap
}

// Close stops accepting and activating jobs. It returns the backlog, which
// the caller owns from then on. The active job, if any, keeps running.
func (s *Sequencer) Close() []*job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	pending := s.backlog
	s.backlog = nil
	return pending
}

func (s *Sequencer) containsLocked(id string) bool {
	if s.active != nil && s.active.ID() == id {
		return true
	}
	for _, j := range s.backlog {
		if j.ID() == id {
			return true
		}
	}
	return false
}

// advance activates the next live job when idle. finished marks a call that
// follows an end-of-life event, which is when the drained hook may fire.
func (s *Sequencer) advance(finished bool) {
	s.mu.Lock()
	if s.state == StateProcessing {
		s.mu.Unlock()
		return
	}
	var next *job.Job
	var skipped []string
	for len(s.backlog) > 0 && !s.closed {
		head := s.backlog[0]
		s.backlog[0] = nil
		s.backlog = s.backlog[1:]
		if head.Ended() {
			skipped = append(skipped, head.ID())
			continue
		}
		next = head
		break
	}
	if next != nil {
		s.active = next
		s.state = StateProcessing
	}
	drained := next == nil && finished && !s.closed
	s.mu.Unlock()

	for _, id := range skipped {
		s.logger.Info("skipping job that ended while queued",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_skipped"),
		)
	}
	if next == nil {
		if drained && s.onDrained != nil {
			s.logger.Info("queue drained", logging.String(logging.FieldEventType, "queue_drained"))
			s.onDrained()
		}
		return
	}

	s.logger.Info("activating job",
		logging.String(logging.FieldJobID, next.ID()),
		logging.String(logging.FieldEventType, "job_activated"),
	)
	if s.onActivate != nil {
		s.onActivate(next)
	}
	active := next
	active.OnEnd(func(job.Event) { s.finish(active) })
	active.Submit()
}

func (s *Sequencer) finish(j *job.Job) {
	s.mu.Lock()
	if s.active != j {
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.state = StateIdle
	s.mu.Unlock()
	s.advance(true)
}
