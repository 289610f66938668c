package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"amequeue/internal/logging"
	"amequeue/internal/services"
	"amequeue/internal/services/ame"
)

// Options wires a job to its collaborators. Gateway is required.
type Options struct {
	Gateway Gateway
	Clock   Clock
	Policy  Policy
	Logger  *slog.Logger
	// Context is the parent of every gateway call. Cancellation is not
	// observed; calls run to completion once issued.
	Context context.Context
}

// Job is one queued encode and the machine driving it.
type Job struct {
	id         string
	submission ame.Submission
	gateway    Gateway
	clock      Clock
	policy     Policy
	logger     *slog.Logger
	ctx        context.Context
	bus        *Bus
	inbox      *mailbox
	done       chan struct{}
	createdAt  time.Time

	submitted      atomic.Bool
	abortRequested atomic.Bool

	// Owned by the machine goroutine. Fields read by accessors are written
	// under mu.
	mu           sync.RWMutex
	state        State
	lifecycle    Lifecycle
	detail       string
	submitStatus *ame.SubmitStatus
	snapshot     *ame.JobStatusSnapshot
	endedAt      time.Time
	submitTries  int
	abortTries   int

	epoch        uint64
	raised       []event
	timer        Timer
	submitRetry  *retrier
	busyRetry    *retrier
	abortRetry   *retrier
	errorSince   time.Time
	peakProgress float64
}

// New creates a job in the Pending state and starts its machine. Nothing is
// sent to the encoder until Submit is called.
func New(id string, sub ame.Submission, opts Options) *Job {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithJobID(context.WithoutCancel(ctx), id)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(opts.Logger, "job"))

	j := &Job{
		id:          id,
		submission:  sub,
		gateway:     opts.Gateway,
		clock:       clock,
		policy:      opts.Policy,
		logger:      logger,
		ctx:         ctx,
		bus:         NewBus(logger),
		inbox:       newMailbox(),
		done:        make(chan struct{}),
		createdAt:   clock.Now(),
		state:       StatePending,
		lifecycle:   LifecyclePending,
		submitRetry: newBoundedRetrier(opts.Policy.SubmitRetries, opts.Policy.SubmitRetryDelay),
		busyRetry:   newUnboundedRetrier(opts.Policy.SubmitRetryDelay),
		abortRetry:  newBoundedRetrier(opts.Policy.AbortRetries, opts.Policy.AbortRetryDelay),
	}
	go j.run()
	return j
}

// ID returns the local job id.
func (j *Job) ID() string { return j.id }

// Submission returns the request the job was created with.
func (j *Job) Submission() ame.Submission { return j.submission }

// Submit starts the job. Calls after the first are ignored.
func (j *Job) Submit() {
	if !j.submitted.CompareAndSwap(false, true) {
		return
	}
	j.post(event{kind: evSubmit})
}

// Abort asks the job to stop. A pending job ends immediately; a submitted
// one aborts the remote encode. Calls after the first are ignored.
func (j *Job) Abort() {
	if !j.abortRequested.CompareAndSwap(false, true) {
		return
	}
	j.post(event{kind: evAbort})
}

// OnProgress subscribes to progress events.
func (j *Job) OnProgress(fn Observer) func() { return j.bus.OnProgress(fn) }

// OnEnd subscribes to the end-of-life event, which every job emits exactly
// once. Subscribing after the job ended still delivers it.
func (j *Job) OnEnd(fn Observer) { j.bus.OnEnd(fn) }

// Done is closed once the job reached a terminal lifecycle status and its
// final events were published.
func (j *Job) Done() <-chan struct{} { return j.done }

// Ended reports whether the job has finished.
func (j *Job) Ended() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Lifecycle returns the current lifecycle status.
func (j *Job) Lifecycle() Lifecycle {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lifecycle
}

// State returns the machine state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Detail returns the human readable status detail.
func (j *Job) Detail() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.detail
}

// Progress returns the last known progress percentage; 100 once the encoder
// reported success.
func (j *Job) Progress() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	progress, _ := j.progressLocked()
	return progress
}

// LastSnapshot returns a copy of the most recent job status, or nil.
func (j *Job) LastSnapshot() *ame.JobStatusSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.snapshot == nil {
		return nil
	}
	snap := j.snapshot.Clone()
	return &snap
}

// SubmitStatus returns a copy of the most recent submit response, or nil.
func (j *Job) SubmitStatus() *ame.SubmitStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.submitStatus == nil {
		return nil
	}
	status := j.submitStatus.Clone()
	return &status
}

// View returns a consistent copy of the job's observable state.
func (j *Job) View() View {
	j.mu.RLock()
	defer j.mu.RUnlock()
	view := View{
		ID:            j.id,
		Submission:    j.submission,
		State:         j.state,
		Lifecycle:     j.lifecycle,
		Detail:        j.detail,
		SubmitRetries: j.submitTries,
		AbortRetries:  j.abortTries,
		CreatedAt:     j.createdAt,
		EndedAt:       j.endedAt,
	}
	view.Progress, view.HasProgress = j.progressLocked()
	if j.submitStatus != nil {
		status := j.submitStatus.Clone()
		view.SubmitStatus = &status
	}
	if j.snapshot != nil {
		snap := j.snapshot.Clone()
		view.Snapshot = &snap
	}
	return view
}

// Flush waits until every event published so far reached its observers.
func (j *Job) Flush() { j.bus.Flush() }

func (j *Job) progressLocked() (float64, bool) {
	snap := j.currentSnapshotLocked()
	if snap == nil {
		return 0, false
	}
	if snap.JobStatus == ame.JobSuccess {
		return 100, true
	}
	return snap.ProgressValue()
}

// currentSnapshotLocked is the latest snapshot, falling back to the one
// returned with the submit response.
func (j *Job) currentSnapshotLocked() *ame.JobStatusSnapshot {
	if j.snapshot != nil {
		return j.snapshot
	}
	if j.submitStatus != nil {
		return &j.submitStatus.JobStatusSnapshot
	}
	return nil
}

func (j *Job) post(ev event) {
	j.inbox.post(ev)
}

func (j *Job) raise(kind eventKind) {
	j.raised = append(j.raised, event{kind: kind})
}

func (j *Job) run() {
	for {
		ev := j.inbox.next()
		j.handle(ev)
		for len(j.raised) > 0 && j.state != StateEnded {
			next := j.raised[0]
			j.raised = j.raised[1:]
			j.handle(next)
		}
		if j.state == StateEnded {
			j.inbox.close()
			return
		}
	}
}

func (j *Job) handle(ev event) {
	if ev.epoch != 0 && ev.epoch != j.epoch {
		j.logger.Debug("stale event dropped",
			logging.String("event", ev.kind.String()),
			logging.String("state", string(j.state)),
		)
		return
	}
	tr, ok := lookupTransition(j.state, ev.kind)
	if !ok {
		j.logger.Debug("event ignored in state",
			logging.String("event", ev.kind.String()),
			logging.String("state", string(j.state)),
		)
		return
	}
	if tr.enter {
		j.enter(tr.to, ev)
	} else {
		j.evaluate(ev)
	}
	j.emit(false)
}

func (j *Job) enter(to State, ev event) {
	j.stopTimer()
	j.epoch++
	if to != j.state {
		j.logger.Debug("job state change",
			logging.String("from", string(j.state)),
			logging.String("to", string(to)),
			logging.String("event", ev.kind.String()),
		)
	}
	j.mu.Lock()
	j.state = to
	j.mu.Unlock()

	switch to {
	case StateSubmitting:
		j.enterSubmitting()
	case StateWaiting:
		j.enterWaiting()
	case StateAborting:
		j.enterAborting()
	case StateReconcilingHistory:
		j.enterReconciling()
	case StateEnded:
		j.enterEnded()
	}
}

func (j *Job) evaluate(ev event) {
	switch ev.kind {
	case evSubmitResponse:
		j.onSubmitResponse(ev)
	case evPollResponse:
		j.onPollResponse(ev)
	case evAbortStatusResponse:
		j.onAbortStatusResponse(ev)
	case evAbortResponse:
		j.onAbortResponse(ev)
	case evHistoryResponse:
		j.onHistoryResponse(ev)
	}
}

// schedule posts kind after d, tagged with the current epoch.
func (j *Job) schedule(d time.Duration, kind eventKind) {
	j.stopTimer()
	epoch := j.epoch
	j.timer = j.clock.AfterFunc(d, func() {
		j.post(event{kind: kind, epoch: epoch})
	})
}

func (j *Job) stopTimer() {
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
}

// call runs fn on its own goroutine and posts the resulting event.
func (j *Job) call(kind eventKind, fn func(ctx context.Context) event) {
	epoch := j.epoch
	ctx := j.ctx
	go func() {
		ev := fn(ctx)
		ev.kind = kind
		ev.epoch = epoch
		j.post(ev)
	}()
}

func (j *Job) setLifecycle(lifecycle Lifecycle, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.lifecycle.Terminal() {
		return
	}
	j.lifecycle = lifecycle
	j.detail = detail
}

func (j *Job) setDetail(detail string) {
	j.mu.Lock()
	j.detail = detail
	j.mu.Unlock()
}

// setSnapshot records snap as the most recent status. Progress never moves
// backwards while encoding and a success reports 100. snap is not modified.
func (j *Job) setSnapshot(snap ame.JobStatusSnapshot) {
	snap = snap.Clone()
	switch snap.JobStatus {
	case ame.JobSuccess:
		snap = snap.WithProgress(100)
	case ame.JobEncoding:
		if value, ok := snap.ProgressValue(); ok {
			if value < j.peakProgress {
				snap = snap.WithProgress(j.peakProgress)
			} else {
				j.peakProgress = value
			}
		}
	}
	j.mu.Lock()
	j.snapshot = &snap
	j.mu.Unlock()
}

func (j *Job) emit(force bool) {
	j.mu.RLock()
	ev := Event{
		JobID:     j.id,
		Lifecycle: j.lifecycle,
		Detail:    j.detail,
		At:        j.clock.Now(),
	}
	if snap := j.currentSnapshotLocked(); snap != nil {
		clone := snap.Clone()
		ev.Snapshot = &clone
		ev.JobStatus = snap.JobStatus
	}
	ev.Progress, ev.HasProgress = j.progressLocked()
	j.mu.RUnlock()
	j.bus.Publish(ev, force)
}
