package testsupport

import (
	"context"
	"errors"
	"sync"

	"amequeue/internal/job"
	"amequeue/internal/services/ame"
)

var _ job.Gateway = (*FakeGateway)(nil)

// ErrUnavailable is the transport error scripted replies use by default.
var ErrUnavailable = errors.New("connection refused")

// SubmitReply is one scripted SubmitJob outcome.
type SubmitReply struct {
	Status *ame.SubmitStatus
	Err    error
}

// PollReply is one scripted JobStatus outcome.
type PollReply struct {
	Snapshot *ame.JobStatusSnapshot
	Err      error
}

// HistoryReply is one scripted JobHistory outcome.
type HistoryReply struct {
	History *ame.JobHistory
	Err     error
}

// FakeGateway replays scripted replies in order. When a script runs out the
// last reply repeats. Function hooks, when set, take precedence.
type FakeGateway struct {
	mu        sync.Mutex
	submits   []SubmitReply
	polls     []PollReply
	aborts    []error
	histories []HistoryReply
	calls     []string

	SubmitFunc  func(ctx context.Context, sub ame.Submission) (*ame.SubmitStatus, error)
	StatusFunc  func(ctx context.Context) (*ame.JobStatusSnapshot, error)
	AbortFunc   func(ctx context.Context) error
	HistoryFunc func(ctx context.Context) (*ame.JobHistory, error)
}

// NewFakeGateway returns a gateway with empty scripts.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

func (g *FakeGateway) ScriptSubmits(replies ...SubmitReply) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits = append(g.submits, replies...)
	return g
}

func (g *FakeGateway) ScriptPolls(replies ...PollReply) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls = append(g.polls, replies...)
	return g
}

func (g *FakeGateway) ScriptAborts(errs ...error) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.aborts = append(g.aborts, errs...)
	return g
}

func (g *FakeGateway) ScriptHistories(replies ...HistoryReply) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.histories = append(g.histories, replies...)
	return g
}

// Calls returns the gateway methods invoked so far, in order.
func (g *FakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Count returns how many times method was invoked.
func (g *FakeGateway) Count(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, call := range g.calls {
		if call == method {
			n++
		}
	}
	return n
}

func (g *FakeGateway) record(method string) {
	g.mu.Lock()
	g.calls = append(g.calls, method)
	g.mu.Unlock()
}

func (g *FakeGateway) SubmitJob(ctx context.Context, sub ame.Submission) (*ame.SubmitStatus, error) {
	g.record("SubmitJob")
	if g.SubmitFunc != nil {
		return g.SubmitFunc(ctx, sub)
	}
	reply := pop(&g.mu, &g.submits, SubmitReply{Err: ErrUnavailable})
	return reply.Status, reply.Err
}

func (g *FakeGateway) JobStatus(ctx context.Context) (*ame.JobStatusSnapshot, error) {
	g.record("JobStatus")
	if g.StatusFunc != nil {
		return g.StatusFunc(ctx)
	}
	reply := pop(&g.mu, &g.polls, PollReply{Err: ErrUnavailable})
	return reply.Snapshot, reply.Err
}

func (g *FakeGateway) AbortJob(ctx context.Context) error {
	g.record("AbortJob")
	if g.AbortFunc != nil {
		return g.AbortFunc(ctx)
	}
	return pop(&g.mu, &g.aborts, nil)
}

func (g *FakeGateway) JobHistory(ctx context.Context) (*ame.JobHistory, error) {
	g.record("JobHistory")
	if g.HistoryFunc != nil {
		return g.HistoryFunc(ctx)
	}
	reply := pop(&g.mu, &g.histories, HistoryReply{Err: ErrUnavailable})
	return reply.History, reply.Err
}

func pop[T any](mu *sync.Mutex, script *[]T, fallback T) T {
	mu.Lock()
	defer mu.Unlock()
	switch len(*script) {
	case 0:
		return fallback
	case 1:
		return (*script)[0]
	default:
		head := (*script)[0]
		*script = (*script)[1:]
		return head
	}
}

// Submitted builds a submit reply with the given result and remote id.
func Submitted(result ame.SubmitResult, jobID string) SubmitReply {
	return SubmitReply{Status: &ame.SubmitStatus{
		Result:     result,
		ResultText: string(result),
		JobStatusSnapshot: ame.JobStatusSnapshot{
			ServerStatus:     ame.ServerOnline,
			ServerStatusText: "Online",
			JobStatus:        ame.JobQueued,
			JobStatusText:    "Queued",
			JobID:            jobID,
		},
	}}
}

// Polled builds a poll reply. A negative progress leaves progress unset.
func Polled(status ame.JobStatus, progress float64, jobID string) PollReply {
	snap := &ame.JobStatusSnapshot{
		ServerStatus:     ame.ServerOnline,
		ServerStatusText: "Online",
		JobStatus:        status,
		JobStatusText:    string(status),
		JobID:            jobID,
	}
	if progress >= 0 {
		snap.Progress = &progress
	}
	return PollReply{Snapshot: snap}
}

// History builds a history reply containing the given records.
func History(records ...ame.HistoricJob) HistoryReply {
	return HistoryReply{History: &ame.JobHistory{
		JobStatusSnapshot: ame.JobStatusSnapshot{ServerStatus: ame.ServerOnline, ServerStatusText: "Online", JobStatus: ame.JobNotFound},
		Jobs:              records,
	}}
}
