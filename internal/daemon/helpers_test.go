package daemon

import (
	"context"
	"sync"
	"testing"

	"amequeue/internal/config"
	"amequeue/internal/notifications"
	"amequeue/internal/services/ame"
	"amequeue/internal/testsupport"
	"amequeue/internal/workflow"
)

type stubServer struct {
	mu     sync.Mutex
	status ame.ServerStatus
	err    error
	starts int
}

func (s *stubServer) ServerStatus(context.Context) (*ame.ServerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	info := &ame.ServerInfo{}
	info.ServerStatus = s.status
	if s.status != ame.ServerOnline {
		info.ServerStatusText = "Encoder is " + string(s.status)
	}
	return info, nil
}

func (s *stubServer) StartServer(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return nil
}

func (s *stubServer) set(status ame.ServerStatus, err error) {
	s.mu.Lock()
	s.status = status
	s.err = err
	s.mu.Unlock()
}

func (s *stubServer) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *stubNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *stubNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

// slotEncoder accepts every submission. Polls report the current job as
// encoding while hold is set and as finished otherwise.
func slotEncoder(hold bool) *testsupport.FakeGateway {
	var (
		mu      sync.Mutex
		current string
	)
	gw := testsupport.NewFakeGateway()
	gw.SubmitFunc = func(_ context.Context, sub ame.Submission) (*ame.SubmitStatus, error) {
		mu.Lock()
		current = "remote-" + sub.SourceFilePath
		id := current
		mu.Unlock()
		return testsupport.Submitted(ame.SubmitAccepted, id).Status, nil
	}
	gw.StatusFunc = func(context.Context) (*ame.JobStatusSnapshot, error) {
		mu.Lock()
		id := current
		mu.Unlock()
		if hold {
			return testsupport.Polled(ame.JobEncoding, 40, id).Snapshot, nil
		}
		return testsupport.Polled(ame.JobSuccess, 100, id).Snapshot, nil
	}
	return gw
}

func newTestDaemon(t *testing.T, cfg *config.Config, gw *testsupport.FakeGateway, server *stubServer) (*Daemon, *workflow.Manager) {
	t.Helper()
	notifier := &stubNotifier{}
	mgr, err := workflow.NewManager(cfg, gw, nil, workflow.WithNotifier(notifier))
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	d, err := New(cfg, nil, mgr, server, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, mgr
}
