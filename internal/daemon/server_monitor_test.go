package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"amequeue/internal/notifications"
	"amequeue/internal/services/ame"
	"amequeue/internal/testsupport"
	"amequeue/internal/workflow"
)

func newTestMonitor(t *testing.T, schedule string, autoStart bool, server *stubServer) (*serverMonitor, *workflow.Manager, *stubNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Server.HealthCheckSchedule = schedule
	cfg.Server.AutoStart = autoStart
	mgr, err := workflow.NewManager(cfg, testsupport.NewFakeGateway(), nil)
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	notifier := &stubNotifier{}
	monitor, err := newServerMonitor(cfg, server, mgr, notifier, nil)
	if err != nil {
		t.Fatalf("newServerMonitor: %v", err)
	}
	return monitor, mgr, notifier
}

func TestServerMonitorDisabledWithoutSchedule(t *testing.T) {
	monitor, _, _ := newTestMonitor(t, "", false, &stubServer{})
	if monitor != nil {
		t.Fatal("expected no monitor without a schedule")
	}
}

func TestServerMonitorRecordsHealthTransitions(t *testing.T) {
	server := &stubServer{status: ame.ServerOnline}
	monitor, mgr, notifier := newTestMonitor(t, "@every 1h", false, server)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	monitor.now = func() time.Time { return at }
	ctx := context.Background()

	monitor.check(ctx)
	health := mgr.Status().Server
	if !health.Ready || health.Status != "Online" || !health.CheckedAt.Equal(at) {
		t.Fatalf("unexpected health %+v", health)
	}

	server.set(ame.ServerOffline, nil)
	monitor.check(ctx)
	monitor.check(ctx)
	health = mgr.Status().Server
	if health.Ready || health.Status != "Offline" || health.Detail != "Encoder is Offline" {
		t.Fatalf("unexpected health %+v", health)
	}
	if got := notifier.count(notifications.EventServerOffline); got != 1 {
		t.Fatalf("offline notifications = %d, want 1", got)
	}
	if server.startCount() != 0 {
		t.Fatal("auto start disabled but server was started")
	}

	server.set(ame.ServerOnline, nil)
	monitor.check(ctx)
	server.set("", errors.New("connection refused"))
	monitor.check(ctx)
	health = mgr.Status().Server
	if health.Ready || health.Status != "Unreachable" || health.Detail == "" {
		t.Fatalf("unexpected health %+v", health)
	}
	if got := notifier.count(notifications.EventServerOffline); got != 2 {
		t.Fatalf("offline notifications = %d, want 2", got)
	}
}

func TestServerMonitorAutoStart(t *testing.T) {
	server := &stubServer{status: ame.ServerOffline}
	monitor, _, _ := newTestMonitor(t, "*/5 * * * *", true, server)
	ctx := context.Background()

	monitor.check(ctx)
	monitor.check(ctx)
	if got := server.startCount(); got != 2 {
		t.Fatalf("start requests = %d, want 2", got)
	}

	server.set("", errors.New("connection refused"))
	monitor.check(ctx)
	if got := server.startCount(); got != 2 {
		t.Fatalf("unreachable service should not be started, got %d requests", got)
	}
}

func TestServerMonitorRejectsInvalidSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.HealthCheckSchedule = "every tuesday"
	mgr, err := workflow.NewManager(cfg, testsupport.NewFakeGateway(), nil)
	if err != nil {
		t.Fatalf("workflow.NewManager: %v", err)
	}
	if _, err := newServerMonitor(cfg, &stubServer{}, mgr, &stubNotifier{}, nil); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestServerMonitorRunStopsOnCancel(t *testing.T) {
	server := &stubServer{status: ame.ServerOnline}
	monitor, mgr, _ := newTestMonitor(t, "@every 1h", false, server)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for mgr.Status().Server.CheckedAt.IsZero() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !mgr.Status().Server.Ready {
		t.Fatal("expected initial probe on start")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
