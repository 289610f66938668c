package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"amequeue/internal/config"
	"amequeue/internal/logging"
	"amequeue/internal/notifications"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

const probeTimeout = 30 * time.Second

// serverMonitor probes the encoder on a cron schedule, records the result on
// the workflow manager and optionally starts an offline encoder.
type serverMonitor struct {
	schedule   string
	autoStart  bool
	gatewayURL string
	server     ServerControl
	workflow   *workflow.Manager
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	lastReady *bool
}

func newServerMonitor(cfg *config.Config, server ServerControl, wf *workflow.Manager, notifier notifications.Service, logger *slog.Logger) (*serverMonitor, error) {
	schedule := strings.TrimSpace(cfg.Server.HealthCheckSchedule)
	if schedule == "" {
		return nil, nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("server.health_check_schedule: %w", err)
	}
	return &serverMonitor{
		schedule:   schedule,
		autoStart:  cfg.Server.AutoStart,
		gatewayURL: cfg.GatewayURL(),
		server:     server,
		workflow:   wf,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "server-monitor"),
		now:        time.Now,
	}, nil
}

func (m *serverMonitor) run(ctx context.Context) error {
	scheduler := cron.New(
		cron.WithLogger(cronLogger{m.logger}),
		cron.WithChain(cron.Recover(cronLogger{m.logger}), cron.SkipIfStillRunning(cronLogger{m.logger})),
	)
	if _, err := scheduler.AddFunc(m.schedule, func() { m.check(ctx) }); err != nil {
		return fmt.Errorf("schedule health check: %w", err)
	}
	m.logger.Info("encoder health checks scheduled",
		logging.String("schedule", m.schedule),
		logging.Bool("auto_start", m.autoStart),
	)
	m.check(ctx)
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func (m *serverMonitor) check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := m.server.ServerStatus(probeCtx)
	now := m.now()
	var health workflow.ServerHealth
	switch {
	case err != nil:
		health = workflow.UnhealthyServer("Unreachable", err.Error(), now)
	case info.ServerStatus == ame.ServerOnline:
		health = workflow.HealthyServer(string(info.ServerStatus), now)
	default:
		health = workflow.UnhealthyServer(string(info.ServerStatus), info.ServerStatusText, now)
	}
	m.workflow.RecordServerHealth(health)

	m.mu.Lock()
	changed := m.lastReady == nil || *m.lastReady != health.Ready
	ready := health.Ready
	m.lastReady = &ready
	m.mu.Unlock()

	if health.Ready {
		if changed {
			m.logger.Info("encoder online", logging.String(logging.FieldEventType, "server_online"))
		}
		return
	}

	if changed {
		logging.WarnWithContext(m.logger, "encoder not available", "server_offline",
			logging.String("status", health.Status),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldErrorHint, "check that the Media Encoder web service is running"),
			logging.String(logging.FieldImpact, "queued jobs retry until the encoder accepts them"),
		)
		if pubErr := m.notifier.Publish(ctx, notifications.EventServerOffline, notifications.Payload{
			"server": m.gatewayURL,
			"status": health.Status,
		}); pubErr != nil {
			m.logger.Debug("server offline notification failed", logging.Error(pubErr))
		}
	}

	// An unreachable web service cannot be asked to start its encoder.
	if !m.autoStart || err != nil {
		return
	}
	m.logger.Info("starting encoder", logging.String(logging.FieldEventType, "server_start"))
	if startErr := m.server.StartServer(probeCtx); startErr != nil {
		logging.ErrorWithContext(m.logger, "encoder start failed", "server_start_failed",
			logging.Error(startErr),
			logging.String(logging.FieldErrorHint, "start the encoder manually"),
		)
	}
}

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, logging.Error(err))...)
}
