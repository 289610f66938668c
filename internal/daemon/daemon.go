package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"amequeue/internal/api"
	"amequeue/internal/config"
	"amequeue/internal/job"
	"amequeue/internal/logging"
	"amequeue/internal/notifications"
	"amequeue/internal/presets"
	"amequeue/internal/services"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

// LockFileName is created inside the log directory while a daemon runs.
const LockFileName = "amequeue.lock"

// ServerControl is the part of the encoder gateway the daemon uses directly.
type ServerControl interface {
	ServerStatus(ctx context.Context) (*ame.ServerInfo, error)
	StartServer(ctx context.Context) error
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager
	server   ServerControl
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	api      *apiServer
	callback *callbackServer
	monitor  *serverMonitor

	catalogMu sync.Mutex
	catalog   *presets.Catalog

	running atomic.Bool
	ready   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	GatewayURL   string
	CallbackURL  string
	Workflow     workflow.StatusSummary
}

// Option configures optional daemon behavior.
type Option func(*Daemon)

// WithNotifier replaces the ntfy service derived from the config.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithCatalog supplies a preloaded preset catalog.
func WithCatalog(c *presets.Catalog) Option {
	return func(d *Daemon) {
		d.catalog = c
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger, wf *workflow.Manager, server ServerControl, opts ...Option) (*Daemon, error) {
	if cfg == nil || wf == nil || server == nil {
		return nil, errors.New("daemon requires config, workflow manager, and encoder gateway")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		workflow: wf,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}

	d.api = newAPIServer(cfg.Paths.APIBind, cfg.Paths.APIToken, d, logger)
	if cfg.Callback.Enabled {
		d.callback = newCallbackServer(cfg.Callback.Bind, logger)
	}
	monitor, err := newServerMonitor(cfg, server, wf, d.notifier, logger)
	if err != nil {
		return nil, err
	}
	d.monitor = monitor
	return d, nil
}

// Run acquires the daemon lock, serves the API, callback listener and health
// monitor until ctx is cancelled or one of them fails, then shuts the
// workflow down and releases the lock.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another amequeue daemon instance is already running")
	}

	if err := d.listen(); err != nil {
		return multierror.Append(err, d.release()).ErrorOrNil()
	}
	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, d.cfg.Paths.LogDir, "*.log",
		filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName))

	d.logger.Info("amequeue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("gateway", d.cfg.GatewayURL()),
		logging.String("api", d.api.address()),
	)
	close(d.ready)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return d.api.serve(groupCtx) })
	if d.callback != nil {
		group.Go(func() error { return d.callback.serve(groupCtx) })
	}
	if d.monitor != nil {
		group.Go(func() error { return d.monitor.run(groupCtx) })
	}
	runErr := group.Wait()

	var result *multierror.Error
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		result = multierror.Append(result, runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.ShutdownGrace())
	defer cancel()
	if err := d.workflow.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := d.release(); err != nil {
		result = multierror.Append(result, err)
	}
	d.logger.Info("amequeue daemon stopped")
	return result.ErrorOrNil()
}

// Ready is closed once the listeners are bound.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// APIAddress returns the bound API address once Ready is closed.
func (d *Daemon) APIAddress() string { return d.api.address() }

// CallbackAddress returns the bound callback listener address, if enabled.
func (d *Daemon) CallbackAddress() string {
	if d.callback == nil {
		return ""
	}
	return d.callback.address()
}

func (d *Daemon) listen() error {
	var result *multierror.Error
	if err := d.api.listen(); err != nil {
		result = multierror.Append(result, err)
	}
	if d.callback != nil {
		if err := d.callback.listen(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		d.api.close()
		if d.callback != nil {
			d.callback.close()
		}
		return err
	}
	return nil
}

func (d *Daemon) release() error {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		GatewayURL:   d.cfg.GatewayURL(),
		Workflow:     d.workflow.Status(),
	}
	if d.cfg.Callback.Enabled {
		status.CallbackURL = d.cfg.CallbackURL()
	}
	return status
}

// Enqueue resolves the request's preset and queues a job.
func (d *Daemon) Enqueue(req api.EnqueueRequest) (*job.Job, error) {
	preset := strings.TrimSpace(req.Preset)
	if preset == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue", "preset is required", nil)
	}
	catalog, err := d.presetCatalog()
	if err != nil {
		d.logger.Warn("preset catalog unavailable; only preset paths are accepted", logging.Error(err))
	}
	resolved, err := catalog.Resolve(preset)
	if err != nil {
		if errors.Is(err, presets.ErrNotFound) {
			return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue", "unknown preset", err)
		}
		return nil, services.Wrap(services.ErrValidation, "daemon", "enqueue", "resolve preset", err)
	}
	req.Preset = resolved
	return d.workflow.EnqueueJob(req.ToSubmission(), req.ID)
}

// presetCatalog loads the catalog on first use. A failed load is retried on
// the next call.
func (d *Daemon) presetCatalog() (*presets.Catalog, error) {
	d.catalogMu.Lock()
	defer d.catalogMu.Unlock()
	if d.catalog != nil {
		return d.catalog, nil
	}
	catalog, err := presets.LoadCatalog(d.cfg.Paths.PresetCache, d.cfg.Paths.PresetTree)
	if err != nil {
		return nil, err
	}
	d.catalog = catalog
	return catalog, nil
}
