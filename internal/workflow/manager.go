package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"amequeue/internal/config"
	"amequeue/internal/job"
	"amequeue/internal/logging"
	"amequeue/internal/notifications"
	"amequeue/internal/queue"
)

// Manager coordinates encode jobs through the queue sequencer.
type Manager struct {
	cfg      *config.Config
	gateway  job.Gateway
	logger   *slog.Logger
	base     *slog.Logger
	notifier notifications.Service
	clock    job.Clock
	newID    IDGenerator
	policy   job.Policy
	seq      *queue.Sequencer
	ctx      context.Context

	mu       sync.RWMutex
	jobs     map[string]*job.Job
	order    []string
	finished []string
	closed   bool
	server   ServerHealth

	queueActive bool
	queueStart  time.Time
	runCounts   map[job.Lifecycle]int

	wg sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	notifier notifications.Service
	clock    job.Clock
	newID    IDGenerator
	ctx      context.Context
}

// WithNotifier replaces the ntfy service derived from the config.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(o *managerOptions) { o.notifier = n }
}

// WithClock sets the clock used by every job the manager creates.
func WithClock(c job.Clock) ManagerOption {
	return func(o *managerOptions) { o.clock = c }
}

// WithIDGenerator overrides the queue.id_format generator.
func WithIDGenerator(gen IDGenerator) ManagerOption {
	return func(o *managerOptions) { o.newID = gen }
}

// WithContext sets the parent context of gateway calls made by jobs.
func WithContext(ctx context.Context) ManagerOption {
	return func(o *managerOptions) { o.ctx = ctx }
}

// NewManager constructs a workflow manager. gateway is shared by every job.
func NewManager(cfg *config.Config, gateway job.Gateway, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("workflow: gateway is required")
	}
	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.newID == nil {
		gen, err := NewIDGenerator(cfg.Queue.IDFormat)
		if err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
		options.newID = gen
	}
	if options.notifier == nil {
		options.notifier = notifications.NewService(cfg)
	}
	if options.clock == nil {
		options.clock = job.SystemClock{}
	}
	if options.ctx == nil {
		options.ctx = context.Background()
	}

	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		gateway:   gateway,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		base:      logger,
		notifier:  options.notifier,
		clock:     options.clock,
		newID:     options.newID,
		policy:    job.PolicyFromConfig(cfg.JobPolicy()),
		ctx:       options.ctx,
		jobs:      make(map[string]*job.Job),
		runCounts: make(map[job.Lifecycle]int),
	}
	m.seq = queue.NewSequencer(queue.Options{
		Logger:     logger,
		OnActivate: m.onActivate,
		OnDrained:  m.onDrained,
	})
	return m, nil
}
