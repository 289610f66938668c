package testsupport

import (
	"path/filepath"
	"testing"

	"amequeue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory and
// fast job timings. It applies any provided options last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Callback.Bind = "127.0.0.1:0"
	cfgVal.Job.SubmitRetryDelay = 0.01
	cfgVal.Job.AbortRetryDelay = 0.01
	cfgVal.Job.PollInterval = 0.01
	cfgVal.Job.ErrorStateTimeout = 0.2
	cfgVal.Queue.ShutdownGrace = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGatewayURL points the gateway section at a test server such as an
// httptest.Server URL ("http://127.0.0.1:port").
func WithGatewayURL(host string, port int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gateway.Host = host
		b.cfg.Gateway.Port = port
	}
}

// WithNtfyTopic enables ntfy notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithIDFormat selects uuid or ulid job ids.
func WithIDFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.IDFormat = format
	}
}

// BaseDir returns the temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
