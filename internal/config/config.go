package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, catalog and bind address configuration.
type Paths struct {
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token by the HTTP API.
	APIToken    string `toml:"api_token"`
	PresetCache string `toml:"preset_cache"`
	PresetTree  string `toml:"preset_tree"`
}

// Gateway describes how to reach the encoding service web API.
type Gateway struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// RequestTimeout bounds a single HTTP round-trip in seconds. Zero disables it.
	RequestTimeout int `toml:"request_timeout"`
	// MaxRequestsPerSecond throttles calls to the service. Zero disables it.
	MaxRequestsPerSecond float64 `toml:"max_requests_per_second"`
}

// Job contains the retry and polling policy applied to every queued job.
// Durations are expressed in seconds.
type Job struct {
	SubmitRetries     int     `toml:"submit_retries"`
	SubmitRetryDelay  float64 `toml:"submit_retry_delay"`
	AbortRetries      int     `toml:"abort_retries"`
	AbortRetryDelay   float64 `toml:"abort_retry_delay"`
	PollInterval      float64 `toml:"poll_interval"`
	ErrorStateTimeout float64 `toml:"error_state_timeout"`
}

// Queue contains settings for the job sequencer and registry.
type Queue struct {
	IDFormat        string `toml:"id_format"`
	RetainFinished  int    `toml:"retain_finished"`
	AbortOnShutdown bool   `toml:"abort_on_shutdown"`
	ShutdownGrace   int    `toml:"shutdown_grace"`
}

// Callback configures the listener the encoding service posts job
// notifications to.
type Callback struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	PublicURL string `toml:"public_url"`
}

// Server configures the periodic health probe of the encoding service.
type Server struct {
	HealthCheckSchedule string `toml:"health_check_schedule"`
	AutoStart           bool   `toml:"auto_start"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobSucceeded   bool   `toml:"job_succeeded"`
	JobFailed      bool   `toml:"job_failed"`
	JobAborted     bool   `toml:"job_aborted"`
	Queue          bool   `toml:"queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for amequeue.
//
// Configuration sections by subsystem:
//   - Paths: log directory, API bind address and preset catalog files
//   - Gateway: encoding service address and request pacing
//   - Job: retry counts, retry delays, poll interval and error timeout
//   - Queue: id format, finished-job retention and shutdown behaviour
//   - Callback: inbound notification listener
//   - Server: scheduled health probe and auto start
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Gateway       Gateway       `toml:"gateway"`
	Job           Job           `toml:"job"`
	Queue         Queue         `toml:"queue"`
	Callback      Callback      `toml:"callback"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	loadDotEnv(filepath.Dir(resolvedPath))

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv reads .env files next to the config and in the working directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) {
	candidates := []string{".env"}
	if configDir != "" && configDir != "." {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err != nil || info.IsDir() {
			continue
		}
		_ = godotenv.Load(candidate)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("amequeue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// GatewayURL returns the base URL of the encoding service web API.
func (c *Config) GatewayURL() string {
	return fmt.Sprintf("http://%s:%d", c.Gateway.Host, c.Gateway.Port)
}

// GatewayTimeout returns the per-request HTTP timeout; zero means none.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeout) * time.Second
}

// ShutdownGrace returns how long the daemon waits for the active job to wind
// down after abort requests were sent.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Queue.ShutdownGrace) * time.Second
}

// CallbackURL returns the notification target handed to the encoding service,
// or an empty string when the listener is disabled.
func (c *Config) CallbackURL() string {
	if !c.Callback.Enabled {
		return ""
	}
	if url := strings.TrimSpace(c.Callback.PublicURL); url != "" {
		return url
	}
	bind := c.Callback.Bind
	if strings.HasPrefix(bind, ":") {
		bind = "localhost" + bind
	}
	return "http://" + bind + "/"
}

// JobPolicy is the job section converted to durations.
type JobPolicy struct {
	SubmitRetries     int
	SubmitRetryDelay  time.Duration
	AbortRetries      int
	AbortRetryDelay   time.Duration
	PollInterval      time.Duration
	ErrorStateTimeout time.Duration
}

// JobPolicy returns the retry and polling policy with durations resolved.
func (c *Config) JobPolicy() JobPolicy {
	return JobPolicy{
		SubmitRetries:     c.Job.SubmitRetries,
		SubmitRetryDelay:  seconds(c.Job.SubmitRetryDelay),
		AbortRetries:      c.Job.AbortRetries,
		AbortRetryDelay:   seconds(c.Job.AbortRetryDelay),
		PollInterval:      seconds(c.Job.PollInterval),
		ErrorStateTimeout: seconds(c.Job.ErrorStateTimeout),
	}
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
