package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateJob(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateCallback(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}
	if _, err := url.Parse(c.GatewayURL()); err != nil {
		return fmt.Errorf("gateway.host is not a valid host: %w", err)
	}
	if c.Gateway.RequestTimeout < 0 {
		return errors.New("gateway.request_timeout must be zero or positive")
	}
	if c.Gateway.MaxRequestsPerSecond < 0 {
		return errors.New("gateway.max_requests_per_second must be zero or positive")
	}
	return nil
}

func (c *Config) validateJob() error {
	if c.Job.SubmitRetries < 0 {
		return errors.New("job.submit_retries must be zero or positive")
	}
	if c.Job.AbortRetries < 0 {
		return errors.New("job.abort_retries must be zero or positive")
	}
	if c.Job.SubmitRetryDelay < 0 {
		return errors.New("job.submit_retry_delay must be zero or positive")
	}
	if c.Job.AbortRetryDelay < 0 {
		return errors.New("job.abort_retry_delay must be zero or positive")
	}
	if c.Job.PollInterval <= 0 {
		return errors.New("job.poll_interval must be positive")
	}
	if c.Job.ErrorStateTimeout <= 0 {
		return errors.New("job.error_state_timeout must be positive")
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.IDFormat {
	case "uuid", "ulid":
	default:
		return fmt.Errorf("queue.id_format must be uuid or ulid, got %q", c.Queue.IDFormat)
	}
	if c.Queue.ShutdownGrace < 0 {
		return errors.New("queue.shutdown_grace must be zero or positive")
	}
	return nil
}

func (c *Config) validateCallback() error {
	if !c.Callback.Enabled || c.Callback.PublicURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Callback.PublicURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("callback.public_url must be an absolute URL, got %q", c.Callback.PublicURL)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.HealthCheckSchedule == "" {
		if c.Server.AutoStart {
			return errors.New("server.auto_start requires server.health_check_schedule")
		}
		return nil
	}
	if _, err := cron.ParseStandard(c.Server.HealthCheckSchedule); err != nil {
		return fmt.Errorf("server.health_check_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
