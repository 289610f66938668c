package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeGateway(); err != nil {
		return err
	}
	c.normalizeQueue()
	c.normalizeCallback()
	c.normalizeServer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.PresetCache, err = expandPath(strings.TrimSpace(c.Paths.PresetCache)); err != nil {
		return fmt.Errorf("paths.preset_cache: %w", err)
	}
	if c.Paths.PresetTree, err = expandPath(strings.TrimSpace(c.Paths.PresetTree)); err != nil {
		return fmt.Errorf("paths.preset_tree: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := os.LookupEnv("AMEQUEUE_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeGateway() error {
	if value, ok := os.LookupEnv("AME_HOST"); ok && strings.TrimSpace(value) != "" {
		c.Gateway.Host = value
	}
	if value, ok := os.LookupEnv("AME_PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("AME_PORT: %w", err)
		}
		c.Gateway.Port = port
	}
	c.Gateway.Host = strings.TrimSpace(c.Gateway.Host)
	if c.Gateway.Host == "" {
		c.Gateway.Host = defaultGatewayHost
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = defaultGatewayPort
	}
	return nil
}

func (c *Config) normalizeQueue() {
	c.Queue.IDFormat = strings.ToLower(strings.TrimSpace(c.Queue.IDFormat))
	if c.Queue.IDFormat == "" {
		c.Queue.IDFormat = defaultIDFormat
	}
	if c.Queue.RetainFinished < 0 {
		c.Queue.RetainFinished = 0
	}
}

func (c *Config) normalizeCallback() {
	c.Callback.Bind = strings.TrimSpace(c.Callback.Bind)
	if c.Callback.Bind == "" {
		c.Callback.Bind = defaultCallbackBind
	}
	c.Callback.PublicURL = strings.TrimSpace(c.Callback.PublicURL)
}

func (c *Config) normalizeServer() {
	c.Server.HealthCheckSchedule = strings.TrimSpace(c.Server.HealthCheckSchedule)
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("AMEQUEUE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
