package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"amequeue/internal/api"
	"amequeue/internal/config"
	"amequeue/internal/logging"
	"amequeue/internal/services"
	"amequeue/internal/services/ame"
)

type globalFlags struct {
	config  string
	api     string
	token   string
	json    bool
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

// cliLogger writes to stderr so command output on stdout stays clean.
func (c *commandContext) cliLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		opts := logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}}
		if c.flags.verbose {
			opts.Level = "debug"
		}
		logger, err := logging.New(opts)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) apiAddress(cfg *config.Config) string {
	if addr := strings.TrimSpace(c.flags.api); addr != "" {
		return addr
	}
	return cfg.Paths.APIBind
}

func (c *commandContext) withAPI(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	token := strings.TrimSpace(c.flags.token)
	if token == "" {
		token = cfg.Paths.APIToken
	}
	addr := c.apiAddress(cfg)
	if err := fn(api.NewClient(addr, token)); err != nil {
		return wrapAPIError(err, addr)
	}
	return nil
}

func (c *commandContext) withGateway(fn func(*ame.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client := ame.NewFromConfig(cfg, c.cliLogger())
	if err := fn(client); err != nil {
		if errors.Is(err, services.ErrTransport) {
			return fmt.Errorf("reach encoder at %s: %w", client.BaseURL(), err)
		}
		return err
	}
	return nil
}

func wrapAPIError(err error, addr string) error {
	switch {
	case errors.Is(err, services.ErrTransport):
		return fmt.Errorf("connect to daemon at %s: %w; start it with `amequeue daemon`", addr, err)
	case errors.Is(err, services.ErrConfiguration):
		return fmt.Errorf("daemon at %s rejected the request; check --token or paths.api_token: %w", addr, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
