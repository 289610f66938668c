package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"amequeue/internal/daemon"
	"amequeue/internal/logging"
	"amequeue/internal/notifications"
	"amequeue/internal/presets"
	"amequeue/internal/services/ame"
	"amequeue/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the job queue and HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	gateway := ame.NewFromConfig(cfg, logger)
	notifier := notifications.NewService(cfg)
	manager, err := workflow.NewManager(cfg, gateway, logger, workflow.WithNotifier(notifier))
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}

	opts := []daemon.Option{daemon.WithNotifier(notifier)}
	if cfg.Paths.PresetCache != "" || cfg.Paths.PresetTree != "" {
		catalog, err := presets.LoadCatalog(cfg.Paths.PresetCache, cfg.Paths.PresetTree)
		if err != nil {
			logging.WarnWithContext(logger, "preset catalog unavailable", "preset_catalog",
				logging.Error(err),
				logging.String(logging.FieldImpact, "jobs must reference preset files by path"),
			)
		} else {
			opts = append(opts, daemon.WithCatalog(catalog))
		}
	}

	d, err := daemon.New(cfg, logger, manager, gateway, opts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return d.Run(signalCtx)
}
