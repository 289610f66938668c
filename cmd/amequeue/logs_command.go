package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"amequeue/internal/logging"
	"amequeue/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lines < 0 {
				return fmt.Errorf("--lines must not be negative")
			}
			opts := logs.Options{Lines: lines, Follow: follow}
			if jobID != "" {
				opts.Match = logs.JobFilter(jobID)
			}
			tailCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return tailLog(tailCtx, cmd, filepath.Join(cfg.Paths.LogDir, logging.LogFileName), opts)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job id")
	return cmd
}

func tailLog(ctx context.Context, cmd *cobra.Command, path string, opts logs.Options) error {
	out := cmd.OutOrStdout()
	return logs.Tail(ctx, path, opts, func(line string) {
		fmt.Fprintln(out, line)
	})
}
