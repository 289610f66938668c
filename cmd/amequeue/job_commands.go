package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"amequeue/internal/services/ame"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect the encoder's job slot directly, bypassing the daemon",
	}
	jobCmd.AddCommand(newJobStatusCommand(ctx))
	jobCmd.AddCommand(newJobAbortCommand(ctx))
	jobCmd.AddCommand(newJobHistoryCommand(ctx))
	return jobCmd
}

func newJobStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the job currently occupying the encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				snap, err := client.JobStatus(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, snap)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
					{"Server", describeStatus(string(snap.ServerStatus), snap.ServerStatusText)},
					{"Job", orDash(snap.JobID)},
					{"Status", describeStatus(string(snap.JobStatus), snap.JobStatusText)},
					{"Progress", formatProgress(snap.Progress)},
					{"Details", orDash(snap.Details)},
				}))
				return nil
			})
		},
	}
}

func newJobAbortCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abort",
		Short: "Abort the job currently occupying the encoder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				if err := client.AbortJob(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Abort requested")
				return nil
			})
		},
	}
}

func newJobHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs the encoder has completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				history, err := client.JobHistory(cmd.Context())
				if err != nil {
					return err
				}
				jobs := history.Jobs
				if limit > 0 && len(jobs) > limit {
					jobs = jobs[:limit]
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Encoder history is empty")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						truncate(job.JobID, 14),
						describeStatus(string(job.JobStatus), job.JobStatusText),
						truncate(baseName(job.SourceFilePath), 40),
						truncate(orDash(job.Details), 48),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Job", "Status", "Source", "Details"}, rows))
				fmt.Fprintf(cmd.OutOrStdout(), "%s of %d\n", pluralize(len(jobs), "job"), len(history.Jobs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries (0 for all)")
	return cmd
}
