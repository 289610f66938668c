package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"amequeue/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Add, inspect and abort jobs on the running daemon",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueAbortCommand(ctx))

	return queueCmd
}

type submitFlags struct {
	preset       string
	id           string
	overwrite    bool
	notifyTarget string
	backupTarget string
	notifyRateMS int
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Preset file path or catalog name")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "Overwrite the destination if it exists")
	cmd.Flags().StringVar(&f.notifyTarget, "notify-target", "", "URL the encoder posts job notifications to")
	cmd.Flags().StringVar(&f.backupTarget, "backup-notify-target", "", "Fallback notification URL")
	cmd.Flags().IntVar(&f.notifyRateMS, "notify-rate", 0, "Notification interval in milliseconds")
	_ = cmd.MarkFlagRequired("preset")
}

func (f *submitFlags) request(cmd *cobra.Command, source, destination string) api.EnqueueRequest {
	req := api.EnqueueRequest{
		ID:                       strings.TrimSpace(f.id),
		Source:                   strings.TrimSpace(source),
		Destination:              strings.TrimSpace(destination),
		Preset:                   strings.TrimSpace(f.preset),
		NotificationTarget:       strings.TrimSpace(f.notifyTarget),
		BackupNotificationTarget: strings.TrimSpace(f.backupTarget),
	}
	if cmd.Flags().Changed("overwrite") {
		overwrite := f.overwrite
		req.Overwrite = &overwrite
	}
	if cmd.Flags().Changed("notify-rate") {
		rate := f.notifyRateMS
		req.NotificationRateMillis = &rate
	}
	return req
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "add <source> <destination>",
		Short: "Queue an encode job on the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := flags.request(cmd, args[0], args[1])
			return ctx.withAPI(func(client *api.Client) error {
				job, err := client.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", job.ID, baseName(job.Source))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.id, "id", "", "Job id (generated when omitted)")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued, running and recently finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAPI(func(client *api.Client) error {
				jobs, err := client.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				if activeOnly {
					filtered := jobs[:0]
					for _, job := range jobs {
						if !job.Finished() {
							filtered = append(filtered, job)
						}
					}
					jobs = filtered
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Source", "Lifecycle", "Progress", "Created", "Detail"},
					buildJobRows(cmd, jobs),
					alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Hide finished jobs")
	return cmd
}

func buildJobRows(cmd *cobra.Command, jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			truncate(job.ID, 12),
			truncate(baseName(job.Source), 40),
			colorLifecycle(cmd.OutOrStdout(), job.Lifecycle),
			formatProgress(job.Progress),
			formatWhen(job.CreatedAt),
			truncate(orDash(job.Detail), 48),
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAPI(func(client *api.Client) error {
				job, err := client.GetJob(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderJob(cmd, job))
				return nil
			})
		},
	}
}

func renderJob(cmd *cobra.Command, job *api.Job) string {
	pairs := [][2]string{
		{"ID", job.ID},
		{"Source", job.Source},
		{"Destination", job.Destination},
		{"Preset", job.Preset},
		{"State", job.State},
		{"Lifecycle", colorLifecycle(cmd.OutOrStdout(), job.Lifecycle)},
		{"Progress", formatProgress(job.Progress)},
		{"Detail", orDash(job.Detail)},
		{"Remote job", orDash(job.RemoteJobID)},
		{"Submit result", orDash(job.SubmitResult)},
		{"Retries", fmt.Sprintf("submit %d, abort %d", job.SubmitRetries, job.AbortRetries)},
		{"Created", formatWhen(job.CreatedAt)},
	}
	if job.NotificationTarget != "" {
		pairs = append(pairs, [2]string{"Notify", job.NotificationTarget})
	}
	if job.EndedAt != "" {
		pairs = append(pairs,
			[2]string{"Ended", formatWhen(job.EndedAt)},
			[2]string{"Elapsed", formatDuration(job.CreatedAt, job.EndedAt)},
		)
	}
	if snap := job.Snapshot; snap != nil {
		encoder := snap.JobStatus
		if snap.JobStatusText != "" && snap.JobStatusText != snap.JobStatus {
			encoder += " (" + snap.JobStatusText + ")"
		}
		pairs = append(pairs,
			[2]string{"Encoder job", encoder},
			[2]string{"Encoder server", snap.ServerStatus},
		)
	}
	return renderFields(pairs)
}

func newQueueAbortCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "abort <id>...",
		Short: "Abort queued or running jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAPI(func(client *api.Client) error {
				for _, id := range args {
					job, err := client.AbortJob(cmd.Context(), strings.TrimSpace(id))
					if err != nil {
						return fmt.Errorf("abort %s: %w", id, err)
					}
					if ctx.jsonOutput() {
						if err := writeJSON(cmd, job); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Abort requested for %s (%s)\n", job.ID, job.Lifecycle)
				}
				return nil
			})
		},
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
