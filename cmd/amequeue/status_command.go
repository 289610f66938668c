package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"amequeue/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and encoder status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAPI(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderDaemonStatus(status))
				return nil
			})
		},
	}
}

func renderDaemonStatus(status *api.DaemonStatus) string {
	queueState := status.Queue.State
	if status.Queue.Active != "" {
		queueState += " (" + status.Queue.Active + ")"
	}
	server := orDash(status.Server.Status)
	if status.Server.CheckedAt != "" {
		server += ", checked " + formatWhen(status.Server.CheckedAt)
	}
	if status.Server.Detail != "" {
		server += ": " + status.Server.Detail
	}

	var b strings.Builder
	b.WriteString(renderFields([][2]string{
		{"Daemon", fmt.Sprintf("running=%s pid=%d", yesNo(status.Running), status.PID)},
		{"Accepting", yesNo(status.Accepting)},
		{"Encoder", status.GatewayURL},
		{"Encoder status", server},
		{"Callback", orDash(status.CallbackURL)},
		{"Queue", queueState},
		{"Backlog", strconv.Itoa(len(status.Queue.Backlog))},
		{"Registered", strconv.Itoa(status.Registered)},
	}))

	if len(status.Counts) > 0 {
		keys := make([]string, 0, len(status.Counts))
		for key := range status.Counts {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			if status.Counts[key] == 0 {
				continue
			}
			rows = append(rows, []string{key, strconv.Itoa(status.Counts[key])})
		}
		if len(rows) > 0 {
			b.WriteString(renderTable([]string{"Lifecycle", "Jobs"}, rows, alignLeft, alignRight))
		}
	}
	return b.String()
}
