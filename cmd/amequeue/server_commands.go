package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"amequeue/internal/services/ame"
)

func newServerCommand(ctx *commandContext) *cobra.Command {
	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Query or control the encoding server",
	}
	serverCmd.AddCommand(newServerStatusCommand(ctx))
	serverCmd.AddCommand(newServerStartCommand(ctx))
	serverCmd.AddCommand(newServerStopCommand(ctx))
	return serverCmd
}

func newServerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the encoding server status and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				info, err := client.ServerStatus(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, info)
				}
				fmt.Fprint(cmd.OutOrStdout(), renderFields([][2]string{
					{"Server", client.BaseURL()},
					{"Status", describeStatus(string(info.ServerStatus), info.ServerStatusText)},
					{"Address", fmt.Sprintf("%s:%d", orDash(info.ServerIP), info.ServerPort)},
					{"Restart threshold", strconv.Itoa(info.RestartThreshold)},
					{"History size", strconv.Itoa(info.JobHistorySize)},
					{"Current job", describeStatus(string(info.JobStatus), info.JobStatusText)},
				}))
				return nil
			})
		},
	}
}

func newServerStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Ask the web service to launch the encoding server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				if err := client.StartServer(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Encoding server start requested")
				return nil
			})
		},
	}
}

func newServerStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the web service to shut the encoding server down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withGateway(func(client *ame.Client) error {
				if err := client.StopServer(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Encoding server stop requested")
				return nil
			})
		},
	}
}

func describeStatus(status, text string) string {
	if status == "" {
		return "-"
	}
	if text == "" || text == status {
		return status
	}
	return status + " (" + text + ")"
}
