package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage web-page monitors",
	}

	checkCmd := &cobra.Command{
		Use:   "check <id>",
		Short: "Queue an immediate check for a monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MonitorCheck(args[0])
				if err != nil {
					return err
				}
				if !resp.Queued {
					return fmt.Errorf("check was not queued")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Check queued for %s\n", args[0])
				return nil
			})
		},
	}

	monitorCmd.AddCommand(checkCmd)
	return monitorCmd
}
