package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipspace/internal/daemonctl"
	"clipspace/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the clipspace daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the clipspace daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := daemonctl.Stop(ctx.socketPath(), 10*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the clipspace daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			stopErr := daemonctl.Stop(ctx.socketPath(), 10*time.Second)
			if stopErr != nil && !errors.Is(stopErr, daemonctl.ErrDaemonNotRunning) {
				return stopErr
			}
			if stopErr == nil {
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.State == daemonctl.StartStateStarted {
				fmt.Fprintln(stdout, "Daemon restarted")
			} else {
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if statusJSON {
					return writeJSON(cmd, status)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(stdout, line)
				}
				runKind := statusError
				runDetail := "not running"
				if status.Running {
					runKind = statusOK
					runDetail = fmt.Sprintf("pid %d", status.PID)
				}
				fmt.Fprintln(stdout, renderStatusLine("State", runKind, runDetail, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Blobs", statusInfo, status.BlobRoot, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Items", statusInfo, fmt.Sprintf("%d in %d spaces", status.ItemCount, status.SpaceCount), colorize))
				activeSpace := status.ActiveSpace
				if activeSpace == "" {
					activeSpace = "(none)"
				}
				fmt.Fprintln(stdout, renderStatusLine("Active space", statusInfo, activeSpace, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Spaces enabled", statusInfo, yesNo(status.SpacesEnabled), colorize))

				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(stdout, line)
				}
				rows := buildJobCountRows(status.JobCounts)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No jobs recorded")
					return nil
				}
				fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func buildJobCountRows(counts map[string]int) [][]string {
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{state, fmt.Sprintf("%d", counts[state])})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
