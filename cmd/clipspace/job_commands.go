package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List derivation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var states []string
				if raw := strings.TrimSpace(stateFlag); raw != "" {
					for _, state := range strings.Split(raw, ",") {
						states = append(states, strings.TrimSpace(state))
					}
				}
				resp, err := client.JobList(states)
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(stdout, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					lastError := job.LastError
					if len(lastError) > 40 {
						lastError = lastError[:37] + "..."
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						job.ItemID,
						job.Kind,
						job.State,
						fmt.Sprintf("%d", job.Attempts),
						fmt.Sprintf("%.0f%%", job.Progress*100),
						lastError,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Item", "Kind", "State", "Tries", "Progress", "Last Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&stateFlag, "state", "", "Filter by comma-separated job states")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit jobs as JSON")
	return cmd
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var language string
	var contextHint string
	var voice string

	cmd := &cobra.Command{
		Use:   "enrich <kind> <item-id>",
		Short: "Queue an AI enrichment job for an item",
		Long: "Queue an AI enrichment job for an item.\n\n" +
			"Kinds: transcribe, speakers, summarize, ai_metadata, tts",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.EnqueueJob(ipc.EnqueueJobRequest{
					ItemID:      args[1],
					Kind:        args[0],
					Language:    language,
					ContextHint: contextHint,
					Voice:       voice,
				})
				if err != nil {
					return err
				}
				if !resp.Queued {
					return fmt.Errorf("job was not queued")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for %s\n", args[0], args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "Language hint for transcription")
	cmd.Flags().StringVar(&contextHint, "context", "", "Context hint for AI metadata")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice for speech synthesis")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove undecodable item rows from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearCorrupt()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d corrupt item(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
