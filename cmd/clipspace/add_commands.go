package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var spaceFlag string

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Capture content into the store",
	}
	addCmd.PersistentFlags().StringVar(&spaceFlag, "space", "", "Space to file the item under")

	textCmd := &cobra.Command{
		Use:   "text [content]",
		Short: "Capture plain text (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("no text to capture")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddText(text, spaceFlag)
				if err != nil {
					return err
				}
				return printReceipt(cmd, resp.Receipt)
			})
		},
	}

	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Capture a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("inspect path %q: %w", path, err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddFile(path, spaceFlag)
				if err != nil {
					return err
				}
				return printReceipt(cmd, resp.Receipt)
			})
		},
	}

	urlCmd := &cobra.Command{
		Use:   "url <url>",
		Short: "Capture a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddURL(args[0], spaceFlag)
				if err != nil {
					return err
				}
				return printReceipt(cmd, resp.Receipt)
			})
		},
	}

	addCmd.AddCommand(textCmd, fileCmd, urlCmd)
	return addCmd
}

func printReceipt(cmd *cobra.Command, receipt ipc.IngestReceipt) error {
	stdout := cmd.OutOrStdout()
	if !receipt.Success {
		return fmt.Errorf("capture failed: %s", receipt.Error)
	}
	switch {
	case receipt.Duplicate:
		fmt.Fprintf(stdout, "Duplicate of %s (%s)\n", receipt.ID, receipt.Kind)
	case receipt.VideoURL:
		fmt.Fprintf(stdout, "Captured %s (%s, video fetch queued)\n", receipt.ID, receipt.Kind)
	default:
		fmt.Fprintf(stdout, "Captured %s (%s)\n", receipt.ID, receipt.Kind)
	}
	return nil
}
