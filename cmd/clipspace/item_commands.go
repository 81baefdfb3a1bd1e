package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Inspect and manage individual items",
	}

	var showJSON bool
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item, including its textual content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ItemDescribe(args[0])
				if err != nil {
					return err
				}
				if showJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				item := resp.Item
				fmt.Fprintf(stdout, "ID:       %s\n", item.ID)
				fmt.Fprintf(stdout, "Kind:     %s", item.Kind)
				if item.Subkind != "" {
					fmt.Fprintf(stdout, "/%s", item.Subkind)
				}
				fmt.Fprintln(stdout)
				if item.SpaceID != "" {
					fmt.Fprintf(stdout, "Space:    %s\n", item.SpaceID)
				}
				fmt.Fprintf(stdout, "Pinned:   %s\n", yesNo(item.Pinned))
				fmt.Fprintf(stdout, "Captured: %s\n", item.CreatedAt)
				if len(item.Derivations) > 0 {
					fmt.Fprintln(stdout, "Derivations:")
					for kind, state := range item.Derivations {
						fmt.Fprintf(stdout, "  %-16s %s\n", kind, state)
					}
				}
				if resp.Content != "" {
					fmt.Fprintln(stdout)
					fmt.Fprintln(stdout, resp.Content)
				}
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Emit item as JSON")

	rmCmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DeleteItems(args)
				if err != nil {
					return err
				}
				return printBulkReceipt(cmd, "Deleted", resp.Receipt)
			})
		},
	}

	pinCmd := &cobra.Command{
		Use:   "pin <id>",
		Short: "Toggle the pinned flag on an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TogglePin(args[0])
				if err != nil {
					return err
				}
				if resp.Pinned {
					fmt.Fprintf(cmd.OutOrStdout(), "Pinned %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Unpinned %s\n", args[0])
				}
				return nil
			})
		},
	}

	var moveSpace string
	moveCmd := &cobra.Command{
		Use:   "move <id>...",
		Short: "Move items to a space",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MoveItems(args, moveSpace)
				if err != nil {
					return err
				}
				return printBulkReceipt(cmd, "Moved", resp.Receipt)
			})
		},
	}
	moveCmd.Flags().StringVar(&moveSpace, "space", "", `Target space ("" = unclassified)`)

	itemCmd.AddCommand(showCmd, rmCmd, pinCmd, moveCmd)
	return itemCmd
}

func printBulkReceipt(cmd *cobra.Command, verb string, receipt ipc.BulkReceipt) error {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "%s %d item(s)\n", verb, len(receipt.Succeeded))
	for _, failure := range receipt.Failed {
		fmt.Fprintf(stdout, "  %s: %s\n", failure.ID, failure.Error)
	}
	if !receipt.Success {
		return fmt.Errorf("%d item(s) failed", len(receipt.Failed))
	}
	return nil
}
