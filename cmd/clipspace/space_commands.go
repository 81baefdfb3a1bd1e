package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

func newSpacesCommand(ctx *commandContext) *cobra.Command {
	spacesCmd := &cobra.Command{
		Use:   "spaces",
		Short: "Manage spaces",
	}

	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List spaces with item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SpaceList()
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Spaces) == 0 {
					fmt.Fprintln(stdout, "No spaces")
					return nil
				}
				rows := make([][]string, 0, len(resp.Spaces))
				for _, space := range resp.Spaces {
					system := ""
					if space.IsSystem {
						system = "system"
					}
					rows = append(rows, []string{
						space.ID,
						space.Name,
						space.Icon,
						system,
						fmt.Sprintf("%d", space.ItemCount),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Name", "Icon", "Type", "Items"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit spaces as JSON")

	var createIcon string
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a space",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SpaceCreate(args[0], createIcon)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created space %s (%s)\n", resp.Space.Name, resp.Space.ID)
				return nil
			})
		},
	}
	createCmd.Flags().StringVar(&createIcon, "icon", "", "Icon name for the space")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a space (items move to unclassified)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SpaceDelete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted space %s\n", args[0])
				return nil
			})
		},
	}

	useCmd := &cobra.Command{
		Use:   "use [id]",
		Short: "Set the active capture space (no argument clears it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spaceID := ""
			if len(args) == 1 {
				spaceID = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetActiveSpace(spaceID)
				if err != nil {
					return err
				}
				if resp.ActiveSpace == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Active space cleared")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Active space set to %s\n", resp.ActiveSpace)
				}
				return nil
			})
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable space-directed capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSpacesEnabled(cmd, ctx, true)
		},
	}
	disableCmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable space-directed capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setSpacesEnabled(cmd, ctx, false)
		},
	}

	spacesCmd.AddCommand(listCmd, createCmd, deleteCmd, useCmd, enableCmd, disableCmd)
	return spacesCmd
}

func setSpacesEnabled(cmd *cobra.Command, ctx *commandContext, enabled bool) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.SetSpacesEnabled(enabled)
		if err != nil {
			return err
		}
		if resp.Enabled {
			fmt.Fprintln(cmd.OutOrStdout(), "Spaces enabled")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "Spaces disabled")
		}
		return nil
	})
}
