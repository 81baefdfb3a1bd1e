package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipspace/internal/ipc"
)

const previewColumnWidth = 48

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var spaceFlag string
	var searchFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List captured items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				req := ipc.HistoryRequest{Query: strings.TrimSpace(searchFlag)}
				if cmd.Flags().Changed("space") {
					space := spaceFlag
					req.SpaceID = &space
				}
				resp, err := client.History(req)
				if err != nil {
					return err
				}
				if jsonFlag {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(stdout, "No items")
					return nil
				}
				rows := buildItemRows(resp.Items)
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Kind", "Pin", "Space", "Preview", "Captured"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&spaceFlag, "space", "", `Limit to one space ("" = unclassified)`)
	cmd.Flags().StringVarP(&searchFlag, "search", "s", "", "Filter items by text query")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit items as JSON")
	return cmd
}

func buildItemRows(items []ipc.ItemRecord) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		kind := item.Kind
		if item.Subkind != "" {
			kind = fmt.Sprintf("%s/%s", item.Kind, item.Subkind)
		}
		pin := ""
		if item.Pinned {
			pin = "*"
		}
		rows = append(rows, []string{
			item.ID,
			kind,
			pin,
			item.SpaceID,
			truncatePreview(item.Preview, previewColumnWidth),
			item.CreatedAt,
		})
	}
	return rows
}

func truncatePreview(preview string, width int) string {
	preview = strings.Join(strings.Fields(preview), " ")
	runes := []rune(preview)
	if width <= 0 || len(runes) <= width {
		return preview
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
