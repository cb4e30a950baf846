package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/flatfile/internal/catalog"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the registered formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFormats(cmd, catalog.All())
	},
}

type formatRow struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Mode        string   `json:"mode"`
	Table       string   `json:"table,omitempty"`
	Columns     []string `json:"columns"`
	Description string   `json:"description,omitempty"`
}

func printFormats(cmd *cobra.Command, defs []catalog.Definition) error {
	rows := make([]formatRow, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, formatRow{
			Key:         def.Info.Key,
			Label:       def.Info.Label,
			Mode:        def.Info.Mode,
			Table:       def.Info.Table,
			Columns:     def.Info.Columns,
			Description: def.Info.Description,
		})
	}

	out := cmd.OutOrStdout()
	switch opts.Output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "table", "":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tMODE\tTABLE\tCOLUMNS")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key, r.Mode, r.Table, strings.Join(r.Columns, ","))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("invalid --output %q: want table or json", opts.Output)
	}
}
