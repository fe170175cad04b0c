package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/WoWHarvest/internal/storage"
	tbl "github.com/IshaanNene/WoWHarvest/internal/table"
)

var (
	showRows    int
	showColumns []string
	showFormat  string
)

// showCmd creates the "show" subcommand.
func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <csv>",
		Short: "Preview a CSV table in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := storage.ReadCSVFile(args[0], tbl.Shared)
			if err != nil {
				return err
			}
			if len(showColumns) > 0 {
				if t, err = t.Select(showColumns...); err != nil {
					return err
				}
			}

			w := table.NewWriter()
			w.SetOutputMirror(cmd.OutOrStdout())
			w.SetStyle(table.StyleLight)

			header := make(table.Row, 0, t.Width())
			for _, name := range t.Names() {
				header = append(header, name)
			}
			w.AppendHeader(header)

			n := t.Len()
			if showRows > 0 && showRows < n {
				n = showRows
			}
			for i := 0; i < n; i++ {
				row := make(table.Row, 0, t.Width())
				for _, c := range t.Row(i) {
					if !c.Valid {
						row = append(row, "")
						continue
					}
					row = append(row, c.Value)
				}
				w.AppendRow(row)
			}
			w.AppendFooter(table.Row{fmt.Sprintf("%d of %d rows, %d columns", n, t.Len(), t.Width())})

			switch showFormat {
			case "table", "":
				w.Render()
			case "markdown":
				w.RenderMarkdown()
			case "csv":
				w.RenderCSV()
			default:
				fmt.Fprintf(os.Stderr, "unknown format %q, rendering a table\n", showFormat)
				w.Render()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&showRows, "rows", "n", 20, "rows to show (0 = all)")
	cmd.Flags().StringSliceVar(&showColumns, "columns", nil, "columns to show (comma-separated)")
	cmd.Flags().StringVarP(&showFormat, "format", "f", "table", "output format: table, markdown, csv")

	return cmd
}
