package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rendis/gridrank/internal/engine/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <scan-id>",
	Short: "Export a stored scan as CSV, JSON or YAML",
	Args:  cobra.ExactArgs(1),
	Example: `  gridrank export 3f1c... --format csv --table competitors --output rivals.csv
  gridrank export 3f1c... --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatStr, _ := cmd.Flags().GetString("format")
		tableStr, _ := cmd.Flags().GetString("table")
		output, _ := cmd.Flags().GetString("output")

		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		table := export.Table(tableStr)
		if table != export.TablePoints && table != export.TableCompetitors {
			return eris.Errorf("--table must be %s or %s", export.TablePoints, export.TableCompetitors)
		}

		deps, err := initDeps()
		if err != nil {
			return err
		}
		defer deps.Close() //nolint:errcheck

		entry, err := deps.Store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return eris.Wrap(err, "export: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := export.Write(w, *entry, format, table); err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Exported %s to %s\n", entry.ID, output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "output format: csv, json or yaml")
	exportCmd.Flags().String("table", string(export.TablePoints), "csv table: points or competitors")
	exportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
