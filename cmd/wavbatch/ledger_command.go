package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wavbatch/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	names := make([]string, 0, len(ledger.Tables()))
	for _, t := range ledger.Tables() {
		names = append(names, t.String())
	}

	cmd := &cobra.Command{
		Use:       "ledger <sources|artifacts>",
		Short:     "Print a ledger table",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append([]string{"sources", "artifacts"}, names...),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, ok := ledger.ParseTable(args[0])
			if !ok {
				return fmt.Errorf("unknown ledger table %q (expected sources or artifacts)", args[0])
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			rows, err := store.Query(cmd.Context(), table)
			if err != nil {
				return err
			}
			if asJSON {
				return writeRowsJSON(cmd, rows)
			}

			w := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(w, "%s is empty\n", table)
				return nil
			}
			columns := table.Columns()
			values := make([][]string, 0, len(rows))
			for _, row := range rows {
				values = append(values, row.Values)
			}
			fmt.Fprintln(w, renderTable(w, columns, values, ledgerAlignments(columns)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit rows as JSON objects")
	return cmd
}

func ledgerAlignments(columns []string) []columnAlignment {
	aligns := make([]columnAlignment, len(columns))
	for i, col := range columns {
		if col == "id" || col == "file_size" {
			aligns[i] = alignRight
		}
	}
	return aligns
}

// writeRowsJSON encodes rows as an indented JSON array keyed by column.
func writeRowsJSON(cmd *cobra.Command, rows []ledger.Row) error {
	objects := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string, len(row.Columns))
		for i, col := range row.Columns {
			if i < len(row.Values) {
				obj[strings.TrimSpace(col)] = row.Values[i]
			}
		}
		objects = append(objects, obj)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(objects)
}
