package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"sumcheck/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent filing history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j, err := openJournal(cfg)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if j == nil {
				fmt.Fprintln(stdout, "Journal disabled")
				return nil
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(stdout, "No history yet")
				return nil
			}
			fmt.Fprint(stdout, renderTable(
				[]column{numCol("#"), textCol("When"), textCol("Kind"), wideCol("PDF"), textCol("Identifier"), textCol("Via")},
				historyRows(entries),
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultRecentLimit, "Number of entries to show")
	return cmd
}

func historyRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		name := filepath.Base(e.PDFPath)
		if e.FiledPath != "" {
			name = filepath.Base(e.FiledPath)
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			string(e.Kind),
			name,
			e.Identifier,
			e.Via,
		})
	}
	return rows
}
