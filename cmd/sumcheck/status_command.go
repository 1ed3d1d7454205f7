package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"sumcheck/internal/config"
	"sumcheck/internal/daemon"
	"sumcheck/internal/journal"
	"sumcheck/internal/logging"
	"sumcheck/internal/watcher"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show watched locations, records, and journal totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			instance := statusSection{title: "Instance"}
			held, err := daemon.LockHeld(cfg)
			switch {
			case err != nil:
				instance.add("Watcher", statusWarn, err.Error())
			case held:
				instance.add("Watcher", statusOK, "running")
			default:
				instance.add("Watcher", statusInfo, "not running")
			}
			instance.add("Filing", statusInfo,
				fmt.Sprintf("%s, rename %s, prefix %s", cfg.Filing.Operation, yesNo(cfg.Filing.AutoRename), cfg.Filing.IdentifierPrefix))

			w := watcher.New(nil, watcher.OptionsFromConfig(cfg, logging.NewNop()))
			if err := w.UpdatePaths(watcher.PathsFromConfig(cfg)); err != nil {
				return err
			}
			folders := rootsSection(w.Roots())

			records := statusSection{title: "Records"}
			loaded, err := daemon.SourceFor(cfg).Load(cmd.Context())
			switch {
			case cfg.SourcePath() == "":
				records.add("Source", statusWarn, "no records file configured")
			case err != nil:
				records.add("Source", statusError, err.Error())
			default:
				records.add("Source", statusOK, fmt.Sprintf("%d records from %s", len(loaded), cfg.SourcePath()))
			}

			sections := []statusSection{instance, folders, records}
			fmt.Fprintln(out, overallLine(sections))
			for _, s := range sections {
				fmt.Fprintln(out)
				s.render(out, colorize)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "== Journal ==")
			return printJournalCounts(cmd.Context(), out, cfg)
		},
	}
}

func printJournalCounts(ctx context.Context, out io.Writer, cfg *config.Config) error {
	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	if j == nil {
		fmt.Fprintln(out, "Journal disabled")
		return nil
	}
	defer j.Close()
	counts, err := j.Counts(ctx)
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Fprintln(out, "Journal is empty")
		return nil
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, strconv.Itoa(counts[journal.Kind(kind)])})
	}
	fmt.Fprint(out, renderTable([]column{textCol("Kind"), numCol("Count")}, rows))
	return nil
}
