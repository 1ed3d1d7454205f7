package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"sumcheck/internal/config"
	"sumcheck/internal/daemon"
	"sumcheck/internal/filer"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <pdf>...",
		Short: "Show which record each PDF matches without renaming anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newCommandLogger(cfg)
			if err != nil {
				return err
			}
			records, err := daemon.SourceFor(cfg).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load records: %w", err)
			}
			engine := daemon.NewEngine(cfg, logger)

			rows := make([][]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				res := engine.Match(cmd.Context(), path, records)
				if !res.Matched {
					rows = append(rows, []string{filepath.Base(path), "-", "", "", ""})
					continue
				}
				rows = append(rows, []string{
					filepath.Base(path),
					res.Record.Identifier,
					string(res.Via),
					strconv.FormatFloat(res.Score, 'f', 3, 64),
					res.Record.Title,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]column{wideCol("PDF"), textCol("Identifier"), textCol("Via"), numCol("Score"), wideCol("Title")},
				rows,
			))
			return nil
		},
	}
}

func newFileCommand(ctx *commandContext) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:   "file <pdf>",
		Short: "Match one PDF and rename it to its tagged name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			f, closeFn, err := commandFiler(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			f.SetHint(hint)
			out, err := f.File(cmd.Context(), path)
			if errors.Is(err, filer.ErrAlreadyTagged) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already tagged\n", filepath.Base(path))
				return nil
			}
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch {
			case !out.Result.Matched:
				fmt.Fprintf(stdout, "No matching record for %s\n", filepath.Base(path))
			case out.Renamed:
				fmt.Fprintf(stdout, "Filed %s as %s (%s)\n", filepath.Base(path), filepath.Base(out.Filed), out.Result.Via)
			default:
				fmt.Fprintf(stdout, "Matched %s to %s (%s); auto_rename is off\n", filepath.Base(path), out.Result.Record.Identifier, out.Result.Via)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "Identifier to assign, bypassing the match cascade")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Match and rename every untagged PDF in the PDF folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			f, closeFn, err := commandFiler(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			summary, err := f.Scan(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Scanned", strconv.Itoa(summary.Scanned)},
				{"Matched", strconv.Itoa(summary.Matched)},
				{"Unmatched", strconv.Itoa(summary.Unmatched)},
				{"Failed", strconv.Itoa(summary.Failed)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{textCol("Result"), numCol("Count")}, rows))
			return nil
		},
	}
}

// commandFiler builds a filer with records loaded and the journal open. The
// returned func closes the journal.
func commandFiler(cmd *cobra.Command, cfg *config.Config) (*filer.Filer, func(), error) {
	logger, err := newCommandLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	j, err := openJournal(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if j != nil {
			_ = j.Close()
		}
	}
	f := daemon.NewFiler(cfg, logger, j)
	if cfg.SourcePath() != "" {
		if err := f.Reload(cmd.Context()); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return f, closeFn, nil
}
