package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sumcheck/internal/config"
	"sumcheck/internal/logging"
	"sumcheck/internal/titlecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear content-title sidecars",
	}
	cacheCmd.AddCommand(newCacheShowCommand())
	cacheCmd.AddCommand(newCacheClearCommand())
	return cacheCmd
}

func newCacheShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <pdf>...",
		Short: "Print the cached content title of each PDF",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := titlecache.New(logging.NewNop())
			rows := make([][]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				title, ok, err := cache.Read(path)
				var state string
				switch {
				case err != nil:
					state = "error: " + err.Error()
				case !ok:
					state = "not extracted"
				case title == "":
					state = "no title found"
				default:
					state = title
				}
				rows = append(rows, []string{filepath.Base(path), state})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{wideCol("PDF"), wideCol("Cached title")}, rows))
			return nil
		},
	}
}

func newCacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <pdf>...",
		Short: "Remove title sidecars so the next match extracts again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := titlecache.New(logging.NewNop())
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				if err := cache.Invalidate(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", filepath.Base(titlecache.SidecarPath(path)))
			}
			return nil
		},
	}
}
