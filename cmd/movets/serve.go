package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/movets/pkg/indexer"
	mcpserver "github.com/gnana997/movets/pkg/mcp"
	"github.com/gnana997/movets/pkg/mcplog"
)

// startWatcher keeps the graph current while a long-running command runs.
func startWatcher(a *app, debounce time.Duration) (*indexer.FileWatcher, error) {
	wopts := indexer.DefaultWatchOptions()
	if debounce > 0 {
		wopts.Debounce = debounce
	}
	watcher, err := indexer.NewFileWatcher(a.idx, wopts, a.logger)
	if err != nil {
		return nil, err
	}
	if err := watcher.Start(); err != nil {
		return nil, err
	}
	return watcher, nil
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index the workspace and keep the reference graph current until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			watcher, err := startWatcher(a, debounce)
			if err != nil {
				return err
			}
			stats := a.idx.Graph().Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d files, %d imports\n",
				headerStyle.Render("Watching "+a.root), stats.Importers, stats.Edges)

			<-cmd.Context().Done()
			return watcher.Stop()
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", indexer.DefaultDebounce, "Quiet period before rescanning changed files")
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		noWatch  bool
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dryRun {
				return fmt.Errorf("--dry-run is not supported by serve")
			}
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			callLog, err := mcplog.NewLogger(a.settings.Log.MCPCallLog)
			if err != nil {
				return err
			}
			if callLog != nil {
				defer callLog.Close()
			}

			if !noWatch {
				watcher, err := startWatcher(a, debounce)
				if err != nil {
					a.logger.Warn("File watching disabled", "error", err)
				} else {
					defer watcher.Stop()
				}
			}

			srv := mcpserver.NewServer(a.coord, callLog, a.logger)
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the workspace for changes")
	cmd.Flags().DurationVar(&debounce, "debounce", indexer.DefaultDebounce, "Quiet period before rescanning changed files")
	return cmd
}
