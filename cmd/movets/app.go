package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gnana997/movets/pkg/config"
	"github.com/gnana997/movets/pkg/extractor"
	"github.com/gnana997/movets/pkg/indexer"
	"github.com/gnana997/movets/pkg/mover"
	"github.com/gnana997/movets/pkg/parser"
	"github.com/gnana997/movets/pkg/parser/queries"
	"github.com/gnana997/movets/pkg/util"
	"github.com/gnana997/movets/pkg/workspace"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	root       string
	configPath string
	logLevel   string
	logFormat  string
	dryRun     bool
	yes        bool
}

// app is an indexed workspace ready to move files.
type app struct {
	root     string
	settings *config.Settings
	logger   *slog.Logger

	pm    *parser.ParserManager
	qm    *queries.QueryManager
	idx   *indexer.ReferenceIndexer
	coord *mover.Coordinator

	overlay *workspace.OverlayStore // set for dry runs
	buffers *workspace.BufferStore  // set when open_editors is on
}

// scanOptions maps settings onto the indexer's scan options.
func scanOptions(s *config.Settings) indexer.ScanOptions {
	opts := indexer.DefaultScanOptions()
	opts.Include = s.FilesToScan
	opts.Exclude = s.Exclude
	opts.Extensions = s.Extensions
	opts.RelativeToTsconfig = s.RelativeToTsconfig
	return opts
}

func newLogger(opts *globalOptions, s *config.Settings) *slog.Logger {
	cfg := util.DefaultLoggerConfig()
	cfg.Level = util.ParseLogLevel(s.Log.Level)
	if opts.logLevel != "" {
		cfg.Level = util.ParseLogLevel(opts.logLevel)
	}
	cfg.Format = util.LogFormat(s.Log.Format)
	if opts.logFormat != "" {
		cfg.Format = util.LogFormat(opts.logFormat)
	}
	return util.NewLogger(cfg)
}

// openApp loads settings, picks a store and indexes the workspace.
func openApp(ctx context.Context, opts *globalOptions) (*app, error) {
	root, err := filepath.Abs(opts.root)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(root, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	logger := newLogger(opts, settings)

	a := &app{root: root, settings: settings, logger: logger}

	var store workspace.Store = workspace.NewDiskStore(logger)
	if settings.OpenEditors {
		buffers, err := workspace.DialBufferStore(settings.NvimAddress, logger)
		if err != nil {
			return nil, err
		}
		a.buffers = buffers
		store = buffers
	}
	if opts.dryRun {
		a.overlay = workspace.NewOverlayStore(store)
		store = a.overlay
	}

	a.pm = parser.NewParserManager(logger)
	a.qm = queries.NewQueryManager(a.pm, logger)
	ext := extractor.NewExtractor(a.pm, a.qm, logger)

	a.idx, err = indexer.NewReferenceIndexer(root, ext, store, scanOptions(settings), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	stats, err := a.idx.Reindex(ctx, nil)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to index %s: %w", root, err)
	}
	logger.Debug("Workspace indexed",
		"root", root,
		"files", stats.FilesIndexed,
		"failed", stats.FilesFailed,
		"ms", stats.TotalTimeMs)
	for _, name := range a.idx.Resolver().Ambiguous() {
		logger.Warn("Package name declared more than once; its specifiers are left alone", "package", name)
	}

	moverOpts := mover.DefaultOptions()
	moverOpts.SynthesizeIndex = settings.SynthesizeIndex
	a.coord = mover.NewCoordinator(a.idx, moverOpts, logger)
	return a, nil
}

// Close releases parsers and the editor connection.
func (a *app) Close() {
	if a.qm != nil {
		a.qm.Close()
	}
	if a.pm != nil {
		a.pm.Close()
	}
	if a.buffers != nil {
		if err := a.buffers.Close(); err != nil {
			a.logger.Debug("Failed to close neovim connection", "error", err)
		}
	}
}

// absPaths makes command line paths absolute against the working directory.
func absPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}
