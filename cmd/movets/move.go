package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gnana997/movets/pkg/mover"
)

type moveFunc func(ctx context.Context, a *app) (*mover.Result, error)

// runMove opens the workspace, asks for confirmation when the settings want
// it, runs do and prints the outcome.
func runMove(cmd *cobra.Command, opts *globalOptions, title string, question func(a *app) string, do moveFunc) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if !opts.dryRun && !opts.yes && a.settings.NeedsConfirmation() {
		if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), question(a)) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	result, err := do(ctx, a)
	if opts.dryRun && a.overlay != nil {
		fmt.Fprint(out, formatDryRun(a.root, a.overlay))
	} else {
		fmt.Fprint(out, formatSummary(a.root, title, result))
	}
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d file(s) could not be rewritten", len(result.Failed))
	}
	return nil
}

func newMoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "move <source> <target>",
		Short: "Move a file or directory and rewrite its imports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			item, err := mover.NewItem(paths[0], paths[1])
			if err != nil {
				return err
			}
			return runMove(cmd, opts, "Moved",
				func(a *app) string {
					return fmt.Sprintf("Move %s to %s and rewrite %d dependent file(s)?",
						rel(a.root, item.SourcePath), rel(a.root, item.TargetPath), len(a.idx.Dependents(item.SourcePath)))
				},
				func(ctx context.Context, a *app) (*mover.Result, error) {
					return a.coord.Move(ctx, item)
				})
		},
	}
}

// batchFile is the YAML (or JSON) list read by `batch --file`.
type batchFile struct {
	Moves []struct {
		Source string `yaml:"source"`
		Target string `yaml:"target"`
	} `yaml:"moves"`
}

// parseBatchArgs reads moves from source:target pairs and, when file is set,
// from a batch file. File paths are relative to the file's directory.
func parseBatchArgs(args []string, file string) ([]mover.MoveItem, error) {
	var pairs [][2]string
	for _, arg := range args {
		source, target, ok := strings.Cut(arg, ":")
		if !ok || source == "" || target == "" {
			return nil, fmt.Errorf("invalid move %q, expected <source>:<target>", arg)
		}
		pairs = append(pairs, [2]string{source, target})
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		var bf batchFile
		if err := yaml.Unmarshal(data, &bf); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		base := filepath.Dir(file)
		for i, m := range bf.Moves {
			if m.Source == "" || m.Target == "" {
				return nil, fmt.Errorf("%s: move %d needs source and target", file, i+1)
			}
			pairs = append(pairs, [2]string{joinIfRelative(base, m.Source), joinIfRelative(base, m.Target)})
		}
	}

	items := make([]mover.MoveItem, 0, len(pairs))
	for _, p := range pairs {
		abs, err := absPaths(p[:])
		if err != nil {
			return nil, err
		}
		item, err := mover.NewItem(abs[0], abs[1])
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func joinIfRelative(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		file  string
		index bool
	)
	cmd := &cobra.Command{
		Use:   "batch [<source>:<target>...]",
		Short: "Move several paths in order; all moves are validated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseBatchArgs(args, file)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("no moves given")
			}
			return runMove(cmd, opts, "Batch moved",
				func(a *app) string {
					return fmt.Sprintf("Move %d path(s) and rewrite their imports?", len(items))
				},
				func(ctx context.Context, a *app) (*mover.Result, error) {
					if cmd.Flags().Changed("index") {
						return a.coord.MoveBatchWith(ctx, items, index)
					}
					return a.coord.MoveBatch(ctx, items)
				})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with a list of moves under \"moves\"")
	cmd.Flags().BoolVar(&index, "index", false, "Write index.ts next to each target lacking one (default from settings)")
	return cmd
}

func newSiblingsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "siblings <target-dir> <source>...",
		Short: "Move entries of one directory into another together",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			targetDir, sources := paths[0], paths[1:]
			return runMove(cmd, opts, "Moved together",
				func(a *app) string {
					return fmt.Sprintf("Move %d entries into %s?", len(sources), rel(a.root, targetDir))
				},
				func(ctx context.Context, a *app) (*mover.Result, error) {
					return a.coord.MoveSiblings(ctx, sources, targetDir)
				})
		},
	}
}

func newComponentizeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "componentize <dir>",
		Short: "Give every PascalCase .tsx file under dir its own folder and index.ts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			return runMove(cmd, opts, "Componentized",
				func(a *app) string {
					return fmt.Sprintf("Move every component under %s into its own folder?", rel(a.root, paths[0]))
				},
				func(ctx context.Context, a *app) (*mover.Result, error) {
					return a.coord.Componentize(ctx, paths[0])
				})
		},
	}
}
