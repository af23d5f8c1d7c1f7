// Package mover relocates files and directories and rewrites every import
// specifier the relocation affects.
package mover

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gnana997/movets/pkg/editor"
	"github.com/gnana997/movets/pkg/extractor"
	"github.com/gnana997/movets/pkg/indexer"
	"github.com/gnana997/movets/pkg/parser"
	"github.com/gnana997/movets/pkg/resolver"
	"github.com/gnana997/movets/pkg/workspace"
)

// Coordinator runs moves against a ReferenceIndexer.
//
// **Order of a move:**
//  1. Validate; nothing is touched on failure
//  2. Rewrite files that import the moved paths
//  3. Rewrite the moved files' own outward specifiers, still at their old
//     location
//  4. Rename
//  5. Drop the old paths from the graph and rescan new and rewritten paths
//
// A failure to rewrite one file is recorded in Result.Failed and the move
// goes on. A rename failure stops the move with the files rewritten so far
// listed in the result. Moves are serialized.
type Coordinator struct {
	idx    *indexer.ReferenceIndexer
	opts   Options
	logger *slog.Logger

	mu sync.Mutex
}

// NewCoordinator creates a coordinator that reads and writes through the
// indexer's store.
func NewCoordinator(idx *indexer.ReferenceIndexer, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.IndexFileName == "" {
		opts.IndexFileName = DefaultIndexFileName
	}
	return &Coordinator{idx: idx, opts: opts, logger: logger}
}

// Indexer returns the indexer the coordinator works on.
func (c *Coordinator) Indexer() *indexer.ReferenceIndexer {
	return c.idx
}

// planFunc returns the new specifier for an occurrence, or false to leave it.
type planFunc func(occ extractor.Occurrence) (string, bool)

// rewrite applies plan to the specifiers of path. origin is the location the
// specifiers are interpreted against. It reports whether the file changed.
func (c *Coordinator) rewrite(engine *editor.Engine, path, origin string, plan planFunc) (bool, error) {
	store := c.idx.Store()

	text, err := store.ReadText(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	occurrences, err := c.idx.Extractor().ExtractSpecifiers(path, []byte(text))
	if err != nil {
		return false, err
	}

	var replacements []editor.Replacement
	for _, occ := range occurrences {
		if spec, ok := plan(occ); ok && spec != occ.Specifier {
			replacements = append(replacements, editor.Replacement{Old: occ.Specifier, New: spec})
		}
	}
	if len(replacements) == 0 {
		return false, nil
	}

	updated, edits, err := engine.Rewrite(origin, text, occurrences, replacements)
	if err != nil {
		return false, err
	}
	if len(edits) == 0 {
		return false, nil
	}

	if err := store.Persist(path, workspace.Change{Original: text, Updated: updated, Edits: edits}); err != nil {
		return false, err
	}
	c.logger.Debug("Rewrote specifiers", "file", path, "edits", len(edits))
	return true, nil
}

// rewriteAll rewrites each file and records the outcome in result. Failures
// are tagged with phase.
func (c *Coordinator) rewriteAll(engine *editor.Engine, phase Phase, files []string, origin func(string) string, plan func(file string) planFunc, result *Result) []string {
	var rewritten []string
	for _, file := range files {
		changed, err := c.rewrite(engine, file, origin(file), plan(file))
		if err != nil {
			c.logger.Warn("Failed to rewrite file", "file", file, "phase", phase, "error", err)
			result.Failed = append(result.Failed, FileFailure{Path: file, Phase: phase, Err: err})
			continue
		}
		if changed {
			rewritten = append(rewritten, file)
			result.Rewritten = append(result.Rewritten, file)
		}
	}
	return rewritten
}

// outward plans the specifier a file that will live at newPath uses for
// abs. Package and alias specifiers that still resolve to abs from there
// are kept.
func outward(res *resolver.Resolver, occ extractor.Occurrence, newPath, abs string) (string, bool) {
	if !resolver.IsRelative(occ.Specifier) {
		if again, ok := res.Resolve(newPath, occ.Specifier); ok && again == abs {
			return "", false
		}
	}
	return res.SpecifierFor(newPath, abs), true
}

// Move dispatches one item to MoveFile or MoveDir.
func (c *Coordinator) Move(ctx context.Context, item MoveItem) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.validate([]MoveItem{item}); err != nil {
		return nil, err
	}
	return c.move(ctx, item)
}

func (c *Coordinator) move(ctx context.Context, item MoveItem) (*Result, error) {
	if item.IsDir {
		return c.moveScope(ctx, indexer.NewScope(item.SourcePath, c.idx.Extensions()), item.TargetPath)
	}
	return c.moveFile(ctx, item.SourcePath, item.TargetPath)
}

// MoveFile moves one file and rewrites its dependents and its own
// specifiers.
func (c *Coordinator) MoveFile(ctx context.Context, source, target string) (*Result, error) {
	return c.Move(ctx, MoveItem{SourcePath: source, TargetPath: target})
}

// MoveDir moves a directory as a unit. Relative specifiers between files
// inside it are left as they are when they still reach the same file.
func (c *Coordinator) MoveDir(ctx context.Context, source, target string) (*Result, error) {
	return c.Move(ctx, MoveItem{SourcePath: source, TargetPath: target, IsDir: true})
}

func (c *Coordinator) moveFile(ctx context.Context, source, target string) (*Result, error) {
	res := c.idx.Resolver()
	engine := editor.NewEngine(res, c.logger)
	result := &Result{}

	oldAbs := res.StripExtension(source)
	newAbs := res.StripExtension(target)

	var dependents []string
	for _, dep := range c.idx.Graph().GetReferences(source) {
		if dep != source {
			dependents = append(dependents, dep)
		}
	}

	c.logger.Info("Moving file", "source", source, "target", target, "dependents", len(dependents))

	// Dependents: every specifier that reaches the moved file.
	rewritten := c.rewriteAll(engine, PhaseRewritingDependents, dependents,
		func(dep string) string { return dep },
		func(dep string) planFunc {
			return func(occ extractor.Occurrence) (string, bool) {
				abs, ok := res.Resolve(dep, occ.Specifier)
				if !ok || abs != oldAbs {
					return "", false
				}
				return res.SpecifierFor(dep, target), true
			}
		}, result)

	// The moved file itself, interpreted at its old location.
	var self []string
	if parser.DetectLanguage(source) != parser.LanguageUnknown {
		self = []string{source}
	}
	selfChanged := c.rewriteAll(engine, PhaseRewritingSelf, self,
		func(string) string { return source },
		func(string) planFunc {
			return func(occ extractor.Occurrence) (string, bool) {
				abs, ok := res.Resolve(source, occ.Specifier)
				if !ok {
					return "", false
				}
				if abs == oldAbs {
					abs = newAbs
				}
				return outward(res, occ, target, abs)
			}
		}, result)

	store := c.idx.Store()
	if err := store.EnsureParentDir(target); err != nil {
		return result, phaseErr(PhaseRenaming, target, err)
	}
	if err := store.Rename(source, target); err != nil {
		return result, phaseErr(PhaseRenaming, source, err)
	}
	result.Moved = append(result.Moved, MoveItem{SourcePath: source, TargetPath: target})
	if len(selfChanged) > 0 {
		result.Rewritten[indexOf(result.Rewritten, source)] = target
	}

	c.idx.Remove(source)
	refresh := append([]string{target}, rewritten...)
	if err := c.idx.Refresh(context.WithoutCancel(ctx), refresh); err != nil {
		return result, phaseErr(PhaseUpdatingGraph, target, err)
	}
	return result, nil
}

func indexOf(list []string, value string) int {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == value {
			return i
		}
	}
	return -1
}

// scopeEntries returns the paths renamed by a scope move: the root itself,
// or each member of it.
func scopeEntries(scope indexer.Scope) []string {
	if len(scope.Members) == 0 {
		return []string{scope.Root}
	}
	entries := make([]string, len(scope.Members))
	for i, m := range scope.Members {
		entries[i] = filepath.Join(scope.Root, m)
	}
	return entries
}

// scopeFiles lists the source files a scope move carries: indexed files
// plus whatever the store holds that was never indexed.
func (c *Coordinator) scopeFiles(scope indexer.Scope) []string {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok || !scope.Contains(path) {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, file := range c.idx.FilesUnder(scope.Root) {
		add(file)
	}
	for _, entry := range scopeEntries(scope) {
		found, err := c.idx.Matcher().Walk(entry, c.logger)
		if err != nil {
			c.logger.Debug("Failed to list moved files", "path", entry, "error", err)
			continue
		}
		for _, file := range found {
			add(file)
		}
	}
	return files
}

// moveScope moves every path of scope under newRoot.
func (c *Coordinator) moveScope(ctx context.Context, scope indexer.Scope, newRoot string) (*Result, error) {
	res := c.idx.Resolver()
	engine := editor.NewEngine(res, c.logger)
	result := &Result{}

	internal := c.scopeFiles(scope)
	internalSet := make(map[string]struct{}, len(internal))
	for _, f := range internal {
		internalSet[f] = struct{}{}
	}

	var external []string
	seen := make(map[string]struct{})
	for _, edge := range c.idx.Graph().GetDirReferences(scope) {
		if scope.Contains(edge.Importer) {
			continue
		}
		if _, ok := seen[edge.Importer]; ok {
			continue
		}
		seen[edge.Importer] = struct{}{}
		external = append(external, edge.Importer)
	}

	c.logger.Info("Moving directory",
		"source", scope.Root,
		"target", newRoot,
		"members", len(scope.Members),
		"files", len(internal),
		"dependents", len(external))

	// Outside files: specifiers reaching into the scope follow it.
	rewritten := c.rewriteAll(engine, PhaseRewritingDependents, external,
		func(dep string) string { return dep },
		func(dep string) planFunc {
			return func(occ extractor.Occurrence) (string, bool) {
				abs, ok := res.Resolve(dep, occ.Specifier)
				if !ok || !scope.Contains(abs) {
					return "", false
				}
				return res.SpecifierFor(dep, scope.Rebase(abs, newRoot)), true
			}
		}, result)

	// Inside files: relative specifiers between them stay as written unless
	// they pass through the old directory name; those reaching out are
	// recomputed for the new location.
	changed := c.rewriteAll(engine, PhaseRewritingSelf, internal,
		func(file string) string { return file },
		func(file string) planFunc {
			newFile := scope.Rebase(file, newRoot)
			return func(occ extractor.Occurrence) (string, bool) {
				abs, ok := res.Resolve(file, occ.Specifier)
				if !ok {
					return "", false
				}
				if !scope.Contains(abs) {
					return outward(res, occ, newFile, abs)
				}
				rebased := res.StripExtension(scope.Rebase(abs, newRoot))
				if resolver.IsRelative(occ.Specifier) {
					if again, ok := res.Resolve(newFile, occ.Specifier); ok && again == rebased {
						return "", false
					}
					return res.SpecifierFor(newFile, rebased), true
				}
				return outward(res, occ, newFile, rebased)
			}
		}, result)

	store := c.idx.Store()
	for _, entry := range scopeEntries(scope) {
		dest := scope.Rebase(entry, newRoot)
		if err := store.EnsureParentDir(dest); err != nil {
			return result, phaseErr(PhaseRenaming, dest, err)
		}
		if err := store.Rename(entry, dest); err != nil {
			return result, phaseErr(PhaseRenaming, entry, err)
		}
		result.Moved = append(result.Moved, MoveItem{SourcePath: entry, TargetPath: dest, IsDir: len(scope.Members) == 0})
	}
	for _, file := range changed {
		result.Rewritten[indexOf(result.Rewritten, file)] = scope.Rebase(file, newRoot)
	}

	refresh := make([]string, 0, len(internal)+len(rewritten))
	for _, file := range internal {
		c.idx.Remove(file)
		refresh = append(refresh, scope.Rebase(file, newRoot))
	}
	for _, file := range rewritten {
		if _, inside := internalSet[file]; !inside {
			refresh = append(refresh, file)
		}
	}
	if err := c.idx.Refresh(context.WithoutCancel(ctx), refresh); err != nil {
		return result, phaseErr(PhaseUpdatingGraph, newRoot, err)
	}
	return result, nil
}
