package mover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gnana997/movets/pkg/indexer"
	"github.com/gnana997/movets/pkg/parser"
	"github.com/gnana997/movets/pkg/resolver"
	"github.com/gnana997/movets/pkg/workspace"
)

// NewItem builds a MoveItem for source, looking at the file system to tell
// files from directories. Both paths are made absolute.
func NewItem(source, target string) (MoveItem, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return MoveItem{}, err
	}
	dst, err := filepath.Abs(target)
	if err != nil {
		return MoveItem{}, err
	}
	item := MoveItem{SourcePath: src, TargetPath: dst}
	if info, err := os.Stat(src); err == nil {
		item.IsDir = info.IsDir()
	}
	return item, nil
}

// validate checks every item before anything is modified.
func (c *Coordinator) validate(items []MoveItem) error {
	store := c.idx.Store()
	targets := make(map[string]struct{}, len(items))

	for _, item := range items {
		src := filepath.Clean(item.SourcePath)
		dst := filepath.Clean(item.TargetPath)

		if src == dst {
			return phaseErr(PhaseValidating, src, ErrSamePath)
		}
		if !store.Exists(src) {
			return phaseErr(PhaseValidating, src, ErrSourceMissing)
		}
		if _, dup := targets[dst]; dup || store.Exists(dst) {
			return phaseErr(PhaseValidating, dst, ErrTargetExists)
		}
		if item.IsDir && resolver.Contains(src, dst) {
			return phaseErr(PhaseValidating, dst, ErrSelfNestedMove)
		}
		targets[dst] = struct{}{}
	}
	return nil
}

// MoveSiblings moves entries of one directory into targetDir together.
// Specifiers between the moved entries are kept; specifiers between them
// and the entries left behind are rewritten both ways.
func (c *Coordinator) MoveSiblings(ctx context.Context, sources []string, targetDir string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(sources) == 0 {
		return &Result{}, nil
	}

	parent := filepath.Dir(sources[0])
	items := make([]MoveItem, 0, len(sources))
	members := make([]string, 0, len(sources))
	for _, src := range sources {
		if filepath.Dir(src) != parent {
			return nil, phaseErr(PhaseValidating, src, fmt.Errorf("%s is not in %s", filepath.Base(src), parent))
		}
		item, err := NewItem(src, filepath.Join(targetDir, filepath.Base(src)))
		if err != nil {
			return nil, phaseErr(PhaseValidating, src, err)
		}
		items = append(items, item)
		members = append(members, filepath.Base(src))
	}
	if err := c.validate(items); err != nil {
		return nil, err
	}
	for _, item := range items {
		if resolver.Contains(item.SourcePath, targetDir) {
			return nil, phaseErr(PhaseValidating, targetDir, ErrSelfNestedMove)
		}
	}

	scope := indexer.Scope{Root: parent, Members: members, Extensions: c.idx.Extensions()}
	return c.moveScope(ctx, scope, targetDir)
}

// MoveBatch moves independent items one after another in the given order.
// All items are validated first. When SynthesizeIndex is set an index file
// re-exporting the moved entry is written next to each target that lacks
// one. The first failing item stops the batch.
func (c *Coordinator) MoveBatch(ctx context.Context, items []MoveItem) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch(ctx, items, c.opts.SynthesizeIndex)
}

// MoveBatchWith is MoveBatch with index synthesis chosen by the caller.
func (c *Coordinator) MoveBatchWith(ctx context.Context, items []MoveItem, synthesize bool) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch(ctx, items, synthesize)
}

func (c *Coordinator) batch(ctx context.Context, items []MoveItem, synthesize bool) (*Result, error) {
	if err := c.validate(items); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, item := range items {
		c.logger.Debug("Batch move", "item", i+1, "of", len(items), "source", item.SourcePath)
		r, err := c.move(ctx, item)
		result.merge(r)
		if err != nil {
			return result, err
		}
		if synthesize {
			c.synthesizeIndex(ctx, item.TargetPath, result)
		}
	}
	return result, nil
}

// IndexContent is the text of a synthesized index file for entry name.
func IndexContent(name string) string {
	return fmt.Sprintf("export * from './%s';\n", name)
}

// synthesizeIndex writes an index file next to target unless one exists.
func (c *Coordinator) synthesizeIndex(ctx context.Context, target string, result *Result) {
	store := c.idx.Store()
	indexPath := filepath.Join(filepath.Dir(target), c.opts.IndexFileName)
	if store.Exists(indexPath) {
		return
	}

	base := filepath.Base(target)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if err := store.Create(indexPath, IndexContent(name)); err != nil {
		c.logger.Warn("Could not create index file", "path", indexPath, "error", err)
		result.Failed = append(result.Failed, FileFailure{Path: indexPath, Phase: PhaseWritingIndex, Err: err})
		return
	}
	result.Created = append(result.Created, indexPath)
	if err := c.idx.Refresh(context.WithoutCancel(ctx), []string{indexPath}); err != nil {
		c.logger.Warn("Failed to index created file", "path", indexPath, "error", err)
	}
}

// Componentize moves every PascalCase .tsx file under dir whose folder is
// not already named after it into a folder of its own, <Name>/<Name>.tsx,
// and writes an index file there.
func (c *Coordinator) Componentize(ctx context.Context, dir string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	matcher, err := workspace.NewMatcher(c.idx.Root(), []string{"**/*.tsx"}, c.idx.Matcher().Exclude)
	if err != nil {
		return nil, phaseErr(PhaseValidating, dir, err)
	}
	files, err := matcher.Walk(dir, c.logger)
	if err != nil {
		return nil, phaseErr(PhaseValidating, dir, err)
	}

	items := PlanComponentize(files)
	c.logger.Info("Componentizing", "dir", dir, "components", len(items))
	if len(items) == 0 {
		return &Result{}, nil
	}
	return c.batch(ctx, items, true)
}

// PlanComponentize returns the moves Componentize performs for files.
func PlanComponentize(files []string) []MoveItem {
	var items []MoveItem
	for _, file := range files {
		if !parser.IsTSXFile(file) {
			continue
		}
		base := filepath.Base(file)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		first, _ := utf8.DecodeRuneInString(name)
		if !unicode.IsUpper(first) {
			continue
		}
		dir := filepath.Dir(file)
		if filepath.Base(dir) == name {
			continue
		}
		items = append(items, MoveItem{
			SourcePath: file,
			TargetPath: filepath.Join(dir, name, base),
		})
	}
	return items
}
