package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/movets/pkg/extractor"
	"github.com/gnana997/movets/pkg/parser"
	"github.com/gnana997/movets/pkg/parser/queries"
	"github.com/gnana997/movets/pkg/util"
	"github.com/gnana997/movets/pkg/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()
	logger := util.NewDiscardLogger()
	parserMgr := parser.NewParserManager(logger)
	queryMgr := queries.NewQueryManager(parserMgr, logger)
	t.Cleanup(func() {
		queryMgr.Close()
		parserMgr.Close()
	})
	return extractor.NewExtractor(parserMgr, queryMgr, logger)
}

// failingStore refuses to read one path.
type failingStore struct {
	*workspace.DiskStore
	broken string
}

func (s failingStore) ReadText(path string) (string, error) {
	if path == s.broken {
		return "", errors.New("disk on fire")
	}
	return s.DiskStore.ReadText(path)
}

func newIndexer(t *testing.T, root string, store workspace.Store) *ReferenceIndexer {
	t.Helper()
	if store == nil {
		store = workspace.NewDiskStore(util.NewDiscardLogger())
	}
	idx, err := NewReferenceIndexer(root, setupExtractor(t), store, DefaultScanOptions(), util.NewDiscardLogger())
	require.NoError(t, err)
	return idx
}

// sampleWorkspace builds a small project with relative, alias and package
// imports.
func sampleWorkspace(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{
  "compilerOptions": { "baseUrl": ".", "paths": { "@lib/*": ["src/lib/*"] } }
}`)
	writeFile(t, filepath.Join(root, "src/a.ts"), "import { b } from './b';\nimport { u } from '@lib/util';\nimport React from 'react';\n")
	writeFile(t, filepath.Join(root, "src/b.ts"), "export { c } from './feature/c';\nexport const b = 1;\n")
	writeFile(t, filepath.Join(root, "src/feature/c.tsx"), "import { b } from '../b';\nexport const c = 2;\n")
	writeFile(t, filepath.Join(root, "src/lib/util.ts"), "export const u = 3;\n")
	writeFile(t, filepath.Join(root, "packages/core/package.json"), `{"name": "@acme/core"}`)
	writeFile(t, filepath.Join(root, "packages/core/src/index.ts"), "import { u } from '@acme/core/src/util';\n")
	writeFile(t, filepath.Join(root, "packages/core/src/util.ts"), "export const u = 4;\n")
	writeFile(t, filepath.Join(root, "node_modules/react/index.ts"), "import x from './ignored';\n")
	return root
}

func TestReindex_BuildsGraph(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)

	var progressCalls int
	stats, err := idx.Reindex(context.Background(), func(indexed, total int, _ string) {
		progressCalls++
		assert.LessOrEqual(t, indexed, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.FilesDiscovered)
	assert.Equal(t, 6, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 1, stats.Unresolved, "react is not a workspace package")
	assert.Equal(t, 1, progressCalls)
	assert.False(t, stats.Cancelled)

	g := idx.Graph()
	p := func(rel string) string { return filepath.Join(root, rel) }

	assert.Equal(t, []string{p("src/a.ts"), p("src/feature/c.tsx")}, g.GetReferences(p("src/b.ts")))
	assert.Equal(t, []string{p("src/a.ts")}, g.GetReferences(p("src/lib/util.ts")))
	assert.Equal(t, []string{p("src/b.ts")}, g.GetReferences(p("src/feature/c.tsx")))
	assert.Equal(t, []string{p("packages/core/src/index.ts")}, g.GetReferences(p("packages/core/src/util.ts")))
	assert.Empty(t, g.References(p("node_modules/react/index.ts")))

	assert.Equal(t, []string{p("src/feature/c.tsx")}, idx.FilesUnder(p("src/feature")))
	assert.Contains(t, idx.Resolver().Packages(), "@acme/core")
}

func TestReindex_Idempotent(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)

	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)
	first := idx.Graph().Stats()

	_, err = idx.Reindex(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, idx.Graph().Stats())
}

func TestReindex_RecordsUnreadableFiles(t *testing.T) {
	root := sampleWorkspace(t)
	broken := filepath.Join(root, "src/b.ts")
	store := failingStore{DiskStore: workspace.NewDiskStore(util.NewDiscardLogger()), broken: broken}
	idx := newIndexer(t, root, store)

	stats, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 5, stats.FilesIndexed)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, broken, stats.Errors[0].FilePath)
	assert.Empty(t, idx.Graph().References(broken))
	assert.NotEmpty(t, idx.Graph().GetReferences(broken), "other files still point at it")
}

func TestReindex_ManyBatches(t *testing.T) {
	root := t.TempDir()
	const n = ScanBatchSize*2 + 7
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("src/f%03d.ts", i)), "import { s } from './shared';\n")
	}
	writeFile(t, filepath.Join(root, "src/shared.ts"), "export const s = 1;\n")

	idx := newIndexer(t, root, nil)
	var batches []int
	stats, err := idx.Reindex(context.Background(), func(indexed, _ int, _ string) {
		batches = append(batches, indexed)
	})
	require.NoError(t, err)

	assert.Equal(t, n+1, stats.FilesIndexed)
	assert.Equal(t, []int{ScanBatchSize, ScanBatchSize * 2, n + 1}, batches)

	importers := idx.Graph().GetReferences(filepath.Join(root, "src/shared.ts"))
	require.Len(t, importers, n)
	assert.Equal(t, filepath.Join(root, "src/f000.ts"), importers[0], "edges applied in scan order")
}

func TestReindex_Cancelled(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Reindex(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, idx.Graph().Stats().Edges, "previous snapshot kept")
}

func TestRefresh(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	a := filepath.Join(root, "src/a.ts")
	b := filepath.Join(root, "src/b.ts")
	lib := filepath.Join(root, "src/lib/util.ts")

	writeFile(t, a, "import { u } from './lib/util';\n")
	require.NoError(t, idx.Refresh(context.Background(), []string{a}))

	assert.Equal(t, []string{lib}, idx.Graph().References(a))
	assert.Equal(t, []string{filepath.Join(root, "src/feature/c.tsx")}, idx.Graph().GetReferences(b))

	// Refreshing a deleted file drops its outgoing edges.
	require.NoError(t, os.Remove(a))
	require.NoError(t, idx.Refresh(context.Background(), []string{a}))
	assert.Empty(t, idx.Graph().References(a))
	assert.Empty(t, idx.Graph().GetReferences(lib))
}

func TestRefreshDocuments(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	a := filepath.Join(root, "src/a.ts")
	err = idx.RefreshDocuments(context.Background(), []Document{{Path: a, Text: "export * from './feature/c';\n"}})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "src/feature/c.tsx")}, idx.Graph().References(a))
}

func TestRemove_Directory(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	idx.Remove(filepath.Join(root, "src/feature"))

	assert.Empty(t, idx.Graph().References(filepath.Join(root, "src/feature/c.tsx")))
	assert.Empty(t, idx.FilesUnder(filepath.Join(root, "src/feature")))
	assert.Equal(t, []string{filepath.Join(root, "src/b.ts")},
		idx.Graph().GetReferences(filepath.Join(root, "src/feature/c.tsx")))
}

func TestWorkerPool_Basic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.ts"), "import { x } from './x';\n")

	store := workspace.NewDiskStore(util.NewDiscardLogger())
	pool := NewWorkerPool(2, setupExtractor(t), store, util.NewDiscardLogger())
	pool.Start()
	defer pool.Stop()

	text := "export * from './y';\n"
	jobs := []FileJob{
		{FilePath: filepath.Join(root, "ok.ts"), JobID: 0},
		{FilePath: filepath.Join(root, "missing.ts"), JobID: 1},
		{FilePath: filepath.Join(root, "unsaved.ts"), JobID: 2, Text: &text},
		{FilePath: filepath.Join(root, "style.css"), JobID: 3, Text: &text},
	}

	results, errs := runBatch(pool, jobs)

	require.NoError(t, errs[0])
	assert.Equal(t, []string{"./x"}, results[0].Specifiers())
	assert.Error(t, errs[1])
	require.NoError(t, errs[2])
	assert.Equal(t, []string{"./y"}, results[2].Specifiers())
	assert.Error(t, errs[3], "unsupported extension")

	stats := pool.GetStats()
	assert.Equal(t, int64(4), stats.JobsSubmitted)
	assert.Equal(t, int64(2), stats.JobsFailed)
	assert.Equal(t, int64(2), stats.JobsProcessed)
}

func TestWorkerPool_StoppedRejectsJobs(t *testing.T) {
	pool := NewWorkerPool(1, setupExtractor(t), workspace.NewDiskStore(util.NewDiscardLogger()), util.NewDiscardLogger())
	pool.Start()
	pool.Stop()
	pool.Stop()

	assert.ErrorIs(t, pool.Submit(FileJob{FilePath: "/p/a.ts"}), ErrPoolStopped)

	_, errs := runBatch(pool, []FileJob{{FilePath: "/p/a.ts", JobID: 0}, {FilePath: "/p/b.ts", JobID: 1}})
	assert.ErrorIs(t, errs[0], ErrPoolStopped)
	assert.ErrorIs(t, errs[1], ErrPoolStopped)
	assert.Equal(t, 1, pool.GetStats().NumWorkers)
}

func TestFileWatcher_RescansChangedFiles(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	opts := DefaultWatchOptions()
	opts.Debounce = 20 * time.Millisecond
	watcher, err := NewFileWatcher(idx, opts, util.NewDiscardLogger())
	require.NoError(t, err)
	if err := watcher.Start(); err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	defer watcher.Stop()
	assert.True(t, watcher.GetStats().IsRunning)

	a := filepath.Join(root, "src/a.ts")
	c := filepath.Join(root, "src/feature/c.tsx")
	writeFile(t, a, "import { c } from './feature/c';\n")

	require.Eventually(t, func() bool {
		refs := idx.Graph().References(a)
		return len(refs) == 1 && refs[0] == c
	}, 5*time.Second, 20*time.Millisecond)

	// Files in a directory created after Start are picked up too.
	d := filepath.Join(root, "src/late/d.ts")
	writeFile(t, d, "import { b } from '../b';\n")
	require.Eventually(t, func() bool {
		return len(idx.Graph().References(d)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(a))
	require.Eventually(t, func() bool {
		return len(idx.Graph().References(a)) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_NotifyDocument(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	watcher, err := NewFileWatcher(idx, WatchOptions{Debounce: time.Hour}, util.NewDiscardLogger())
	require.NoError(t, err)
	defer watcher.Stop()

	a := filepath.Join(root, "src/a.ts")
	watcher.NotifyDocument(a, "import x from './lib/util';\n")
	watcher.NotifyDocument(filepath.Join(root, "README.md"), "ignored")
	assert.Equal(t, 1, watcher.Queue().Pending())

	watcher.Queue().Flush()
	assert.Equal(t, []string{filepath.Join(root, "src/lib/util.ts")}, idx.Graph().References(a))
}

func TestDependents(t *testing.T) {
	root := sampleWorkspace(t)
	idx := newIndexer(t, root, nil)
	_, err := idx.Reindex(context.Background(), nil)
	require.NoError(t, err)

	p := func(rel string) string { return filepath.Join(root, rel) }
	assert.Equal(t, []string{p("src/a.ts"), p("src/feature/c.tsx")}, idx.Dependents(p("src/b.ts")))
	assert.Equal(t, []string{p("src/b.ts")}, idx.Dependents(p("src/feature")))
	assert.Equal(t, []string{p("src/a.ts")}, idx.Dependents(p("src/lib")))
	assert.Empty(t, idx.Dependents(p("src/nothing.ts")))
}
