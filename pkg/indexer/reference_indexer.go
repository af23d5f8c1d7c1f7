package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gnana997/movets/pkg/extractor"
	"github.com/gnana997/movets/pkg/resolver"
	"github.com/gnana997/movets/pkg/util"
	"github.com/gnana997/movets/pkg/workspace"
)

// ReferenceIndexer owns the reference graph and the resolver snapshot of a
// workspace.
//
// **Lifecycle:**
//   - Reindex rebuilds both the resolver and the graph and swaps them in
//   - Refresh / RefreshDocuments / Remove patch the graph incrementally
//   - The resolver only changes on Reindex
//
// **Thread Safety:** All methods are safe for concurrent use. Graph() and
// Resolver() return the current snapshot; a concurrent Reindex replaces it
// rather than mutating it.
type ReferenceIndexer struct {
	root      string
	opts      ScanOptions
	extractor *extractor.Extractor
	store     workspace.Store
	matcher   *workspace.Matcher
	logger    *slog.Logger

	mu       sync.RWMutex
	graph    *ReferenceGraph
	resolver *resolver.Resolver
	files    map[string]struct{}
}

// NewReferenceIndexer creates an indexer for the workspace at root. The
// graph starts empty and the resolver knows no configuration until the
// first Reindex.
func NewReferenceIndexer(
	root string,
	ext *extractor.Extractor,
	store workspace.Store,
	opts ScanOptions,
	logger *slog.Logger,
) (*ReferenceIndexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultScanOptions().Extensions
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace root: %w", err)
	}

	matcher, err := workspace.NewMatcher(root, opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	idx := &ReferenceIndexer{
		root:      root,
		opts:      opts,
		extractor: ext,
		store:     store,
		matcher:   matcher,
		logger:    logger,
		graph:     NewReferenceGraph(),
		files:     make(map[string]struct{}),
	}

	res, err := resolver.New(nil, nil, idx.resolverOptions())
	if err != nil {
		return nil, err
	}
	idx.resolver = res
	return idx, nil
}

func (idx *ReferenceIndexer) resolverOptions() resolver.Options {
	opts := resolver.DefaultOptions()
	opts.Extensions = idx.opts.Extensions
	opts.RelativeToTsconfig = idx.opts.RelativeToTsconfig
	opts.Exists = idx.store.Exists
	opts.Logger = idx.logger
	return opts
}

// Root returns the absolute workspace root.
func (idx *ReferenceIndexer) Root() string { return idx.root }

// Store returns the store the indexer reads through.
func (idx *ReferenceIndexer) Store() workspace.Store { return idx.store }

// Extractor returns the specifier extractor.
func (idx *ReferenceIndexer) Extractor() *extractor.Extractor { return idx.extractor }

// Matcher returns the scan-universe matcher.
func (idx *ReferenceIndexer) Matcher() *workspace.Matcher { return idx.matcher }

// Graph returns the current reference graph.
func (idx *ReferenceIndexer) Graph() *ReferenceGraph {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.graph
}

// Resolver returns the current resolver snapshot.
func (idx *ReferenceIndexer) Resolver() *resolver.Resolver {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.resolver
}

// Extensions returns the configured source extensions.
func (idx *ReferenceIndexer) Extensions() []string {
	return idx.opts.Extensions
}

// FilesUnder returns the indexed files inside dir, sorted.
func (idx *ReferenceIndexer) FilesUnder(dir string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	for file := range idx.files {
		if resolver.Contains(dir, file) {
			out = append(out, file)
		}
	}
	sort.Strings(out)
	return out
}

// Reindex discovers configuration and source files, scans them in batches
// of ScanBatchSize and replaces the graph and resolver snapshot.
//
// Files that cannot be read or parsed are recorded in ScanStats.Errors and
// skipped. When ctx is cancelled between batches the previous snapshot is
// kept and ctx.Err() is returned.
func (idx *ReferenceIndexer) Reindex(ctx context.Context, progress ProgressCallback) (*ScanStats, error) {
	stats := &ScanStats{StartTime: time.Now()}

	res, err := resolver.Load(ctx, idx.root, idx.resolverOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace configuration: %w", err)
	}

	files, err := idx.matcher.Walk(idx.root, idx.logger)
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)

	idx.logger.Info("Indexing workspace",
		"root", idx.root,
		"files", len(files),
		"packages", len(res.Packages()))

	graph := NewReferenceGraph()
	scanned := make(map[string]struct{}, len(files))

	pool := NewWorkerPool(idx.opts.MaxWorkers, idx.extractor, idx.store, idx.logger)
	pool.Start()
	defer pool.Stop()
	stats.WorkerCount = pool.GetStats().NumWorkers

	for start := 0; start < len(files); start += ScanBatchSize {
		if err := ctx.Err(); err != nil {
			stats.Cancelled = true
			idx.finishStats(stats)
			idx.logger.Info("Indexing cancelled", "indexed", start, "total", len(files))
			return stats, err
		}

		end := min(start+ScanBatchSize, len(files))
		jobs := make([]FileJob, 0, end-start)
		for i, path := range files[start:end] {
			jobs = append(jobs, FileJob{FilePath: path, JobID: i})
		}

		results, errs := runBatch(pool, jobs)
		for i, result := range results {
			if errs[i] != nil {
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, FileError{FilePath: jobs[i].FilePath, Error: errs[i]})
				continue
			}
			stats.FilesIndexed++
			scanned[jobs[i].FilePath] = struct{}{}
			addEdges(graph, res, jobs[i].FilePath, result.Occurrences, stats)
		}

		if progress != nil {
			progress(end, len(files), files[end-1])
		}
	}

	idx.mu.Lock()
	idx.graph = graph
	idx.resolver = res
	idx.files = scanned
	idx.mu.Unlock()

	idx.finishStats(stats)
	idx.logger.Info("Indexing complete",
		"indexed", stats.FilesIndexed,
		"failed", stats.FilesFailed,
		"edges", graph.Stats().Edges,
		"duration_ms", stats.TotalTimeMs)

	return stats, nil
}

func (idx *ReferenceIndexer) finishStats(stats *ScanStats) {
	stats.EndTime = time.Now()
	stats.TotalTimeMs = stats.EndTime.Sub(stats.StartTime).Milliseconds()
}

// runBatch feeds jobs to the pool and collects one outcome per job,
// indexed by JobID.
func runBatch(pool *WorkerPool, jobs []FileJob) ([]*extractor.PerFileResult, []error) {
	results := make([]*extractor.PerFileResult, len(jobs))
	errs := make([]error, len(jobs))

	rejected := make(chan FileResult, len(jobs))
	go func() {
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				rejected <- FileResult{FilePath: job.FilePath, JobID: job.JobID, Err: err}
			}
		}
	}()

	for range jobs {
		var outcome FileResult
		select {
		case outcome = <-pool.Results():
		case outcome = <-rejected:
		}
		if outcome.Err != nil {
			errs[outcome.JobID] = outcome.Err
			continue
		}
		results[outcome.JobID] = outcome.Result
	}
	return results, errs
}

// addEdges resolves every occurrence of importer and records the edges.
func addEdges(graph *ReferenceGraph, res *resolver.Resolver, importer string, occurrences []extractor.Occurrence, stats *ScanStats) {
	for _, occ := range occurrences {
		if stats != nil {
			stats.SpecifiersExtracted++
		}
		target, ok := res.Resolve(importer, occ.Specifier)
		if !ok {
			if stats != nil {
				stats.Unresolved++
			}
			continue
		}
		graph.AddReference(res.ProbeFile(target), importer)
		if stats != nil {
			stats.EdgesResolved++
		}
	}
}

// Refresh rescans paths and replaces their outgoing edges. Paths that no
// longer exist or fall outside the scan universe are dropped from the
// graph.
func (idx *ReferenceIndexer) Refresh(ctx context.Context, paths []string) error {
	return idx.refresh(ctx, paths, nil)
}

// Document is an unsaved editor text for a path.
type Document struct {
	Path string
	Text string
}

// RefreshDocuments rescans editor documents from their in-memory text.
func (idx *ReferenceIndexer) RefreshDocuments(ctx context.Context, docs []Document) error {
	paths := make([]string, len(docs))
	texts := make([]*string, len(docs))
	for i := range docs {
		paths[i] = docs[i].Path
		texts[i] = &docs[i].Text
	}
	return idx.refresh(ctx, paths, texts)
}

func (idx *ReferenceIndexer) refresh(ctx context.Context, paths []string, texts []*string) error {
	graph := idx.Graph()
	res := idx.Resolver()

	var jobs []FileJob
	for i, path := range paths {
		if !idx.matcher.Match(path) || (texts == nil && !idx.store.Exists(path)) {
			idx.Remove(path)
			continue
		}
		job := FileJob{FilePath: path, JobID: len(jobs)}
		if texts != nil {
			job.Text = texts[i]
		}
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil
	}

	workers := idx.opts.MaxWorkers
	if workers == 0 {
		workers = min(len(jobs), util.GetOptimalPoolSize())
	}
	pool := NewWorkerPool(workers, idx.extractor, idx.store, idx.logger)
	pool.Start()
	defer pool.Stop()

	for start := 0; start < len(jobs); start += ScanBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+ScanBatchSize, len(jobs))
		batch := make([]FileJob, 0, end-start)
		for i, job := range jobs[start:end] {
			job.JobID = i
			batch = append(batch, job)
		}

		results, errs := runBatch(pool, batch)
		for i, result := range results {
			path := batch[i].FilePath
			graph.DeleteByPath(path)
			if errs[i] != nil {
				idx.logger.Warn("Failed to rescan file", "file", path, "error", errs[i])
				idx.forget(path)
				continue
			}
			addEdges(graph, res, path, result.Occurrences, nil)
			idx.mu.Lock()
			idx.files[path] = struct{}{}
			idx.mu.Unlock()
		}
	}

	idx.logger.Debug("Refreshed files", "count", len(jobs))
	return nil
}

func (idx *ReferenceIndexer) forget(path string) {
	idx.mu.Lock()
	delete(idx.files, path)
	idx.mu.Unlock()
}

// Remove drops the outgoing edges of path and, when path is a directory,
// of every indexed file beneath it. Edges pointing at the removed files
// stay until their importers are rescanned.
func (idx *ReferenceIndexer) Remove(path string) {
	graph := idx.Graph()

	idx.mu.Lock()
	var removed []string
	for file := range idx.files {
		if resolver.Contains(path, file) {
			removed = append(removed, file)
		}
	}
	for _, file := range removed {
		delete(idx.files, file)
	}
	idx.mu.Unlock()

	graph.DeleteByPath(path)
	for _, file := range removed {
		graph.DeleteByPath(file)
	}
}

// Dependents returns the files outside path that import it. For a
// directory that is every file importing something beneath it.
func (idx *ReferenceIndexer) Dependents(path string) []string {
	graph := idx.Graph()
	res := idx.Resolver()

	if direct := graph.GetReferences(res.ProbeFile(path)); len(direct) > 0 {
		return direct
	}

	scope := NewScope(path, idx.opts.Extensions)
	seen := make(map[string]struct{})
	var out []string
	for _, edge := range graph.GetDirReferences(scope) {
		if scope.Contains(edge.Importer) {
			continue
		}
		if _, ok := seen[edge.Importer]; ok {
			continue
		}
		seen[edge.Importer] = struct{}{}
		out = append(out, edge.Importer)
	}
	return out
}
