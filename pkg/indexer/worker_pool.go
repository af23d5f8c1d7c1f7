package indexer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/movets/pkg/extractor"
	"github.com/gnana997/movets/pkg/util"
	"github.com/gnana997/movets/pkg/workspace"
)

// ErrPoolStopped is returned by Submit once Stop has been called.
var ErrPoolStopped = errors.New("worker pool is stopped")

// FileJob is one file for the pool to read and scan.
type FileJob struct {
	FilePath string
	JobID    int

	// Text, when set, is scanned instead of the store's copy of FilePath
	// (unsaved editor documents).
	Text *string
}

// FileResult is the outcome of one job. Exactly one of Result and Err is set.
type FileResult struct {
	FilePath string
	JobID    int
	Result   *extractor.PerFileResult
	Err      error
}

// WorkerPool reads files through a Store and extracts their specifiers on a
// fixed set of goroutines.
//
// The worker count defaults to util.GetOptimalPoolSize, the size of the
// parser pool, so a worker never waits for a parser. Outcomes arrive on
// Results in completion order; callers match them to jobs by JobID.
type WorkerPool struct {
	numWorkers int
	extractor  *extractor.Extractor
	store      workspace.Store
	logger     *slog.Logger

	jobs    chan FileJob
	results chan FileResult
	done    chan struct{}
	wg      sync.WaitGroup

	started atomic.Bool
	stopped atomic.Bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers goroutines. Zero picks the
// parser pool size.
func NewWorkerPool(numWorkers int, extractor *extractor.Extractor, store workspace.Store, logger *slog.Logger) *WorkerPool {
	numWorkers = util.GetOptimalPoolSizeWithOverride(numWorkers)
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		extractor:  extractor,
		store:      store,
		logger:     logger,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		done:       make(chan struct{}),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		return
	}
	wp.logger.Debug("Starting worker pool", "workers", wp.numWorkers)
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.done:
			return
		case job := <-wp.jobs:
			outcome := wp.scan(job)
			select {
			case wp.results <- outcome:
			case <-wp.done:
				return
			}
		}
	}
}

// scan reads and extracts one file.
func (wp *WorkerPool) scan(job FileJob) FileResult {
	outcome := FileResult{FilePath: job.FilePath, JobID: job.JobID}

	var text string
	if job.Text != nil {
		text = *job.Text
	} else {
		read, err := wp.store.ReadText(job.FilePath)
		if err != nil {
			wp.failed.Add(1)
			outcome.Err = fmt.Errorf("failed to read file: %w", err)
			return outcome
		}
		text = read
	}

	result, err := wp.extractor.ExtractFile(job.FilePath, []byte(text))
	if err != nil {
		wp.failed.Add(1)
		outcome.Err = fmt.Errorf("extraction failed: %w", err)
		return outcome
	}

	wp.processed.Add(1)
	outcome.Result = result
	return outcome
}

// Submit queues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.stopped.Load() {
		return ErrPoolStopped
	}
	wp.submitted.Add(1)
	select {
	case <-wp.done:
		return ErrPoolStopped
	case wp.jobs <- job:
		return nil
	}
}

// Results delivers one FileResult per accepted job.
func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

// Stop shuts the workers down and waits for them. Jobs still queued are
// dropped. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}
	close(wp.done)
	wp.wg.Wait()

	wp.logger.Debug("Worker pool stopped",
		"submitted", wp.submitted.Load(),
		"processed", wp.processed.Load(),
		"failed", wp.failed.Load())
}

// WorkerPoolStats counts the jobs a pool has seen.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
	Queued        int
}

// GetStats returns the pool's counters.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.submitted.Load(),
		JobsProcessed: wp.processed.Load(),
		JobsFailed:    wp.failed.Load(),
		Queued:        len(wp.jobs),
	}
}
