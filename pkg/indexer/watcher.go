package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches the workspace and keeps the reference graph current.
//
// **Behavior:**
//   - Write / Create of a source file - queued and rescanned after the
//     debounce window, together with everything else queued in it
//   - Remove / Rename - the path's outgoing edges are dropped immediately
//   - New directories are watched and their files queued
//
// **Usage:**
//
//	watcher, err := NewFileWatcher(idx, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type FileWatcher struct {
	watcher *fsnotify.Watcher
	indexer *ReferenceIndexer
	queue   *DebounceQueue
	logger  *slog.Logger
	options WatchOptions

	// Lifecycle
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
}

// NewFileWatcher creates a new file watcher for the indexer's workspace.
func NewFileWatcher(idx *ReferenceIndexer, options WatchOptions, logger *slog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.Debounce == 0 {
		options.Debounce = DefaultDebounce
	}

	fw := &FileWatcher{
		watcher:  watcher,
		indexer:  idx,
		queue:    NewDebounceQueue(options.Debounce, logger),
		logger:   logger,
		options:  options,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	fw.queue.OnQuiescence(fw.flush)
	return fw, nil
}

// Queue returns the watcher's debounce queue.
func (fw *FileWatcher) Queue() *DebounceQueue {
	return fw.queue
}

// Start watches the workspace root and every non-excluded directory below
// it, then processes events in a background goroutine.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if fw.started {
		return fmt.Errorf("watcher already started")
	}

	root := fw.indexer.Root()
	if err := fw.addTree(root); err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	fw.started = true
	fw.logger.Info("File watcher started", "root", root)

	go fw.eventLoop()
	return nil
}

// addTree watches dir and its subdirectories.
func (fw *FileWatcher) addTree(dir string) error {
	matcher := fw.indexer.Matcher()
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && matcher.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Stop stops the watcher and discards changes still waiting in the queue.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	started := fw.started
	close(fw.stopChan)
	fw.mu.Unlock()

	fw.queue.Stop()
	err := fw.watcher.Close()
	if started {
		<-fw.done
	}
	fw.logger.Info("File watcher stopped")
	return err
}

// eventLoop is the main event processing loop.
func (fw *FileWatcher) eventLoop() {
	defer close(fw.done)
	for {
		select {
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

// handleEvent processes a file system event.
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if fw.shouldIgnore(path) {
		return
	}

	fw.logger.Debug("File event", "op", event.Op.String(), "file", path)

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		fw.indexer.Remove(path)

	case event.Op&fsnotify.Create == fsnotify.Create:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			fw.watchNewDir(path)
			return
		}
		fw.enqueue(path)

	case event.Op&fsnotify.Write == fsnotify.Write:
		fw.enqueue(path)
	}
}

// watchNewDir starts watching a directory that appeared after Start and
// queues the source files already inside it.
func (fw *FileWatcher) watchNewDir(dir string) {
	if fw.indexer.Matcher().SkipDir(dir) {
		return
	}
	if err := fw.addTree(dir); err != nil {
		fw.logger.Warn("Failed to watch new directory", "path", dir, "error", err)
		return
	}
	files, err := fw.indexer.Matcher().Walk(dir, fw.logger)
	if err != nil {
		return
	}
	fw.queue.Enqueue(files...)
}

func (fw *FileWatcher) enqueue(path string) {
	if !fw.indexer.Matcher().Match(path) {
		return
	}
	fw.queue.Enqueue(path)
}

// NotifyDocument queues an unsaved editor text for rescanning.
func (fw *FileWatcher) NotifyDocument(path, text string) {
	if !fw.indexer.Matcher().Match(path) {
		return
	}
	fw.queue.EnqueueDocument(path, text)
}

// flush rescans everything collected during one debounce window.
func (fw *FileWatcher) flush(paths []string, docs []Document) {
	ctx := context.Background()
	if len(paths) > 0 {
		if err := fw.indexer.Refresh(ctx, paths); err != nil {
			fw.logger.Warn("Failed to refresh files", "count", len(paths), "error", err)
		}
	}
	if len(docs) > 0 {
		if err := fw.indexer.RefreshDocuments(ctx, docs); err != nil {
			fw.logger.Warn("Failed to refresh documents", "count", len(docs), "error", err)
		}
	}
	fw.logger.Debug("Rescanned changed files", "files", len(paths), "documents", len(docs))
}

// shouldIgnore checks editor temp files against the ignore patterns.
func (fw *FileWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range fw.options.IgnorePatterns {
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// GetStats returns file watcher statistics.
func (fw *FileWatcher) GetStats() FileWatcherStats {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return FileWatcherStats{
		PendingRescans: fw.queue.Pending(),
		IsRunning:      fw.started && !fw.stopped,
	}
}

// FileWatcherStats contains file watcher statistics.
type FileWatcherStats struct {
	PendingRescans int
	IsRunning      bool
}
