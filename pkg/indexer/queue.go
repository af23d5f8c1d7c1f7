package indexer

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last change before queued
// paths are rescanned.
const DefaultDebounce = 250 * time.Millisecond

// QuiescenceFunc receives everything queued during one debounce window.
// Paths are deduplicated in first-seen order; documents keep the latest
// text per path, also in first-seen order.
type QuiescenceFunc func(paths []string, docs []Document)

// DebounceQueue collapses bursts of change notifications into one rescan.
//
// Every Enqueue / EnqueueDocument restarts the timer. When it fires, the
// queued paths and documents are handed to the OnQuiescence callback and
// the queue starts empty again. Callbacks never run concurrently.
type DebounceQueue struct {
	delay  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	paths    []string
	seen     map[string]struct{}
	docs     []Document
	docIndex map[string]int
	handler  QuiescenceFunc
	stopped  bool

	runMu sync.Mutex
}

// NewDebounceQueue creates a queue. A zero delay means DefaultDebounce.
func NewDebounceQueue(delay time.Duration, logger *slog.Logger) *DebounceQueue {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DebounceQueue{
		delay:    delay,
		logger:   logger,
		seen:     make(map[string]struct{}),
		docIndex: make(map[string]int),
	}
}

// OnQuiescence sets the callback run when the queue goes quiet.
func (q *DebounceQueue) OnQuiescence(fn QuiescenceFunc) {
	q.mu.Lock()
	q.handler = fn
	q.mu.Unlock()
}

// Enqueue adds paths to the pending set and restarts the timer.
func (q *DebounceQueue) Enqueue(paths ...string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	for _, p := range paths {
		if _, ok := q.seen[p]; ok {
			continue
		}
		q.seen[p] = struct{}{}
		q.paths = append(q.paths, p)
	}
	q.schedule()
}

// EnqueueDocument queues an in-memory text for path. A later text for the
// same path replaces the earlier one.
func (q *DebounceQueue) EnqueueDocument(path, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	if i, ok := q.docIndex[path]; ok {
		q.docs[i].Text = text
	} else {
		q.docIndex[path] = len(q.docs)
		q.docs = append(q.docs, Document{Path: path, Text: text})
	}
	q.schedule()
}

// schedule must be called with mu held.
func (q *DebounceQueue) schedule() {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.delay, q.Flush)
}

// Flush runs the callback now with whatever is queued.
func (q *DebounceQueue) Flush() {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	q.mu.Lock()
	paths, docs, handler := q.paths, q.docs, q.handler
	q.paths, q.docs = nil, nil
	q.seen = make(map[string]struct{})
	q.docIndex = make(map[string]int)
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	if len(paths) == 0 && len(docs) == 0 {
		return
	}
	if handler == nil {
		q.logger.Debug("Dropping queued changes, no handler", "paths", len(paths), "documents", len(docs))
		return
	}
	handler(paths, docs)
}

// Pending returns the number of queued paths and documents.
func (q *DebounceQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths) + len(q.docs)
}

// Stop cancels the timer and discards queued changes.
func (q *DebounceQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.paths, q.docs = nil, nil
}
