package workspace

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// RenameOp records one virtual rename.
type RenameOp struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FileDiff is the pending change to one file.
type FileDiff struct {
	Path         string `json:"path"`
	OriginalPath string `json:"original_path"`
	Created      bool   `json:"created,omitempty"`
	Unified      string `json:"unified"`
}

type overlayFile struct {
	originalPath string
	original     string
	current      string
	created      bool
}

// OverlayStore stages every write and rename in memory on top of a base
// store. Nothing reaches the base store, which makes it the dry-run backend.
type OverlayStore struct {
	base Store

	mu      sync.RWMutex
	files   map[string]*overlayFile // keyed by current virtual path
	renames []RenameOp
	dirs    map[string]struct{}
}

// NewOverlayStore wraps base.
func NewOverlayStore(base Store) *OverlayStore {
	return &OverlayStore{
		base:  base,
		files: make(map[string]*overlayFile),
		dirs:  make(map[string]struct{}),
	}
}

func within(root, path string) (string, bool) {
	if path == root {
		return "", true
	}
	if strings.HasPrefix(path, root+string(filepath.Separator)) {
		return path[len(root)+1:], true
	}
	return "", false
}

// basePath maps a virtual path back to where it lives in the base store.
// ok is false when the path was renamed away.
func (o *OverlayStore) basePath(path string) (string, bool) {
	for i := len(o.renames) - 1; i >= 0; i-- {
		r := o.renames[i]
		if rest, in := within(r.To, path); in {
			path = filepath.Join(r.From, rest)
			continue
		}
		if _, in := within(r.From, path); in {
			return "", false
		}
	}
	return path, true
}

func (o *OverlayStore) ReadText(path string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if f, ok := o.files[path]; ok {
		return f.current, nil
	}
	bp, ok := o.basePath(path)
	if !ok {
		return "", fmt.Errorf("%q was renamed away", path)
	}
	return o.base.ReadText(bp)
}

func (o *OverlayStore) Persist(path string, change Change) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f, ok := o.files[path]; ok {
		f.current = change.Updated
		return nil
	}
	bp, _ := o.basePath(path)
	o.files[path] = &overlayFile{
		originalPath: bp,
		original:     change.Original,
		current:      change.Updated,
	}
	return nil
}

func (o *OverlayStore) Create(path, text string) error {
	if o.Exists(path) {
		return fmt.Errorf("failed to create %q: file exists", path)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[path] = &overlayFile{originalPath: path, current: text, created: true}
	return nil
}

// Rename re-keys staged files under from and records the rename.
func (o *OverlayStore) Rename(from, to string) error {
	if !o.Exists(from) {
		return fmt.Errorf("failed to rename %q: no such file or directory", from)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for path, f := range o.files {
		if rest, in := within(from, path); in {
			delete(o.files, path)
			o.files[filepath.Join(to, rest)] = f
		}
	}
	o.renames = append(o.renames, RenameOp{From: from, To: to})
	return nil
}

func (o *OverlayStore) Exists(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for p := range o.files {
		if _, in := within(path, p); in {
			return true
		}
	}
	if _, ok := o.dirs[path]; ok {
		return true
	}
	bp, ok := o.basePath(path)
	return ok && o.base.Exists(bp)
}

// EnsureParentDir only records the directory.
func (o *OverlayStore) EnsureParentDir(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dirs[filepath.Dir(path)] = struct{}{}
	return nil
}

// Renames returns the staged renames in the order they were made.
func (o *OverlayStore) Renames() []RenameOp {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]RenameOp(nil), o.renames...)
}

// Diffs returns a unified diff for every staged file, sorted by path.
func (o *OverlayStore) Diffs() []FileDiff {
	o.mu.RLock()
	defer o.mu.RUnlock()

	paths := make([]string, 0, len(o.files))
	for p := range o.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	diffs := make([]FileDiff, 0, len(paths))
	for _, p := range paths {
		f := o.files[p]
		if !f.created && f.original == f.current {
			continue
		}
		diffs = append(diffs, FileDiff{
			Path:         p,
			OriginalPath: f.originalPath,
			Created:      f.created,
			Unified:      unifiedDiff(f.originalPath, p, f.original, f.current),
		})
	}
	return diffs
}

func unifiedDiff(fromName, toName, a, b string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n(diff unavailable: %v)\n", fromName, toName, err)
	}
	return text
}
