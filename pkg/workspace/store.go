// Package workspace provides file discovery and the persistence strategies a
// move writes through.
package workspace

import (
	"errors"

	"github.com/gnana997/movets/pkg/editor"
)

// ErrApplyFailed is returned when a rewrite could not be persisted.
var ErrApplyFailed = errors.New("failed to apply edits")

// Change describes one file rewrite. Edits are relative to Original; Updated
// is Original with the edits applied.
type Change struct {
	Original string
	Updated  string
	Edits    []editor.Edit
}

// Store reads and writes workspace files. Implementations decide whether a
// rewrite lands on disk, in editor buffers, or only in memory.
type Store interface {
	// ReadText returns the current text of path, including unsaved editor
	// state when the store knows about it.
	ReadText(path string) (string, error)

	// Persist writes a rewrite of an existing file.
	Persist(path string, change Change) error

	// Create writes a new file. It fails if path already exists.
	Create(path, text string) error

	Rename(from, to string) error
	Exists(path string) bool
	EnsureParentDir(path string) error
}
