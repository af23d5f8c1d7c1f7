package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// AlwaysExcludedDirs are never scanned: installed dependencies and typings.
var AlwaysExcludedDirs = []string{"node_modules", "jspm_packages", "typings"}

// DefaultFilesToScan is the scan universe when none is configured.
var DefaultFilesToScan = []string{"**/*.ts", "**/*.tsx"}

// Matcher decides which workspace paths are part of the scan universe.
// Patterns are doublestar globs matched against the slash-separated path
// relative to Root.
type Matcher struct {
	Root    string
	Include []string
	Exclude []string
}

// NewMatcher validates the patterns and builds a matcher.
func NewMatcher(root string, include, exclude []string) (*Matcher, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}
	if len(include) == 0 {
		include = DefaultFilesToScan
	}
	return &Matcher{Root: root, Include: include, Exclude: exclude}, nil
}

func (m *Matcher) rel(path string) (string, bool) {
	relPath, err := filepath.Rel(m.Root, path)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(relPath), true
}

// SkipDir reports whether a directory should not be descended into.
func (m *Matcher) SkipDir(path string) bool {
	name := filepath.Base(path)
	for _, dir := range AlwaysExcludedDirs {
		if name == dir {
			return true
		}
	}
	relPath, ok := m.rel(path)
	if !ok {
		return true
	}
	for _, pattern := range m.Exclude {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// Match reports whether a file belongs to the scan universe.
func (m *Matcher) Match(path string) bool {
	relPath, ok := m.rel(path)
	if !ok {
		return false
	}
	for dir := filepath.Dir(path); dir != m.Root && len(dir) > len(m.Root); dir = filepath.Dir(dir) {
		name := filepath.Base(dir)
		for _, excluded := range AlwaysExcludedDirs {
			if name == excluded {
				return false
			}
		}
	}
	for _, pattern := range m.Exclude {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return false
		}
	}
	for _, pattern := range m.Include {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

// FindFiles walks root and returns the absolute paths of matching files in
// lexical order. Unreadable entries are logged and skipped.
func FindFiles(root string, include, exclude []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := NewMatcher(root, include, exclude)
	if err != nil {
		return nil, err
	}
	return m.Walk(root, logger)
}

// Walk lists the matching files under dir, which must be inside Root.
func (m *Matcher) Walk(dir string, logger *slog.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != dir && m.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.Match(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
