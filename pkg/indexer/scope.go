package indexer

import (
	"path/filepath"
	"strings"
)

// Scope is the set of paths a directory move carries along.
//
// Without Members every path under Root belongs to the scope. With Members
// (a sibling move out of Root) only the entries of Root named in Members
// belong, together with everything beneath them; other entries of Root stay
// behind and are outside the scope even though they share the directory.
type Scope struct {
	Root    string
	Members []string

	// Extensions lets an extension-less path match a member file name.
	Extensions []string
}

// NewScope returns a scope over a whole directory.
func NewScope(root string, extensions []string) Scope {
	return Scope{Root: root, Extensions: extensions}
}

// firstSegment returns the first path element of path below root.
func firstSegment(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		rel = rel[:i]
	}
	return rel, true
}

// Contains reports whether path belongs to the scope.
func (s Scope) Contains(path string) bool {
	segment, ok := firstSegment(s.Root, path)
	if !ok {
		return false
	}
	if len(s.Members) == 0 {
		return true
	}
	if segment == "." {
		return false
	}
	for _, m := range s.Members {
		if m == segment {
			return true
		}
		for _, ext := range s.Extensions {
			if m == segment+ext || m+ext == segment {
				return true
			}
		}
	}
	return false
}

// Rebase maps a path inside the scope to the same relative location under
// newRoot.
func (s Scope) Rebase(path, newRoot string) string {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil || rel == "." {
		return newRoot
	}
	return filepath.Join(newRoot, rel)
}
