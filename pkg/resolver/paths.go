package resolver

import (
	"path/filepath"
	"strings"
)

// declarationSuffix is stripped as a unit or not at all.
const declarationSuffix = ".d.ts"

// IsRelative reports whether a specifier starts with a relative-path marker.
func IsRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// Contains reports whether path is dir or lies below it. Both must be
// absolute and clean.
func Contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// StripExtension removes the first matching extension from path. Declaration
// files keep their full name.
func StripExtension(path string, extensions []string) string {
	if strings.HasSuffix(path, declarationSuffix) {
		return path
	}
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) && len(path) > len(ext) {
			return strings.TrimSuffix(path, ext)
		}
	}
	return path
}

// toSpecifier joins with forward slashes regardless of platform.
func toSpecifier(rel string) string {
	return filepath.ToSlash(rel)
}
