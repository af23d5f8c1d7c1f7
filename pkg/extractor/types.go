package extractor

import "github.com/gnana997/movets/pkg/parser"

// Occurrence is one module specifier as written in a file.
//
// [Start, End) are UTF-8 byte offsets into the scanned text and span the
// specifier without its quote characters. Occurrences are only valid for the
// exact text they were extracted from.
type Occurrence struct {
	Specifier string `json:"specifier"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Line      int    `json:"line"` // 1-based
}

// PerFileResult contains everything extracted from a single file.
type PerFileResult struct {
	FilePath    string
	Language    parser.Language
	Occurrences []Occurrence
}

// Specifiers returns the distinct specifier texts in first-seen order.
func (r *PerFileResult) Specifiers() []string {
	seen := make(map[string]struct{}, len(r.Occurrences))
	out := make([]string, 0, len(r.Occurrences))
	for _, occ := range r.Occurrences {
		if _, ok := seen[occ.Specifier]; ok {
			continue
		}
		seen[occ.Specifier] = struct{}{}
		out = append(out, occ.Specifier)
	}
	return out
}
