// Package editor turns specifier replacements into byte-exact text edits.
package editor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// ErrOverlappingEdits is returned when two edits touch the same bytes with
// different replacements. It means two specifiers resolved to conflicting
// targets and must be surfaced, never merged.
var ErrOverlappingEdits = errors.New("overlapping edits")

// ErrEditOutOfRange is returned for an edit outside the text.
var ErrEditOutOfRange = errors.New("edit out of range")

// Edit replaces text[Start:End] with Replacement. Offsets are UTF-8 byte
// offsets into the text the edit was computed against.
type Edit struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Replacement string `json:"replacement"`
}

// Replacement pairs the specifier a file used for a target with the one it
// should use now.
type Replacement struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// normalize sorts edits by start and drops identical duplicates. It fails on
// any remaining overlap, including two insertions at the same offset.
func normalize(edits []Edit, textLen int) ([]Edit, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].End != sorted[j].End {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Replacement < sorted[j].Replacement
	})

	out := sorted[:0]
	for _, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > textLen {
			return nil, fmt.Errorf("%w: [%d,%d) in text of length %d", ErrEditOutOfRange, e.Start, e.End, textLen)
		}
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev == e {
				continue
			}
			if e.Start < prev.End || e.Start == prev.Start {
				return nil, fmt.Errorf("%w: [%d,%d) and [%d,%d)", ErrOverlappingEdits, prev.Start, prev.End, e.Start, e.End)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// ApplyEdits applies edits computed against text and returns the new text.
// The result does not depend on the order of edits.
func ApplyEdits(text string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}

	ordered, err := normalize(edits, len(text))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(text))
	shift := 0
	last := 0
	for _, e := range ordered {
		b.WriteString(text[last:e.Start])
		b.WriteString(e.Replacement)
		shift += len(e.Replacement) - (e.End - e.Start)
		last = e.End
	}
	b.WriteString(text[last:])

	if b.Len() != len(text)+shift {
		return "", fmt.Errorf("edit application produced %d bytes, want %d", b.Len(), len(text)+shift)
	}
	return b.String(), nil
}

// UTF16Offset converts a byte offset into text to a UTF-16 code unit offset,
// the unit editors such as VS Code address documents in.
func UTF16Offset(text string, byteOffset int) int {
	if byteOffset > len(text) {
		byteOffset = len(text)
	}
	units := 0
	for _, r := range text[:byteOffset] {
		if n := utf16.RuneLen(r); n > 0 {
			units += n
		} else {
			units++ // invalid UTF-8 decodes to U+FFFD
		}
	}
	return units
}

// ByteOffset is the inverse of UTF16Offset. Offsets that fall inside a
// surrogate pair snap to the start of the rune.
func ByteOffset(text string, utf16Offset int) int {
	units := 0
	for i, r := range text {
		if units >= utf16Offset {
			return i
		}
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > utf16Offset {
			return i
		}
		units += n
	}
	return len(text)
}
