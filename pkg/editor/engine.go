package editor

import (
	"fmt"
	"log/slog"

	"github.com/gnana997/movets/pkg/extractor"
)

// Resolver maps a specifier written in fromFile to an absolute target.
type Resolver interface {
	Resolve(fromFile, specifier string) (string, bool)
}

// Engine computes the edits that swap specifiers in one file.
type Engine struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewEngine creates an edit engine that matches occurrences through resolver.
func NewEngine(resolver Resolver, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{resolver: resolver, logger: logger}
}

// ComputeEdits returns one edit per occurrence that resolves, from origin, to
// the same target as some replacement's Old specifier.
//
// origin is the path the occurrences are interpreted against: for a file
// that is about to move, its path before the move. Occurrences must come
// from the text the edits will be applied to.
func (e *Engine) ComputeEdits(origin string, occurrences []extractor.Occurrence, replacements []Replacement) ([]Edit, error) {
	type wanted struct {
		target string
		spec   string
	}

	targets := make([]wanted, 0, len(replacements))
	for _, r := range replacements {
		if r.Old == r.New {
			continue
		}
		target, ok := e.resolver.Resolve(origin, r.Old)
		if !ok {
			e.logger.Debug("replacement does not resolve, skipping",
				"origin", origin,
				"old", r.Old)
			continue
		}
		targets = append(targets, wanted{target: target, spec: r.New})
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var edits []Edit
	for _, occ := range occurrences {
		resolved, ok := e.resolver.Resolve(origin, occ.Specifier)
		if !ok {
			continue
		}
		for _, t := range targets {
			if t.target != resolved || t.spec == occ.Specifier {
				continue
			}
			// Every match is kept. Identical edits collapse in normalize and
			// different ones for one occurrence are reported as an overlap.
			edits = append(edits, Edit{Start: occ.Start, End: occ.End, Replacement: t.spec})
		}
	}

	// Validate without a text: overlap detection needs only the offsets.
	maxEnd := 0
	for _, ed := range edits {
		if ed.End > maxEnd {
			maxEnd = ed.End
		}
	}
	normalized, err := normalize(edits, maxEnd)
	if err != nil {
		return nil, fmt.Errorf("rewriting %s: %w", origin, err)
	}
	return normalized, nil
}

// Rewrite computes and applies edits in one step.
func (e *Engine) Rewrite(origin, text string, occurrences []extractor.Occurrence, replacements []Replacement) (string, []Edit, error) {
	edits, err := e.ComputeEdits(origin, occurrences, replacements)
	if err != nil {
		return "", nil, err
	}
	if len(edits) == 0 {
		return text, nil, nil
	}
	updated, err := ApplyEdits(text, edits)
	if err != nil {
		return "", nil, fmt.Errorf("rewriting %s: %w", origin, err)
	}
	return updated, edits, nil
}
