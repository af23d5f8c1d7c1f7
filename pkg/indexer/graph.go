package indexer

import (
	"sort"
	"sync"
)

// ReferenceGraph is a bidirectional index of which files import which files.
//
// **Invariant:** t is in References(i) exactly when i is in
// GetReferences(t). Both directions keep insertion order.
//
// **Thread Safety:**
//   - Uses sync.RWMutex for concurrent access
//   - Returned slices are copies
//
// **Usage:**
//
//	graph := NewReferenceGraph()
//	graph.AddReference("/proj/src/b.ts", "/proj/src/a.ts")
//	graph.GetReferences("/proj/src/b.ts") // ["/proj/src/a.ts"]
type ReferenceGraph struct {
	// target → importers
	referencedBy map[string][]string

	// importer → targets
	references map[string][]string

	mu sync.RWMutex
}

// NewReferenceGraph creates an empty graph.
func NewReferenceGraph() *ReferenceGraph {
	return &ReferenceGraph{
		referencedBy: make(map[string][]string, 1000),
		references:   make(map[string][]string, 1000),
	}
}

func appendUnique(list []string, value string) ([]string, bool) {
	for _, existing := range list {
		if existing == value {
			return list, false
		}
	}
	return append(list, value), true
}

func without(list []string, value string) []string {
	out := list[:0]
	for _, existing := range list {
		if existing != value {
			out = append(out, existing)
		}
	}
	return out
}

// AddReference records that importer imports target. Adding an existing
// edge is a no-op.
func (g *ReferenceGraph) AddReference(target, importer string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.references[importer], _ = appendUnique(g.references[importer], target)
	g.referencedBy[target], _ = appendUnique(g.referencedBy[target], importer)
}

// DeleteByPath removes every edge whose importer is path. Edges pointing at
// path are kept until their importers are rescanned.
func (g *ReferenceGraph) DeleteByPath(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, target := range g.references[path] {
		importers := without(g.referencedBy[target], path)
		if len(importers) == 0 {
			delete(g.referencedBy, target)
		} else {
			g.referencedBy[target] = importers
		}
	}
	delete(g.references, path)
}

// GetReferences returns the files that import target.
func (g *ReferenceGraph) GetReferences(target string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.referencedBy[target]...)
}

// References returns the targets importer imports.
func (g *ReferenceGraph) References(importer string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.references[importer]...)
}

// Importers returns every file with outgoing edges, sorted.
func (g *ReferenceGraph) Importers() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.references))
	for importer := range g.references {
		out = append(out, importer)
	}
	sort.Strings(out)
	return out
}

// GetDirReferences returns the edges that cross the boundary of scope:
// exactly one endpoint belongs to it. Edges are ordered by target, then by
// insertion order of their importers.
func (g *ReferenceGraph) GetDirReferences(scope Scope) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	targets := make([]string, 0, len(g.referencedBy))
	for target := range g.referencedBy {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	var edges []Edge
	for _, target := range targets {
		targetInside := scope.Contains(target)
		for _, importer := range g.referencedBy[target] {
			if scope.Contains(importer) != targetInside {
				edges = append(edges, Edge{Importer: importer, Target: target})
			}
		}
	}
	return edges
}

// Stats returns the current graph size.
func (g *ReferenceGraph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := 0
	for _, targets := range g.references {
		edges += len(targets)
	}
	return GraphStats{
		Importers: len(g.references),
		Targets:   len(g.referencedBy),
		Edges:     edges,
	}
}
