package indexer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReference_Idempotent(t *testing.T) {
	g := NewReferenceGraph()
	g.AddReference("/p/src/b.ts", "/p/src/a.ts")
	g.AddReference("/p/src/b.ts", "/p/src/a.ts")
	g.AddReference("/p/src/c.ts", "/p/src/a.ts")

	assert.Equal(t, []string{"/p/src/a.ts"}, g.GetReferences("/p/src/b.ts"))
	assert.Equal(t, []string{"/p/src/b.ts", "/p/src/c.ts"}, g.References("/p/src/a.ts"))
	assert.Equal(t, GraphStats{Importers: 1, Targets: 2, Edges: 2}, g.Stats())
}

func TestGraph_Bidirectional(t *testing.T) {
	g := NewReferenceGraph()
	edges := []Edge{
		{Importer: "/p/a.ts", Target: "/p/b.ts"},
		{Importer: "/p/a.ts", Target: "/p/c.ts"},
		{Importer: "/p/b.ts", Target: "/p/c.ts"},
		{Importer: "/p/c.ts", Target: "/p/a.ts"},
	}
	for _, e := range edges {
		g.AddReference(e.Target, e.Importer)
	}
	g.DeleteByPath("/p/b.ts")

	for _, importer := range g.Importers() {
		for _, target := range g.References(importer) {
			assert.Contains(t, g.GetReferences(target), importer)
		}
	}
	for _, target := range []string{"/p/a.ts", "/p/b.ts", "/p/c.ts"} {
		for _, importer := range g.GetReferences(target) {
			assert.Contains(t, g.References(importer), target)
		}
	}
}

func TestDeleteByPath_KeepsInboundEdges(t *testing.T) {
	g := NewReferenceGraph()
	g.AddReference("/p/b.ts", "/p/a.ts")
	g.AddReference("/p/c.ts", "/p/b.ts")

	g.DeleteByPath("/p/b.ts")

	assert.Empty(t, g.References("/p/b.ts"))
	assert.Empty(t, g.GetReferences("/p/c.ts"))
	assert.Equal(t, []string{"/p/a.ts"}, g.GetReferences("/p/b.ts"), "inbound edges survive")

	// Unknown path is a no-op.
	g.DeleteByPath("/p/missing.ts")
	assert.Equal(t, 1, g.Stats().Edges)
}

func TestGetDirReferences_WholeDirectory(t *testing.T) {
	g := NewReferenceGraph()
	g.AddReference("/p/src/feature/inner.ts", "/p/src/other.ts")  // in, from outside
	g.AddReference("/p/src/shared.ts", "/p/src/feature/inner.ts") // out, from inside
	g.AddReference("/p/src/feature/a.ts", "/p/src/feature/b.ts")  // internal
	g.AddReference("/p/src/shared.ts", "/p/src/other.ts")         // unrelated
	g.AddReference("/p/src/feature", "/p/src/index.ts")           // the directory itself
	g.AddReference("/p/src/feature-two/x.ts", "/p/src/index.ts")  // prefix, not inside

	edges := g.GetDirReferences(NewScope("/p/src/feature", []string{".ts"}))
	assert.ElementsMatch(t, []Edge{
		{Importer: "/p/src/other.ts", Target: "/p/src/feature/inner.ts"},
		{Importer: "/p/src/feature/inner.ts", Target: "/p/src/shared.ts"},
		{Importer: "/p/src/index.ts", Target: "/p/src/feature"},
	}, edges)
}

// A whitelisted move out of a directory carries the named entries and
// everything nested in them. Entries of the same directory that are not
// named, including their nested files, stay behind, so edges between the
// two groups cross the boundary.
func TestGetDirReferences_WhitelistWithNestedDirectories(t *testing.T) {
	scope := Scope{
		Root:       "/p/src",
		Members:    []string{"a.ts", "widgets"},
		Extensions: []string{".ts", ".tsx"},
	}

	assert.True(t, scope.Contains("/p/src/a.ts"))
	assert.True(t, scope.Contains("/p/src/a"), "extension-less resolution of a member file")
	assert.True(t, scope.Contains("/p/src/widgets"))
	assert.True(t, scope.Contains("/p/src/widgets/deep/button.tsx"))
	assert.False(t, scope.Contains("/p/src/b.ts"))
	assert.False(t, scope.Contains("/p/src/other/a.ts"), "member name below a non-member")
	assert.False(t, scope.Contains("/p/src"))
	assert.False(t, scope.Contains("/p/lib/a.ts"))

	g := NewReferenceGraph()
	g.AddReference("/p/src/widgets/deep/button.tsx", "/p/src/b.ts")       // stays → moves
	g.AddReference("/p/src/b.ts", "/p/src/widgets/deep/button.tsx")       // moves → stays
	g.AddReference("/p/src/a.ts", "/p/src/widgets/deep/button.tsx")       // both move
	g.AddReference("/p/src/other/a.ts", "/p/src/b.ts")                    // both stay
	g.AddReference("/p/src/widgets/deep/button.tsx", "/p/src/other/x.ts") // stays (nested) → moves

	edges := g.GetDirReferences(scope)
	assert.ElementsMatch(t, []Edge{
		{Importer: "/p/src/b.ts", Target: "/p/src/widgets/deep/button.tsx"},
		{Importer: "/p/src/widgets/deep/button.tsx", Target: "/p/src/b.ts"},
		{Importer: "/p/src/other/x.ts", Target: "/p/src/widgets/deep/button.tsx"},
	}, edges)

	// Without a whitelist the same directory is one unit: nothing crosses.
	assert.Empty(t, g.GetDirReferences(NewScope("/p/src", scope.Extensions)))
}

func TestScope_Rebase(t *testing.T) {
	s := NewScope("/p/src/feature", nil)
	assert.Equal(t, "/p/src2/feature/inner.ts", s.Rebase("/p/src/feature/inner.ts", "/p/src2/feature"))
	assert.Equal(t, "/p/src2/feature", s.Rebase("/p/src/feature", "/p/src2/feature"))
}

func TestGraph_ConcurrentAccess(t *testing.T) {
	g := NewReferenceGraph()

	const numGoroutines = 50
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			importer := fmt.Sprintf("/p/file%d.ts", id)
			switch id % 3 {
			case 0:
				g.AddReference("/p/shared.ts", importer)
			case 1:
				g.GetReferences("/p/shared.ts")
			case 2:
				g.AddReference("/p/shared.ts", importer)
				g.DeleteByPath(importer)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, g.GetReferences("/p/shared.ts"), 17)
}

func TestDebounceQueue_CollapsesBurst(t *testing.T) {
	q := NewDebounceQueue(100*time.Millisecond, nil)

	type flush struct {
		paths []string
		docs  []Document
	}
	flushed := make(chan flush, 4)
	q.OnQuiescence(func(paths []string, docs []Document) {
		flushed <- flush{paths, docs}
	})

	q.Enqueue("/p/b.ts", "/p/a.ts")
	q.Enqueue("/p/b.ts")
	q.EnqueueDocument("/p/c.ts", "v1")
	q.Enqueue("/p/d.ts", "/p/a.ts")
	q.EnqueueDocument("/p/c.ts", "v2")
	q.EnqueueDocument("/p/e.ts", "v1")

	select {
	case got := <-flushed:
		assert.Equal(t, []string{"/p/b.ts", "/p/a.ts", "/p/d.ts"}, got.paths)
		assert.Equal(t, []Document{{Path: "/p/c.ts", Text: "v2"}, {Path: "/p/e.ts", Text: "v1"}}, got.docs)
	case <-time.After(2 * time.Second):
		t.Fatal("queue never flushed")
	}

	select {
	case got := <-flushed:
		t.Fatalf("unexpected second flush: %v", got)
	case <-time.After(250 * time.Millisecond):
	}
	assert.Zero(t, q.Pending())
}

func TestDebounceQueue_FlushAndStop(t *testing.T) {
	q := NewDebounceQueue(time.Hour, nil)
	var got []string
	q.OnQuiescence(func(paths []string, _ []Document) {
		got = append(got, paths...)
	})

	q.Enqueue("/p/a.ts")
	assert.Equal(t, 1, q.Pending())
	q.Flush()
	assert.Equal(t, []string{"/p/a.ts"}, got)

	q.Enqueue("/p/b.ts")
	q.Stop()
	q.Enqueue("/p/c.ts")
	q.Flush()
	assert.Equal(t, []string{"/p/a.ts"}, got, "stopped queue drops changes")
}

func TestDefaultDebounce(t *testing.T) {
	require.Equal(t, 250*time.Millisecond, DefaultDebounce)
	assert.Equal(t, DefaultDebounce, DefaultWatchOptions().Debounce)
}
