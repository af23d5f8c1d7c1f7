package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/movets/pkg/util"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func loadResolver(t *testing.T, root string, relativeToTsconfig bool) *Resolver {
	t.Helper()
	opts := DefaultOptions()
	opts.RelativeToTsconfig = relativeToTsconfig
	opts.Logger = util.NewDiscardLogger()
	r, err := Load(context.Background(), root, opts)
	require.NoError(t, err)
	return r
}

// monorepo lays out a workspace with aliases and packages.
func monorepo(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{
  // comments and trailing commas are allowed
  "compilerOptions": {
    "baseUrl": "./src",
    "paths": {
      "@lib/deep/*": ["lib/deep-override/*"],
      "@lib/*": ["lib/*"],
      "@multi/*": ["first/*", "second/*"],
      "exact": ["lib/exact.ts"],
    },
  },
}`)
	writeFile(t, filepath.Join(root, "src/app/main.ts"), "")
	writeFile(t, filepath.Join(root, "src/lib/util.ts"), "")
	writeFile(t, filepath.Join(root, "src/lib/deep/thing.ts"), "")
	writeFile(t, filepath.Join(root, "src/lib/deep-override/thing.ts"), "")
	writeFile(t, filepath.Join(root, "src/second/only-here.ts"), "")
	writeFile(t, filepath.Join(root, "src/types.d.ts"), "")

	writeFile(t, filepath.Join(root, "packages/core/package.json"), `{"name": "@acme/core"}`)
	writeFile(t, filepath.Join(root, "packages/core/src/index.ts"), "")
	writeFile(t, filepath.Join(root, "packages/ui/package.json"), `{"name": "@acme/ui"}`)
	writeFile(t, filepath.Join(root, "packages/ui/src/button.tsx"), "")
	writeFile(t, filepath.Join(root, "node_modules/react/package.json"), `{"name": "react"}`)
	return root
}

func TestResolve_Relative(t *testing.T) {
	root := monorepo(t)
	r := loadResolver(t, root, false)
	from := filepath.Join(root, "src/app/main.ts")

	got, ok := r.Resolve(from, "../lib/util")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/lib/util"), got)

	got, ok = r.Resolve(from, "./missing")
	assert.True(t, ok, "relative specifiers resolve without existing")
	assert.Equal(t, filepath.Join(root, "src/app/missing"), got)

	got, ok = r.Resolve(from, "./main.ts")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/app/main"), got, "known extensions are stripped")

	got, ok = r.Resolve(from, "../types.d.ts")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/types.d.ts"), got, ".d.ts is never stripped")

	got, ok = r.Resolve(from, "..")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src"), got)
}

func TestResolve_Alias(t *testing.T) {
	root := monorepo(t)
	r := loadResolver(t, root, false)
	from := filepath.Join(root, "src/app/main.ts")

	got, ok := r.Resolve(from, "@lib/util")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/lib/util"), got)

	// first declared pattern wins even though @lib/* would also match
	got, ok = r.Resolve(from, "@lib/deep/thing")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/lib/deep-override/thing"), got)

	// multiple targets: first that exists
	got, ok = r.Resolve(from, "@multi/only-here")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/second/only-here"), got)

	// multiple targets, none exists: unresolved
	_, ok = r.Resolve(from, "@multi/nowhere")
	assert.False(t, ok)

	// a single target is trusted for files that do not exist yet
	got, ok = r.Resolve(from, "@lib/not-yet")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/lib/not-yet"), got)

	// non-wildcard patterns never resolve
	_, ok = r.Resolve(from, "exact")
	assert.False(t, ok)
}

func TestResolve_Packages(t *testing.T) {
	root := monorepo(t)
	r := loadResolver(t, root, false)
	from := filepath.Join(root, "src/app/main.ts")

	got, ok := r.Resolve(from, "@acme/core/src/index")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "packages/core/src/index"), got)

	_, ok = r.Resolve(from, "@acme/core")
	assert.False(t, ok, "a bare package name has no path to resolve into")

	_, ok = r.Resolve(from, "react/jsx-runtime")
	assert.False(t, ok, "node_modules manifests are not workspace packages")
}

func TestResolve_AmbiguousPackage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a/package.json"), `{"name": "shared-lib"}`)
	writeFile(t, filepath.Join(root, "b/package.json"), `{"name": "shared-lib"}`)
	writeFile(t, filepath.Join(root, "c/package.json"), `{"name": "shared-lib"}`)
	writeFile(t, filepath.Join(root, "a/x.ts"), "")
	writeFile(t, filepath.Join(root, "app/main.ts"), "")

	r := loadResolver(t, root, false)

	for _, from := range []string{filepath.Join(root, "app/main.ts"), filepath.Join(root, "a/x.ts")} {
		_, ok := r.Resolve(from, "shared-lib/x")
		assert.False(t, ok, "from %s", from)
	}
	assert.Equal(t, []string{"shared-lib"}, r.Ambiguous())
	assert.Empty(t, r.Packages())
}

func TestResolve_RelativeToTsconfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{}`)
	writeFile(t, filepath.Join(root, "src/a.ts"), "")
	writeFile(t, filepath.Join(root, "src/deep/b.ts"), "")

	r := loadResolver(t, root, true)
	from := filepath.Join(root, "src/deep/b.ts")

	got, ok := r.Resolve(from, "src/a")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src/a"), got)

	_, ok = r.Resolve(from, "src/missing")
	assert.False(t, ok)

	assert.Equal(t, "src/a", r.SpecifierFor(from, filepath.Join(root, "src/a.ts")))

	plain := loadResolver(t, root, false)
	_, ok = plain.Resolve(from, "src/a")
	assert.False(t, ok)
	assert.Equal(t, "../a", plain.SpecifierFor(from, filepath.Join(root, "src/a.ts")))
}

func TestSpecifierFor(t *testing.T) {
	root := monorepo(t)
	r := loadResolver(t, root, false)
	from := filepath.Join(root, "src/app/main.ts")

	tests := []struct {
		name string
		to   string
		want string
	}{
		{"alias", "src/lib/util.ts", "@lib/util"},
		{"first alias in declaration order", "src/lib/deep-override/thing.ts", "@lib/deep/thing"},
		{"package boundary", "packages/ui/src/button.tsx", "@acme/ui/src/button"},
		{"sibling", "src/app/other.ts", "./other"},
		{"parent", "src/index.ts", "../index"},
		{"declaration file", "src/types.d.ts", "../types.d.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.SpecifierFor(from, filepath.Join(root, tt.to)))
		})
	}

	// inside the same package a relative path is kept
	inPkg := filepath.Join(root, "packages/ui/src/card.tsx")
	assert.Equal(t, "./button", r.SpecifierFor(inPkg, filepath.Join(root, "packages/ui/src/button.tsx")))
}

func TestSpecifierFor_ShadowedAliasTarget(t *testing.T) {
	root := monorepo(t)
	writeFile(t, filepath.Join(root, "src/first/x.ts"), "")
	writeFile(t, filepath.Join(root, "src/second/x.ts"), "")
	r := loadResolver(t, root, false)
	from := filepath.Join(root, "src/app/main.ts")

	tests := []struct {
		name string
		to   string
		want string
	}{
		{"earlier target wins", "src/first/x.ts", "@multi/x"},
		{"shadowed by earlier target", "src/second/x.ts", "../second/x"},
		{"shadowed by earlier pattern", "src/lib/deep/thing.ts", "../lib/deep/thing"},
		{"not yet created", "src/second/new.ts", "@multi/new"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := filepath.Join(root, tt.to)
			spec := r.SpecifierFor(from, to)
			assert.Equal(t, tt.want, spec)
			if tt.name == "not yet created" {
				return
			}
			got, ok := r.Resolve(from, spec)
			require.True(t, ok)
			assert.Equal(t, r.StripExtension(to), got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	root := monorepo(t)
	targets := []string{
		"src/lib/util.ts",
		"src/lib/deep-override/thing.ts",
		"src/second/only-here.ts",
		"packages/core/src/index.ts",
		"packages/ui/src/button.tsx",
		"src/app/main.ts",
		"src/types.d.ts",
	}
	froms := []string{
		"src/app/main.ts",
		"packages/ui/src/button.tsx",
		"packages/core/src/index.ts",
	}

	for _, relativeToTsconfig := range []bool{false, true} {
		r := loadResolver(t, root, relativeToTsconfig)
		for _, f := range froms {
			from := filepath.Join(root, f)
			for _, tgt := range targets {
				target := filepath.Join(root, tgt)
				spec := r.SpecifierFor(from, target)
				got, ok := r.Resolve(from, spec)
				require.True(t, ok, "%s -> %s via %q", f, tgt, spec)
				assert.Equal(t, r.StripExtension(target), got, "%s -> %s via %q", f, tgt, spec)
			}
		}
	}
}

func TestNearestConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{}`)
	writeFile(t, filepath.Join(root, "pkg/tsconfig.build.json"), `{"compilerOptions": {"paths": {"~/*": ["./*"]}}}`)
	writeFile(t, filepath.Join(root, "pkg/src/a.ts"), "")
	writeFile(t, filepath.Join(root, "both/tsconfig.json"), `{}`)
	writeFile(t, filepath.Join(root, "both/tsconfig.build.json"), `{}`)

	r := loadResolver(t, root, false)

	cfg := r.NearestConfig(filepath.Join(root, "pkg/src/a.ts"))
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "pkg/tsconfig.build.json"), cfg.ConfigPath)
	assert.Equal(t, filepath.Join(root, "pkg"), cfg.BaseURL, "no baseUrl means the config directory")

	// memoized lookups return the same answer
	assert.Same(t, cfg, r.NearestConfig(filepath.Join(root, "pkg/src/b.ts")))

	cfg = r.NearestConfig(filepath.Join(root, "other/x.ts"))
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "tsconfig.json"), cfg.ConfigPath)

	cfg = r.NearestConfig(filepath.Join(root, "both/x.ts"))
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "both/tsconfig.json"), cfg.ConfigPath)

	got, ok := r.Resolve(filepath.Join(root, "pkg/src/a.ts"), "~/src/a")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pkg/src/a"), got)
}

func TestParseTSConfig_PathOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tsconfig.json")
	writeFile(t, path, `{"compilerOptions": {"baseUrl": ".", "paths": {"z/*": ["z/*"], "a/*": ["a1/*", "a2/*"], "m/*": ["m/*"]}}}`)

	cfg, err := parseTSConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Paths, 3)
	assert.Equal(t, "z/*", cfg.Paths[0].Pattern)
	assert.Equal(t, "a/*", cfg.Paths[1].Pattern)
	assert.Equal(t, []string{"a1/*", "a2/*"}, cfg.Paths[1].Targets)
	assert.Equal(t, "m/*", cfg.Paths[2].Pattern)
}

func TestLoad_SkipsMalformedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tsconfig.json"), `{ not json`)
	writeFile(t, filepath.Join(root, "lib/package.json"), `{"name": `)
	writeFile(t, filepath.Join(root, "ok/package.json"), `{"name": "ok"}`)

	r := loadResolver(t, root, false)
	assert.Nil(t, r.NearestConfig(filepath.Join(root, "a.ts")))
	assert.Equal(t, map[string]string{"ok": filepath.Join(root, "ok")}, r.Packages())
}

func TestLoad_Cancelled(t *testing.T) {
	root := monorepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, root, DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("/proj/src", "/proj/src"))
	assert.True(t, Contains("/proj/src", "/proj/src/a/b.ts"))
	assert.False(t, Contains("/proj/src", "/proj/src2/a.ts"))
	assert.False(t, Contains("/proj/src", "/proj"))
	assert.True(t, Contains("/proj/src", "/proj/src/..foo"), "a name starting with dots is still inside")
}

func TestProbeFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.tsx"), "")
	writeFile(t, filepath.Join(root, "dir/index.ts"), "")

	r := loadResolver(t, root, false)
	assert.Equal(t, filepath.Join(root, "a.tsx"), r.ProbeFile(filepath.Join(root, "a")))
	assert.Equal(t, filepath.Join(root, "dir"), r.ProbeFile(filepath.Join(root, "dir")))
	assert.Equal(t, filepath.Join(root, "nope"), r.ProbeFile(filepath.Join(root, "nope")))
}
