// Package resolver maps module specifiers to absolute paths and back,
// following relative paths, tsconfig path aliases and workspace package
// names.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gnana997/movets/pkg/util"
	"github.com/gnana997/movets/pkg/workspace"
)

// Options configures resolution.
type Options struct {
	// Extensions are probed in order and stripped from results.
	Extensions []string

	// RelativeToTsconfig resolves and emits specifiers relative to the
	// nearest tsconfig directory.
	RelativeToTsconfig bool

	// Exists reports whether a path exists. Defaults to os.Stat.
	Exists func(path string) bool

	// MemoSize bounds the nearest-config cache.
	MemoSize int

	Logger *slog.Logger
}

// DefaultOptions returns options for a plain TypeScript project.
func DefaultOptions() Options {
	return Options{
		Extensions: []string{".ts", ".tsx"},
		MemoSize:   4096,
	}
}

// Manifest is a package.json that declares a name.
type Manifest struct {
	Path string
	Name string
}

// Resolver is an immutable snapshot of alias and package configuration.
// It is rebuilt, never patched, when configuration changes.
type Resolver struct {
	opts Options

	configs  map[string]*AliasConfig // config dir → config
	packages map[string]string       // package name → root dir

	byName    []string // package names, longest first
	byRoot    []string // package names, deepest root first
	ambiguous []string

	nearest *lru.Cache[string, *AliasConfig]
	logger  *slog.Logger
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// New builds a resolver from parsed configuration. Configs and manifests are
// registered in the order given.
func New(configs []*AliasConfig, manifests []Manifest, opts Options) (*Resolver, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Exists == nil {
		opts.Exists = fileExists
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}
	if opts.MemoSize <= 0 {
		opts.MemoSize = DefaultOptions().MemoSize
	}

	nearest, err := lru.New[string, *AliasConfig](opts.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create config cache: %w", err)
	}

	r := &Resolver{
		opts:     opts,
		configs:  make(map[string]*AliasConfig),
		packages: make(map[string]string),
		nearest:  nearest,
		logger:   opts.Logger,
	}

	for _, cfg := range configs {
		r.addConfig(cfg)
	}

	seen := make(map[string]bool)
	for _, m := range manifests {
		if m.Name == "" {
			continue
		}
		if seen[m.Name] {
			if _, ok := r.packages[m.Name]; ok {
				delete(r.packages, m.Name)
				r.ambiguous = append(r.ambiguous, m.Name)
				r.logger.Warn("package name declared more than once, ignoring it",
					"package", m.Name,
					"manifest", m.Path)
			}
			continue
		}
		seen[m.Name] = true
		r.packages[m.Name] = filepath.Dir(m.Path)
	}

	for name := range r.packages {
		r.byName = append(r.byName, name)
	}
	sort.Slice(r.byName, func(i, j int) bool {
		if len(r.byName[i]) != len(r.byName[j]) {
			return len(r.byName[i]) > len(r.byName[j])
		}
		return r.byName[i] < r.byName[j]
	})
	r.byRoot = append([]string(nil), r.byName...)
	sort.SliceStable(r.byRoot, func(i, j int) bool {
		return len(r.packages[r.byRoot[i]]) > len(r.packages[r.byRoot[j]])
	})

	return r, nil
}

// addConfig keeps one config per directory; tsconfig.json beats
// tsconfig.build.json.
func (r *Resolver) addConfig(cfg *AliasConfig) {
	rank := func(c *AliasConfig) int {
		base := filepath.Base(c.ConfigPath)
		for i, name := range tsconfigNames {
			if base == name {
				return i
			}
		}
		return len(tsconfigNames)
	}
	if existing, ok := r.configs[cfg.Root]; ok && rank(existing) <= rank(cfg) {
		return
	}
	r.configs[cfg.Root] = cfg
}

// Load discovers every tsconfig and package.json under root, reads them in
// parallel and builds a resolver. Unreadable or malformed files are skipped.
func Load(ctx context.Context, root string, opts Options) (*Resolver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	include := append([]string{"**/package.json"}, prefixAll("**/", tsconfigNames)...)
	matcher, err := workspace.NewMatcher(root, include, nil)
	if err != nil {
		return nil, err
	}
	files, err := matcher.Walk(root, logger)
	if err != nil {
		return nil, fmt.Errorf("config discovery failed: %w", err)
	}

	configs := make([]*AliasConfig, len(files))
	manifests := make([]Manifest, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(util.GetOptimalPoolSize())
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if filepath.Base(file) == "package.json" {
				name, err := parsePackageName(file)
				if err != nil {
					logger.Debug("skipping manifest", "path", file, "error", err)
					return nil
				}
				manifests[i] = Manifest{Path: file, Name: name}
				return nil
			}
			cfg, err := parseTSConfig(file)
			if err != nil {
				logger.Debug("skipping tsconfig", "path", file, "error", err)
				return nil
			}
			configs[i] = cfg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var keptConfigs []*AliasConfig
	var keptManifests []Manifest
	for i := range files {
		if configs[i] != nil {
			keptConfigs = append(keptConfigs, configs[i])
		}
		if manifests[i].Name != "" {
			keptManifests = append(keptManifests, manifests[i])
		}
	}

	r, err := New(keptConfigs, keptManifests, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded resolution config",
		"tsconfigs", len(r.configs),
		"packages", len(r.packages),
		"ambiguous", len(r.ambiguous))
	return r, nil
}

func prefixAll(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

// Extensions returns the configured source extensions.
func (r *Resolver) Extensions() []string {
	return r.opts.Extensions
}

// Ambiguous lists package names dropped because two manifests declared them.
func (r *Resolver) Ambiguous() []string {
	return append([]string(nil), r.ambiguous...)
}

// Packages returns a copy of the package name → root mapping.
func (r *Resolver) Packages() map[string]string {
	out := make(map[string]string, len(r.packages))
	for k, v := range r.packages {
		out[k] = v
	}
	return out
}

// NearestConfig returns the config of the closest ancestor directory of
// file, or nil.
func (r *Resolver) NearestConfig(file string) *AliasConfig {
	return r.configForDir(filepath.Dir(file))
}

func (r *Resolver) configForDir(dir string) *AliasConfig {
	if cfg, ok := r.nearest.Get(dir); ok {
		return cfg
	}
	cfg, ok := r.configs[dir]
	if !ok {
		if parent := filepath.Dir(dir); parent != dir {
			cfg = r.configForDir(parent)
		}
	}
	r.nearest.Add(dir, cfg)
	return cfg
}

// StripExtension removes a known source extension from path.
func (r *Resolver) StripExtension(path string) string {
	return StripExtension(path, r.opts.Extensions)
}

// exists reports whether p exists as given or with a known extension.
func (r *Resolver) exists(p string) bool {
	if r.opts.Exists(p) {
		return true
	}
	for _, ext := range r.opts.Extensions {
		if r.opts.Exists(p + ext) {
			return true
		}
	}
	return false
}

// ProbeFile returns p with the first known extension under which a file
// exists, or p unchanged. Graph targets are keyed this way.
func (r *Resolver) ProbeFile(p string) string {
	for _, ext := range r.opts.Extensions {
		if strings.HasSuffix(p, ext) {
			return p
		}
	}
	for _, ext := range r.opts.Extensions {
		if r.opts.Exists(p + ext) {
			return p + ext
		}
	}
	return p
}

// Resolve maps a specifier written in fromFile to an absolute path with any
// known extension stripped. Relative specifiers always resolve; the others
// resolve through the nearest tsconfig, then package names.
func (r *Resolver) Resolve(fromFile, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}
	if IsRelative(specifier) {
		return r.StripExtension(filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(specifier))), true
	}

	if cfg := r.NearestConfig(fromFile); cfg != nil {
		if r.opts.RelativeToTsconfig {
			candidate := filepath.Join(cfg.Root, filepath.FromSlash(specifier))
			if r.exists(candidate) {
				return r.StripExtension(candidate), true
			}
		}
		if p, ok := r.resolveAlias(cfg, specifier); ok {
			return r.StripExtension(p), true
		}
	}

	for _, name := range r.byName {
		if strings.HasPrefix(specifier, name+"/") {
			rest := filepath.FromSlash(specifier[len(name)+1:])
			return r.StripExtension(filepath.Join(r.packages[name], rest)), true
		}
	}
	return "", false
}

// resolveAlias tries the wildcard patterns of cfg in declaration order.
func (r *Resolver) resolveAlias(cfg *AliasConfig, specifier string) (string, bool) {
	for _, m := range cfg.Paths {
		if !strings.HasSuffix(m.Pattern, "*") {
			continue
		}
		prefix := strings.TrimSuffix(m.Pattern, "*")
		if !strings.HasPrefix(specifier, prefix) {
			continue
		}
		rest := filepath.FromSlash(specifier[len(prefix):])
		for _, target := range m.Targets {
			mappedDir := filepath.Join(cfg.BaseURL, filepath.FromSlash(strings.TrimSuffix(target, "*")))
			candidate := filepath.Join(mappedDir, rest)
			if r.exists(candidate) {
				return candidate, true
			}
		}
		// A lone target is trusted so not-yet-created files still resolve.
		if len(m.Targets) == 1 {
			mappedDir := filepath.Join(cfg.BaseURL, filepath.FromSlash(strings.TrimSuffix(m.Targets[0], "*")))
			return filepath.Join(mappedDir, rest), true
		}
	}
	return "", false
}

// SpecifierFor returns the specifier fromFile should use to import to.
//
// Preference: a tsconfig alias whose target directory holds to; a package
// name when to is in another package; a tsconfig-root-relative path when
// enabled; a plain relative path.
func (r *Resolver) SpecifierFor(fromFile, to string) string {
	to = r.StripExtension(to)
	cfg := r.NearestConfig(fromFile)

	if cfg != nil {
		if spec, ok := r.aliasFor(cfg, to); ok {
			return spec
		}
	}

	for _, name := range r.byRoot {
		root := r.packages[name]
		if !Contains(root, to) || Contains(root, fromFile) {
			continue
		}
		if rel, err := filepath.Rel(root, to); err == nil && rel != "." {
			return name + "/" + toSpecifier(rel)
		}
	}

	if r.opts.RelativeToTsconfig && cfg != nil && Contains(cfg.Root, fromFile) && Contains(cfg.Root, to) {
		if rel, err := filepath.Rel(cfg.Root, to); err == nil && rel != "." {
			return toSpecifier(rel)
		}
	}

	rel, err := filepath.Rel(filepath.Dir(fromFile), to)
	if err != nil {
		return toSpecifier(to)
	}
	spec := toSpecifier(rel)
	if !IsRelative(spec) {
		spec = "./" + spec
	}
	return spec
}

// aliasFor emits the first wildcard alias whose wildcard target directory
// contains to. An alias that resolves to a different existing file, through
// an earlier pattern or an earlier target of the same pattern, is skipped.
func (r *Resolver) aliasFor(cfg *AliasConfig, to string) (string, bool) {
	for _, m := range cfg.Paths {
		if !strings.HasSuffix(m.Pattern, "*") {
			continue
		}
		prefix := strings.TrimSuffix(m.Pattern, "*")
		for _, target := range m.Targets {
			if !strings.HasSuffix(target, "*") {
				continue
			}
			mappedDir := filepath.Join(cfg.BaseURL, filepath.FromSlash(strings.TrimSuffix(target, "*")))
			if !Contains(mappedDir, to) {
				continue
			}
			rel, err := filepath.Rel(mappedDir, to)
			if err != nil || rel == "." {
				continue
			}
			spec := prefix + toSpecifier(rel)
			if got, ok := r.resolveAlias(cfg, spec); ok && r.StripExtension(got) != to {
				continue
			}
			return spec, true
		}
	}
	return "", false
}
