package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config file names, in the order they are preferred within one directory.
var tsconfigNames = []string{"tsconfig.json", "tsconfig.build.json"}

// PathMapping is one compilerOptions.paths entry.
type PathMapping struct {
	Pattern string
	Targets []string
}

// AliasConfig is what resolution needs from one tsconfig file.
type AliasConfig struct {
	// Root is the directory holding the config file.
	Root       string
	ConfigPath string
	// BaseURL is absolute. It is Root when the file sets no baseUrl.
	BaseURL string
	// Paths keeps declaration order; earlier patterns win.
	Paths []PathMapping
}

type tsconfigFile struct {
	CompilerOptions struct {
		BaseURL *string         `json:"baseUrl"`
		Paths   json.RawMessage `json:"paths"`
	} `json:"compilerOptions"`
}

// parseTSConfig reads a tsconfig, which may carry comments and trailing commas.
func parseTSConfig(path string) (*AliasConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var file tsconfigFile
	if err := json.Unmarshal(std, &file); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	root := filepath.Dir(path)
	cfg := &AliasConfig{Root: root, ConfigPath: path, BaseURL: root}
	if file.CompilerOptions.BaseURL != nil {
		cfg.BaseURL = filepath.Join(root, filepath.FromSlash(*file.CompilerOptions.BaseURL))
	}
	if len(file.CompilerOptions.Paths) > 0 {
		paths, err := decodeOrderedPaths(file.CompilerOptions.Paths)
		if err != nil {
			return nil, fmt.Errorf("failed to decode paths in %s: %w", path, err)
		}
		cfg.Paths = paths
	}
	return cfg, nil
}

// decodeOrderedPaths walks the paths object token by token since a Go map
// would lose the pattern order.
func decodeOrderedPaths(raw json.RawMessage) ([]PathMapping, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var mappings []PathMapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", keyTok)
		}
		var targets []string
		if err := dec.Decode(&targets); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", key, err)
		}
		mappings = append(mappings, PathMapping{Pattern: key, Targets: targets})
	}
	return mappings, nil
}

type packageManifest struct {
	Name string `json:"name"`
}

// parsePackageName returns the name a package.json declares, or "".
func parsePackageName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return manifest.Name, nil
}
