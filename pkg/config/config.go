// Package config loads project settings from .movets.yaml, a .env file and
// MOVETS_* environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the project settings file looked up in the workspace root.
const FileName = ".movets.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MOVETS_"

// Settings controls scanning, resolution and persistence.
type Settings struct {
	// FilesToScan are doublestar globs, relative to the root, defining the
	// scan universe.
	FilesToScan []string `yaml:"files_to_scan"`
	Exclude     []string `yaml:"exclude"`

	// RelativeToTsconfig prefers specifiers relative to the nearest tsconfig
	// directory over plain relative ones.
	RelativeToTsconfig bool `yaml:"relative_to_tsconfig"`

	// OpenEditors persists through neovim buffers instead of disk writes.
	OpenEditors bool   `yaml:"open_editors"`
	NvimAddress string `yaml:"nvim_address"`

	SkipWarning bool `yaml:"skip_warning"`

	// Extensions are the source extensions probed and stripped, in order.
	Extensions []string `yaml:"extensions"`

	// SynthesizeIndex writes index.ts into batch destinations lacking one.
	SynthesizeIndex bool `yaml:"synthesize_index"`

	Log LogSettings `yaml:"log"`
}

// LogSettings configures the process logger and the MCP call log.
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// MCPCallLog, when set, receives one JSON line per MCP tool call.
	MCPCallLog string `yaml:"mcp_call_log"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		FilesToScan: []string{"**/*.ts", "**/*.tsx"},
		Extensions:  []string{".ts", ".tsx"},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads settings for the workspace at root. path overrides the settings
// file location; a missing file is not an error.
func Load(root, path string) (*Settings, error) {
	settings := DefaultSettings()

	if path == "" {
		path = filepath.Join(root, FileName)
	}
	if err := settings.mergeFile(path); err != nil {
		return nil, err
	}

	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := settings.applyEnv(envLookup(dotenv)); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// envLookup checks the process environment first, then the .env values.
func envLookup(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var firstErr error
	boolean := func(key string, dst *bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
		if err == nil {
			*dst = b
		}
	}

	list("FILES_TO_SCAN", &s.FilesToScan)
	list("EXCLUDE", &s.Exclude)
	list("EXTENSIONS", &s.Extensions)
	boolean("RELATIVE_TO_TSCONFIG", &s.RelativeToTsconfig)
	boolean("OPEN_EDITORS", &s.OpenEditors)
	boolean("SKIP_WARNING", &s.SkipWarning)
	boolean("SYNTHESIZE_INDEX", &s.SynthesizeIndex)
	str("NVIM_ADDRESS", &s.NvimAddress)
	str("LOG_LEVEL", &s.Log.Level)
	str("LOG_FORMAT", &s.Log.Format)
	str("MCP_CALL_LOG", &s.Log.MCPCallLog)

	if s.NvimAddress == "" {
		if v, ok := lookup("NVIM_LISTEN_ADDRESS"); ok {
			s.NvimAddress = v
		}
	}
	return firstErr
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate normalizes extensions and checks for unusable combinations.
func (s *Settings) Validate() error {
	if len(s.FilesToScan) == 0 {
		s.FilesToScan = DefaultSettings().FilesToScan
	}
	if len(s.Extensions) == 0 {
		s.Extensions = DefaultSettings().Extensions
	}
	for i, ext := range s.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if ext == ".d.ts" {
			return fmt.Errorf("extension %q cannot be stripped; declaration files keep their full name", ext)
		}
		s.Extensions[i] = ext
	}
	if s.OpenEditors && s.NvimAddress == "" {
		return fmt.Errorf("open_editors requires nvim_address (or NVIM_LISTEN_ADDRESS)")
	}
	return nil
}

// NeedsConfirmation reports whether a destructive move should be confirmed
// first. Edits through open editors can be undone there, so they skip it.
func (s *Settings) NeedsConfirmation() bool {
	return !s.SkipWarning && !s.OpenEditors
}
