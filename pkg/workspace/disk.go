package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// DiskStore reads through read-only memory maps and writes whole files.
type DiskStore struct {
	logger *slog.Logger
}

// NewDiskStore creates a store backed by the local file system.
func NewDiskStore(logger *slog.Logger) *DiskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiskStore{logger: logger}
}

// ReadText maps the file and copies it out. Empty files cannot be mapped and
// return "". If mmap fails the file is read with os.ReadFile instead.
func (s *DiskStore) ReadText(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file %q: %w", path, err)
	}
	if stat.IsDir() {
		return "", fmt.Errorf("%q is a directory", path)
	}
	if stat.Size() == 0 {
		return "", nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		s.logger.Warn("mmap failed, using fallback",
			"file", path,
			"size", stat.Size(),
			"error", err)

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return "", fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				path, err, readErr)
		}
		return string(raw), nil
	}

	text := string(data) // copies before the mapping goes away
	if err := data.Unmap(); err != nil {
		s.logger.Warn("failed to unmap file", "path", path, "error", err)
	}
	return text, nil
}

// Persist overwrites path with the updated text, keeping its permissions.
func (s *DiskStore) Persist(path string, change Change) error {
	mode := fs.FileMode(0o644)
	if stat, err := os.Stat(path); err == nil {
		mode = stat.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(change.Updated), mode); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrApplyFailed, path, err)
	}
	return nil
}

// Create writes a new file with mode 0644.
func (s *DiskStore) Create(path, text string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return f.Close()
}

func (s *DiskStore) Rename(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("failed to rename %q to %q: %w", from, to, err)
	}
	return nil
}

func (s *DiskStore) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *DiskStore) EnsureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
