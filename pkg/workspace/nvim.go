package workspace

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"

	"github.com/gnana997/movets/pkg/editor"
)

// MaxApplyAttempts bounds how often a buffer edit is retried.
const MaxApplyAttempts = 5

// BufferStore persists rewrites through a running neovim instance so open
// buffers keep their undo history and unsaved edits. Files neovim has not
// loaded are read from disk.
type BufferStore struct {
	v      *nvim.Nvim
	disk   *DiskStore
	logger *slog.Logger
	delay  time.Duration
}

// DialBufferStore connects to the neovim instance listening on addr.
func DialBufferStore(addr string, logger *slog.Logger) (*BufferStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neovim at %s: %w", addr, err)
	}
	return &BufferStore{
		v:      v,
		disk:   NewDiskStore(logger),
		logger: logger,
		delay:  50 * time.Millisecond,
	}, nil
}

// Close drops the RPC connection.
func (s *BufferStore) Close() error {
	return s.v.Close()
}

// findBuffer returns the loaded buffer whose name is path.
func (s *BufferStore) findBuffer(path string) (nvim.Buffer, bool) {
	buffers, err := s.v.Buffers()
	if err != nil {
		s.logger.Warn("failed to list buffers", "error", err)
		return 0, false
	}
	for _, buf := range buffers {
		name, err := s.v.BufferName(buf)
		if err != nil || filepath.Clean(name) != filepath.Clean(path) {
			continue
		}
		loaded, err := s.v.IsBufferLoaded(buf)
		if err == nil && loaded {
			return buf, true
		}
	}
	return 0, false
}

// ReadText prefers the buffer contents over the file on disk.
func (s *BufferStore) ReadText(path string) (string, error) {
	buf, ok := s.findBuffer(path)
	if !ok {
		return s.disk.ReadText(path)
	}
	lines, err := s.v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return "", fmt.Errorf("failed to read buffer for %q: %w", path, err)
	}
	return string(bytes.Join(lines, []byte("\n"))) + "\n", nil
}

// Persist opens path in neovim, applies the edits with nvim_buf_set_text and
// writes the buffer. A failed attempt is retried up to MaxApplyAttempts times.
func (s *BufferStore) Persist(path string, change Change) error {
	var lastErr error
	for attempt := 1; attempt <= MaxApplyAttempts; attempt++ {
		if lastErr = s.applyOnce(path, change); lastErr == nil {
			return nil
		}
		s.logger.Debug("buffer edit failed, retrying",
			"file", path,
			"attempt", attempt,
			"error", lastErr)
		time.Sleep(s.delay)
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrApplyFailed, path, MaxApplyAttempts, lastErr)
}

func (s *BufferStore) applyOnce(path string, change Change) error {
	if err := s.v.Command(fmt.Sprintf("silent! edit %s", escapePath(path))); err != nil {
		return err
	}
	buf, err := s.v.CurrentBuffer()
	if err != nil {
		return err
	}

	// The buffer must still hold the text the edits were computed against.
	lines, err := s.v.BufferLines(buf, 0, -1, true)
	if err != nil {
		return err
	}
	current := string(bytes.Join(lines, []byte("\n")))
	if strings.TrimSuffix(change.Original, "\n") != current {
		return fmt.Errorf("buffer for %s changed since it was read", path)
	}

	edits := make([]editor.Edit, len(change.Edits))
	copy(edits, change.Edits)
	// Last edit first so earlier positions stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].Start > edits[j].Start })

	b := s.v.NewBatch()
	for _, e := range edits {
		sr, sc := position(change.Original, e.Start)
		er, ec := position(change.Original, e.End)
		b.SetBufferText(buf, sr, sc, er, ec, bytes.Split([]byte(e.Replacement), []byte("\n")))
	}
	b.Command("silent write")
	return b.Execute()
}

// position converts a byte offset into a 0-based row and byte column.
func position(text string, offset int) (row, col int) {
	prefix := text[:offset]
	row = strings.Count(prefix, "\n")
	col = offset - (strings.LastIndexByte(prefix, '\n') + 1)
	return row, col
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, " ", `\ `)
}

// Create writes the file on disk; neovim picks it up when opened.
func (s *BufferStore) Create(path, text string) error {
	return s.disk.Create(path, text)
}

// Rename moves the path on disk and renames every buffer that lived at or
// under it.
func (s *BufferStore) Rename(from, to string) error {
	type follow struct {
		buf  nvim.Buffer
		name string
	}
	var follows []follow
	if buffers, err := s.v.Buffers(); err == nil {
		for _, buf := range buffers {
			name, err := s.v.BufferName(buf)
			if err != nil || name == "" {
				continue
			}
			name = filepath.Clean(name)
			if name == from {
				follows = append(follows, follow{buf, to})
			} else if strings.HasPrefix(name, from+string(filepath.Separator)) {
				follows = append(follows, follow{buf, to + strings.TrimPrefix(name, from)})
			}
		}
	}

	if err := s.disk.Rename(from, to); err != nil {
		return err
	}
	for _, f := range follows {
		if err := s.v.SetBufferName(f.buf, f.name); err != nil {
			s.logger.Warn("failed to rename buffer", "from", from, "to", f.name, "error", err)
		}
	}
	return nil
}

func (s *BufferStore) Exists(path string) bool {
	return s.disk.Exists(path)
}

func (s *BufferStore) EnsureParentDir(path string) error {
	return s.disk.EnsureParentDir(path)
}
