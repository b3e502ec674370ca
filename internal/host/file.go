// Package host stores synchronized documents on the local filesystem.
package host

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/goliatone/go-mdsync/internal/logging"
	"github.com/goliatone/go-mdsync/internal/textpatch"
	"github.com/goliatone/go-mdsync/pkg/interfaces"
)

var (
	// ErrPathRequired is returned when a file host is built without a path.
	ErrPathRequired = errors.New("host: path is required")
	// ErrDiskChanged is returned by SaveText when the file holds text this
	// host has not loaded or saved. The file is left untouched.
	ErrDiskChanged = fmt.Errorf("host: file changed on disk: %w", textpatch.ErrConflict)
)

const defaultPollInterval = 500 * time.Millisecond

// File is a TextHost backed by a single file. Writes replace the file
// atomically through a temporary sibling and a rename.
type File struct {
	path     string
	perm     fs.FileMode
	logger   interfaces.Logger
	interval time.Duration
	diffs    bool

	mu       sync.Mutex
	text     string
	checksum uint64
	loaded   bool
	onChange func(text string)
}

// Option customises a File.
type Option func(*File)

// WithLogger sets the logger used for save and watch events.
func WithLogger(logger interfaces.Logger) Option {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPermissions sets the mode used when the file is created.
func WithPermissions(perm fs.FileMode) Option {
	return func(f *File) {
		if perm != 0 {
			f.perm = perm
		}
	}
}

// WithPollInterval sets how often Watch checks the file.
func WithPollInterval(interval time.Duration) Option {
	return func(f *File) {
		if interval > 0 {
			f.interval = interval
		}
	}
}

// WithUnifiedDiffs logs a unified diff of every save at debug level.
func WithUnifiedDiffs(enabled bool) Option {
	return func(f *File) {
		f.diffs = enabled
	}
}

// NewFile builds a host for path. The file is not read until Load.
func NewFile(path string, opts ...Option) (*File, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("host: resolve %s: %w", path, err)
	}
	f := &File{
		path:     abs,
		perm:     0o644,
		logger:   logging.NoOp(),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// OnExternalChange registers fn to receive the text another program wrote
// when SaveText finds it on disk. Without it the change is left for Watch.
func (f *File) OnExternalChange(fn func(text string)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// Path returns the absolute path of the file.
func (f *File) Path() string { return f.path }

// Load reads the file. A missing file loads as an empty document.
func (f *File) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	case err != nil:
		return "", fmt.Errorf("host: read %s: %w", f.path, err)
	}
	text := string(data)
	f.remember(text)
	f.logger.Debug("host.file.loaded", "path", f.path, "bytes", len(text))
	return text, nil
}

// SaveText writes text to the file. The patch is only used for logging. A
// file changed by another program since the last load or save is not
// overwritten; SaveText fails with ErrDiskChanged instead.
func (f *File) SaveText(ctx context.Context, text string, patch textpatch.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	previous := f.text
	f.mu.Unlock()

	foreign, err := f.write(text)
	if errors.Is(err, ErrDiskChanged) {
		f.logger.Warn("host.file.save_conflict", "path", f.path, "bytes", len(foreign))
		f.mu.Lock()
		notify := f.onChange
		if notify != nil {
			f.text = foreign
			f.checksum = xxhash.Sum64String(foreign)
		}
		f.mu.Unlock()
		if notify != nil {
			notify(foreign)
		}
		return err
	}
	if err != nil {
		f.logger.Error("host.file.save_failed", "path", f.path, "error", err)
		return err
	}
	f.remember(text)

	f.logger.Info("host.file.saved",
		"path", f.path,
		"bytes", len(text),
		"edits", len(patch),
		"patch_size", patch.Size(),
	)
	if f.diffs {
		if diff := textpatch.Unified(filepath.Base(f.path), previous, text, 2); diff != "" {
			f.logger.Debug("host.file.diff", "path", f.path, "diff", diff)
		}
	}
	return nil
}

// Watch polls the file and calls onChange with its text whenever it differs
// from the last text loaded or saved through f. It returns when ctx ends.
func (f *File) Watch(ctx context.Context, onChange func(text string)) error {
	if onChange == nil {
		return errors.New("host: watch callback is nil")
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				f.logger.Warn("host.file.watch_failed", "path", f.path, "error", err)
			}
			continue
		}
		sum := xxhash.Sum64(data)
		f.mu.Lock()
		changed := !f.loaded || sum != f.checksum
		if changed {
			f.text = string(data)
			f.checksum = sum
			f.loaded = true
		}
		f.mu.Unlock()
		if changed {
			f.logger.Debug("host.file.changed", "path", f.path, "bytes", len(data))
			onChange(string(data))
		}
	}
}

func (f *File) remember(text string) {
	f.mu.Lock()
	f.text = text
	f.checksum = xxhash.Sum64String(text)
	f.loaded = true
	f.mu.Unlock()
}

// write replaces the file with text. When the file on disk no longer matches
// the last known checksum it returns that text and ErrDiskChanged.
func (f *File) write(text string) (string, error) {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("host: create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return "", fmt.Errorf("host: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("host: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("host: close temp file: %w", err)
	}
	perm := f.perm
	if info, err := os.Stat(f.path); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.Chmod(name, perm); err != nil {
		return "", fmt.Errorf("host: chmod temp file: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		data, err := os.ReadFile(f.path)
		switch {
		case err == nil && xxhash.Sum64(data) != f.checksum:
			return string(data), ErrDiskChanged
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("host: read %s: %w", f.path, err)
		}
	}
	if err := os.Rename(name, f.path); err != nil {
		return "", fmt.Errorf("host: replace %s: %w", f.path, err)
	}
	return "", nil
}
