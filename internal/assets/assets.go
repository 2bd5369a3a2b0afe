// Package assets is the asset server: a table of decoded assets keyed by
// path, shared through reference-counted handles and filled by pluggable
// loaders running on their own goroutines.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Faultbox/railrush/pkg/pak"
)

// ErrNotFound is returned by sources for unknown paths.
var ErrNotFound = errors.New("asset file not found")

// Source provides the raw bytes of an asset path.
type Source interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// ArchiveSource serves files from .pak bundles.
// Archives are searched in reverse order (last added = highest priority).
type ArchiveSource struct {
	archives []*pak.Archive
	mu       sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

// NewArchiveSource creates an empty archive source.
func NewArchiveSource() *ArchiveSource {
	return &ArchiveSource{}
}

// AddArchive opens a bundle and gives it the highest priority.
func (a *ArchiveSource) AddArchive(path string) error {
	archive, err := pak.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	a.mu.Lock()
	a.archives = append(a.archives, archive)
	a.mu.Unlock()
	return nil
}

// Read implements Source.
func (a *ArchiveSource) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := len(a.archives) - 1; i >= 0; i-- {
		if !a.archives[i].Contains(path) {
			continue
		}
		data, err := a.archives[i].Read(path)
		if err != nil {
			return nil, err
		}
		a.hits.Add(1)
		return data, nil
	}

	a.misses.Add(1)
	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// List returns the union of all archive listings.
func (a *ArchiveSource) List() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for i := len(a.archives) - 1; i >= 0; i-- {
		for _, name := range a.archives[i].List() {
			key := strings.ToLower(name)
			if !seen[key] {
				seen[key] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Stats returns how many reads were served and how many missed.
func (a *ArchiveSource) Stats() (hits, misses int) {
	return int(a.hits.Load()), int(a.misses.Load())
}

// Close closes all archives.
func (a *ArchiveSource) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, archive := range a.archives {
		errs = append(errs, archive.Close())
	}
	a.archives = nil
	return errors.Join(errs...)
}

// DirSource serves files below a root directory.
type DirSource struct {
	Root string
}

// Read implements Source.
func (d DirSource) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("asset path %q escapes root", path)
	}
	data, err := os.ReadFile(filepath.Join(d.Root, clean))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// MemSource serves files from memory. It is safe for concurrent use.
type MemSource struct {
	mu    sync.RWMutex
	files map[string][]byte
	reads map[string]int
}

// NewMemSource creates a source holding files.
func NewMemSource(files map[string][]byte) *MemSource {
	m := &MemSource{files: make(map[string][]byte), reads: make(map[string]int)}
	for k, v := range files {
		m.files[k] = v
	}
	return m
}

// Put adds or replaces a file.
func (m *MemSource) Put(path string, data []byte) {
	m.mu.Lock()
	m.files[path] = data
	m.mu.Unlock()
}

// Read implements Source.
func (m *MemSource) Read(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[path]++
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, nil
}

// Reads returns how many times path was read.
func (m *MemSource) Reads(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[path]
}
