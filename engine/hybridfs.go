package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// HybridFS implements fs.FS and tries to open files from disk first (relative to baseDir),
// then falls back to an embedded fs.FS if provided.
type HybridFS struct {
	baseDir  string
	embedded fs.FS
}

// NewHybridFS creates a HybridFS rooted at baseDir. If embedded is nil, it behaves like disk FS.
func NewHybridFS(baseDir string, embedded fs.FS) *HybridFS {
	return &HybridFS{baseDir: baseDir, embedded: embedded}
}

// Open tries disk first, then embedded.
func (h *HybridFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	diskPath := filepath.Join(h.baseDir, filepath.FromSlash(name))
	f, err := os.Open(diskPath)
	if err == nil {
		return f, nil
	}
	if h.embedded != nil {
		return h.embedded.Open(name)
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadDir merges the listings of disk and embedded FS; disk entries win
// on name clashes.
func (h *HybridFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	seen := make(map[string]fs.DirEntry)
	diskEntries, diskErr := os.ReadDir(filepath.Join(h.baseDir, filepath.FromSlash(name)))
	for _, e := range diskEntries {
		seen[e.Name()] = e
	}
	var embErr error = fs.ErrNotExist
	if h.embedded != nil {
		var embEntries []fs.DirEntry
		embEntries, embErr = fs.ReadDir(h.embedded, name)
		for _, e := range embEntries {
			if _, ok := seen[e.Name()]; !ok {
				seen[e.Name()] = e
			}
		}
	}
	if diskErr != nil && embErr != nil {
		if errors.Is(diskErr, fs.ErrNotExist) {
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
		}
		return nil, diskErr
	}

	out := make([]fs.DirEntry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}
