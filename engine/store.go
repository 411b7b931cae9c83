package engine

import (
	"errors"
	"fmt"
	fsys "io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"storefront/engine/parse"
)

// CachedTemplate is a loaded template: its source text and parsed tree.
type CachedTemplate struct {
	Name     string
	Source   string
	Tree     *parse.Tree
	LoadedAt time.Time
	Size     int
}

// TemplateStore loads template sources by name from an fs.FS and keeps
// them for the life of the process. Entries are only dropped by Remove or
// Clear. Two concurrent misses for one name may both read the source; the
// first stored entry wins.
type TemplateStore struct {
	fs          fsys.FS
	extension   string
	logger      *slog.Logger
	items       map[string]*CachedTemplate
	mutex       sync.RWMutex
	currentSize int
	hits        atomic.Int64
	misses      atomic.Int64
	loads       atomic.Int64
}

// NewTemplateStore creates a store reading "<name><extension>" from fs.
func NewTemplateStore(fs fsys.FS, extension string, logger *slog.Logger) *TemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateStore{
		fs:        fs,
		extension: extension,
		logger:    logger,
		items:     make(map[string]*CachedTemplate),
	}
}

// Key normalizes a template name into its cache key: slash separated,
// cleaned, without the template extension.
func (s *TemplateStore) Key(name string) string {
	k := path.Clean(filepath.ToSlash(name))
	if s.extension != "" {
		k = strings.TrimSuffix(k, s.extension)
	}
	return k
}

func (s *TemplateStore) pathFor(key string) string {
	return key + s.extension
}

// Get returns a cached template without touching the backing source.
func (s *TemplateStore) Get(name string) (*CachedTemplate, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	item, ok := s.items[s.Key(name)]
	return item, ok
}

// Load returns the cached template for name, reading and parsing it on
// the first call. A missing source yields a *NotFoundError; sources that
// fail to parse are not cached.
func (s *TemplateStore) Load(name string) (*CachedTemplate, error) {
	key := s.Key(name)

	s.mutex.RLock()
	item, ok := s.items[key]
	s.mutex.RUnlock()
	if ok {
		s.hits.Add(1)
		return item, nil
	}
	s.misses.Add(1)

	p := s.pathFor(key)
	if !fsys.ValidPath(p) {
		return nil, &NotFoundError{Name: name, Cause: fsys.ErrInvalid}
	}
	data, err := fsys.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fsys.ErrNotExist) {
			return nil, &NotFoundError{Name: name, Cause: err}
		}
		return nil, fmt.Errorf("error reading template %s: %w", name, err)
	}
	s.loads.Add(1)

	tree, err := parse.Parse(key, string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing template %s: %w", name, err)
	}
	loaded := &CachedTemplate{
		Name:     key,
		Source:   string(data),
		Tree:     tree,
		LoadedAt: time.Now(),
		Size:     len(data),
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if existing, ok := s.items[key]; ok {
		return existing, nil
	}
	s.items[key] = loaded
	s.currentSize += loaded.Size
	s.logger.Debug("template loaded", "name", key, "path", p, "bytes", loaded.Size)
	return loaded, nil
}

// Source returns the raw text of a template.
func (s *TemplateStore) Source(name string) (string, error) {
	item, err := s.Load(name)
	if err != nil {
		return "", err
	}
	return item.Source, nil
}

// Remove drops one template so the next Load reads it again.
func (s *TemplateStore) Remove(name string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := s.Key(name)
	if item, exists := s.items[key]; exists {
		s.currentSize -= item.Size
		delete(s.items, key)
	}
}

// Clear empties the cache.
func (s *TemplateStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items = make(map[string]*CachedTemplate)
	s.currentSize = 0
}

// Stats returns cache counters.
func (s *TemplateStore) Stats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return map[string]interface{}{
		"cache_enabled": true,
		"total_items":   len(s.items),
		"hits":          s.hits.Load(),
		"misses":        s.misses.Load(),
		"loads":         s.loads.Load(),
		"source_bytes":  s.currentSize,
		"source_size":   humanize.Bytes(uint64(s.currentSize)),
	}
}

// GetKeys returns the cached template names, sorted.
func (s *TemplateStore) GetKeys() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Names lists every template name available in the backing source.
func (s *TemplateStore) Names() ([]string, error) {
	var names []string
	err := fsys.WalkDir(s.fs, ".", func(p string, d fsys.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fsys.SkipDir
			}
			return nil
		}
		if s.extension != "" && !strings.HasSuffix(p, s.extension) {
			return nil
		}
		names = append(names, s.Key(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking templates: %w", err)
	}
	return names, nil
}
