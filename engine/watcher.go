package engine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches the views directory and evicts templates from the
// cache when their files change, so edits show up on the next render.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	engine    *ViewEngine
	watchDir  string
	extension string
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	// evicted, when set, receives the cache key of every evicted template.
	evicted func(name string)
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(engine *ViewEngine, watchDir string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:   watcher,
		engine:    engine,
		watchDir:  watchDir,
		extension: engine.extension,
		done:      make(chan struct{}),
	}

	if err := fw.addWatchRecursive(watchDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	return fw, nil
}

// addWatchRecursive adds directories to watch recursively
func (fw *FileWatcher) addWatchRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return fw.watcher.Add(path)
		}

		return nil
	})
}

// Start starts watching
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		for {
			select {
			case event, ok := <-fw.watcher.Events:
				if !ok {
					return
				}
				fw.handle(event)

			case err, ok := <-fw.watcher.Errors:
				if !ok {
					return
				}
				fw.engine.logger.Error("watcher error", "error", err)

			case <-fw.done:
				return
			}
		}
	}()
}

func (fw *FileWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.addWatchRecursive(event.Name); err != nil {
				fw.engine.logger.Warn("could not watch new directory", "dir", event.Name, "error", err)
			}
			return
		}
	}
	if !fw.isTemplateFile(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Create) {
		return
	}

	relPath, err := filepath.Rel(fw.watchDir, event.Name)
	if err != nil {
		fw.engine.logger.Info("template changed, clearing cache", "file", event.Name)
		fw.engine.ClearCache()
		return
	}
	name := fw.engine.store.Key(relPath)
	fw.engine.logger.Info("template changed, evicting", "template", name, "op", event.Op.String())
	fw.engine.ClearCacheFor(name)
	if fw.evicted != nil {
		fw.evicted(name)
	}
}

// isTemplateFile checks if a file is a template file
func (fw *FileWatcher) isTemplateFile(filename string) bool {
	return fw.extension == "" || strings.HasSuffix(filename, fw.extension)
}

// Stop watching
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}
