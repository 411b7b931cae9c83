package engine

import (
	"errors"
	"fmt"
	"io"
	fsys "io/fs"
	"log/slog"
	"os"
	"strings"
)

const (
	DefaultViewsDir   = "./views"
	DefaultExtension  = ".html"
	DefaultLayoutName = "layout"
)

// ViewEngine renders named views against a data context.
//
// Substituted values are written as-is: no HTML escaping is applied.
// Callers must escape any untrusted input before putting it in the data
// context.
type ViewEngine struct {
	extension  string
	layoutName string
	store      *TemplateStore
	watcher    *FileWatcher
	logger     *slog.Logger
}

// ViewConfig configures a ViewEngine.
type ViewConfig struct {
	ViewsDir  string
	Extension string
	// LayoutName is the template wrapped around every page when it exists.
	LayoutName    string
	DisableLayout bool
	// EmbeddedFS is consulted when a template is missing from ViewsDir.
	EmbeddedFS fsys.FS
	// FS, when set, is the only template source; ViewsDir and EmbeddedFS
	// are ignored for lookups.
	FS fsys.FS
	// Development starts a FileWatcher that evicts edited templates.
	Development bool
	Logger      *slog.Logger
}

// NewViewEngineWithConfig creates a ViewEngine. Missing fields fall back
// to ./views, .html and "layout".
func NewViewEngineWithConfig(config ViewConfig) (*ViewEngine, error) {
	if config.ViewsDir == "" {
		config.ViewsDir = DefaultViewsDir
	}
	if config.Extension == "" {
		config.Extension = DefaultExtension
	} else if !strings.HasPrefix(config.Extension, ".") {
		config.Extension = "." + config.Extension
	}
	if config.LayoutName == "" {
		config.LayoutName = DefaultLayoutName
	}
	if config.DisableLayout {
		config.LayoutName = ""
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var source fsys.FS = NewHybridFS(config.ViewsDir, config.EmbeddedFS)
	if config.FS != nil {
		source = config.FS
	}
	ve := &ViewEngine{
		extension:  config.Extension,
		layoutName: config.LayoutName,
		store:      NewTemplateStore(source, config.Extension, logger),
		logger:     logger,
	}

	if config.Development {
		if _, err := os.Stat(config.ViewsDir); err != nil {
			logger.Warn("views directory not found, hot reload disabled", "dir", config.ViewsDir, "error", err)
			return ve, nil
		}
		watcher, err := NewFileWatcher(ve, config.ViewsDir)
		if err != nil {
			return nil, fmt.Errorf("could not start file watcher: %w", err)
		}
		watcher.Start()
		ve.watcher = watcher
	}

	return ve, nil
}

// NewViewEngine creates a ViewEngine over templatesDir with default settings.
func NewViewEngine(templatesDir string) *ViewEngine {
	ve, _ := NewViewEngineWithConfig(ViewConfig{ViewsDir: templatesDir})
	return ve
}

// Close stops the file watcher, if any.
func (v *ViewEngine) Close() error {
	if v.watcher != nil {
		return v.watcher.Stop()
	}
	return nil
}

// Render renders templateName with data, wrapped in the configured layout
// when one exists. Nothing is written to w if rendering fails.
func (v *ViewEngine) Render(w io.Writer, templateName string, data interface{}) error {
	return v.RenderWithLayout(w, templateName, data, v.layoutName)
}

// RenderWithLayout is Render with an explicit layout name; "" renders the
// page without a layout.
func (v *ViewEngine) RenderWithLayout(w io.Writer, templateName string, data interface{}, layout string) error {
	out, err := v.render(templateName, data, layout)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// RenderString renders templateName into a string.
func (v *ViewEngine) RenderString(templateName string, data interface{}) (string, error) {
	return v.render(templateName, data, v.layoutName)
}

func (v *ViewEngine) render(templateName string, data interface{}, layout string) (string, error) {
	page, err := v.store.Load(templateName)
	if err != nil {
		return "", err
	}

	isLayout := layout != "" && page.Name == v.store.Key(layout)
	if page.Tree.ContentMarkers > 0 && !isLayout {
		return "", fmt.Errorf("error rendering %s: %w: %s is only allowed in a layout",
			templateName, ErrContentMarker, "{{{content}}}")
	}

	var body strings.Builder
	newState(&body, data).walkList(page.Tree.Root)
	if layout == "" || isLayout {
		return body.String(), nil
	}

	lt, err := v.store.Load(layout)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return body.String(), nil
		}
		return "", fmt.Errorf("error loading layout %s: %w", layout, err)
	}
	if err := checkLayout(lt); err != nil {
		return "", err
	}

	content := body.String()
	var out strings.Builder
	out.Grow(len(lt.Source) + len(content))
	st := newState(&out, data)
	st.content = &content
	st.walkList(lt.Tree.Root)
	return out.String(), nil
}

func checkLayout(lt *CachedTemplate) error {
	if n := lt.Tree.ContentMarkers; n != 1 {
		return fmt.Errorf("layout %s: %w: expected exactly one {{{content}}}, found %d",
			lt.Name, ErrContentMarker, n)
	}
	return nil
}

// Load returns the raw source of a template, reading it on first use.
func (v *ViewEngine) Load(templateName string) (string, error) {
	return v.store.Source(templateName)
}

// ClearCache drops every cached template.
func (v *ViewEngine) ClearCache() {
	v.store.Clear()
}

// ClearCacheFor drops a single template from the cache.
func (v *ViewEngine) ClearCacheFor(templateName string) {
	v.store.Remove(templateName)
}

// CacheStats returns cache counters.
func (v *ViewEngine) CacheStats() map[string]interface{} {
	return v.store.Stats()
}

// CachedTemplates returns the names of the cached templates.
func (v *ViewEngine) CachedTemplates() []string {
	return v.store.GetKeys()
}

// LayoutName returns the default layout name, "" when layouts are disabled.
func (v *ViewEngine) LayoutName() string {
	return v.layoutName
}

// Templates lists the names of every template in the backing source.
func (v *ViewEngine) Templates() ([]string, error) {
	return v.store.Names()
}

// PreloadTemplates loads every template of the backing source into the
// cache, reporting all templates that failed.
func (v *ViewEngine) PreloadTemplates() error {
	names, err := v.store.Names()
	if err != nil {
		return err
	}

	var errs []string
	for _, name := range names {
		if _, err := v.store.Load(name); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("preload completed with errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
