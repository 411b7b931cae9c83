package engine

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"storefront/engine/parse"
)

// countingFS records how often each file is opened.
type countingFS struct {
	fs    fstest.MapFS
	mu    sync.Mutex
	opens map[string]int
}

func newCountingFS(files map[string]string) *countingFS {
	m := fstest.MapFS{}
	for name, body := range files {
		m[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return &countingFS{fs: m, opens: make(map[string]int)}
}

func (c *countingFS) Open(name string) (fs.File, error) {
	c.mu.Lock()
	c.opens[name]++
	c.mu.Unlock()
	return c.fs.Open(name)
}

func (c *countingFS) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens[name]
}

func newTestEngine(t *testing.T, files map[string]string) (*ViewEngine, *countingFS) {
	t.Helper()
	cfs := newCountingFS(files)
	ve, err := NewViewEngineWithConfig(ViewConfig{FS: cfs})
	if err != nil {
		t.Fatalf("NewViewEngineWithConfig: %v", err)
	}
	return ve, cfs
}

func render(t *testing.T, ve *ViewEngine, name string, data interface{}) string {
	t.Helper()
	out, err := ve.RenderString(name, data)
	if err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return out
}

func TestRenderVariables(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"page.html":    `<p>{{titulo}}</p><p>{{producto.nombre}}</p><p>{{no.such.path}}</p>`,
		"missing.html": `[{{no.such.path}}]`,
	})
	data := map[string]interface{}{
		"titulo":   "Hi",
		"producto": map[string]interface{}{"nombre": "Mouse"},
	}
	if got, want := render(t, ve, "page", data), `<p>Hi</p><p>Mouse</p><p></p>`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := render(t, ve, "missing", map[string]interface{}{}); got != "[]" {
		t.Fatalf("absent path should render empty, got %q", got)
	}
}

func TestRenderTruthiness(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"cond.html": `{{#if x}}Y{{else}}N{{/if}}`,
	})
	tests := []struct {
		name string
		x    interface{}
		want string
	}{
		{"null", nil, "N"},
		{"empty sequence", []int{}, "N"},
		{"sequence", []int{1}, "Y"},
		{"empty mapping", map[string]int{}, "N"},
		{"mapping", map[string]int{"a": 1}, "Y"},
		{"false", false, "N"},
		{"true", true, "Y"},
		{"zero", 0, "N"},
		{"zero float", 0.0, "N"},
		{"number", 42, "Y"},
		{"negative", -1.5, "Y"},
		{"empty string", "", "N"},
		{"string zero", "0", "Y"},
		{"string false", "false", "Y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(t, ve, "cond", map[string]interface{}{"x": tt.x})
			if got != tt.want {
				t.Fatalf("x=%#v: got %q, want %q", tt.x, got, tt.want)
			}
		})
	}
	if got := render(t, ve, "cond", map[string]interface{}{}); got != "N" {
		t.Fatalf("absent: got %q, want N", got)
	}
}

func TestRenderIfWithoutElse(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"cond.html": `a{{#if x}}b{{/if}}c`,
	})
	if got := render(t, ve, "cond", map[string]interface{}{"x": true}); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := render(t, ve, "cond", map[string]interface{}{"x": false}); got != "ac" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderEachSequence(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"list.html": `{{#each items}}{{nombre}}-{{/each}}`,
		"this.html": `{{#each items}}<{{this}}>{{/each}}`,
	})
	data := map[string]interface{}{
		"items": []map[string]interface{}{{"nombre": "a"}, {"nombre": "b"}},
	}
	if got := render(t, ve, "list", data); got != "a-b-" {
		t.Fatalf("got %q, want a-b-", got)
	}
	if got := render(t, ve, "this", map[string]interface{}{"items": []string{"x", "y"}}); got != "<x><y>" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderEachMapping(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"map.html":    `{{#each map}}{{@key}}={{this}};{{/each}}`,
		"nested.html": `{{#each users}}{{@key}}:{{nombre}}/{{this.email}} {{/each}}`,
	})
	om := NewOrderedMap().Set("y", 2).Set("x", 1)
	if got := render(t, ve, "map", map[string]interface{}{"map": om}); got != "y=2;x=1;" {
		t.Fatalf("ordered map: got %q", got)
	}
	if got := render(t, ve, "map", map[string]interface{}{"map": map[string]int{"y": 2, "x": 1}}); got != "x=1;y=2;" {
		t.Fatalf("go map: got %q", got)
	}
	users := map[string]interface{}{
		"admin": map[string]string{"nombre": "Administrador", "email": "admin@tienda.com"},
	}
	if got := render(t, ve, "nested", map[string]interface{}{"users": users}); got != "admin:Administrador/admin@tienda.com " {
		t.Fatalf("got %q", got)
	}
}

func TestRenderEachAbsentOrScalar(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"list.html": `[{{#each items}}x{{/each}}]`,
	})
	for _, items := range []interface{}{nil, "text", 5, true} {
		if got := render(t, ve, "list", map[string]interface{}{"items": items}); got != "[]" {
			t.Fatalf("items=%#v: got %q", items, got)
		}
	}
	if got := render(t, ve, "list", nil); got != "[]" {
		t.Fatalf("nil data: got %q", got)
	}
}

func TestRenderKeyOutsideMappingLoop(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"key.html": `[{{@key}}]{{#each xs}}({{@key}}){{/each}}`,
	})
	if got := render(t, ve, "key", map[string]interface{}{"xs": []int{1, 2}}); got != "[]()()" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderThisOutsideLoop(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"this.html": `[{{this}}][{{this.a}}]{{#if this}}yes{{else}}no{{/if}}{{#each xs}}({{this}}){{/each}}`,
	})
	got := render(t, ve, "this", map[string]interface{}{"a": 1, "xs": []int{1, 2}})
	if got != "[][]no(1)(2)" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderNestedBlocks(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"nested.html": `{{#each categorias}}<h2>{{nombre}}</h2>{{#each productos}}{{#if oferta}}*{{/if}}{{nombre}}@{{tienda}};{{/each}}{{/each}}`,
	})
	data := map[string]interface{}{
		"tienda": "Mi Tienda",
		"categorias": []interface{}{
			map[string]interface{}{
				"nombre": "Accesorios",
				"productos": []interface{}{
					map[string]interface{}{"nombre": "Mouse", "oferta": true},
					map[string]interface{}{"nombre": "Teclado", "oferta": false},
				},
			},
		},
	}
	want := `<h2>Accesorios</h2>*Mouse@Mi Tienda;Teclado@Mi Tienda;`
	if got := render(t, ve, "nested", data); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderLiteralPlaceholderValuesAreNotRescanned(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"layout.html": `<title>{{titulo}}</title>{{{content}}}`,
		"page.html":   `<p>{{mensaje}}</p>`,
	})
	data := map[string]interface{}{"titulo": "T", "mensaje": "{{titulo}}"}
	if got, want := render(t, ve, "page", data), `<title>T</title><p>{{titulo}}</p>`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderNoEscaping(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"raw.html": `<div>{{html}}</div>`,
	})
	data := map[string]interface{}{"html": "<strong>&</strong>"}
	if got := render(t, ve, "raw", data); got != "<div><strong>&</strong></div>" {
		t.Fatalf("got %q", got)
	}
}

func TestLayoutComposition(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"layout.html": `<html>{{{content}}}</html>`,
		"body.html":   `<p>{{titulo}}</p>`,
	})
	if got := render(t, ve, "body", map[string]interface{}{"titulo": "Hi"}); got != "<html><p>Hi</p></html>" {
		t.Fatalf("got %q", got)
	}
}

func TestLayoutOptional(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"body.html": `<p>{{titulo}}</p>`,
	})
	if got := render(t, ve, "body", map[string]interface{}{"titulo": "Hi"}); got != "<p>Hi</p>" {
		t.Fatalf("got %q", got)
	}
}

func TestLayoutOverrideAndDisable(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"layout.html": `<html>{{{content}}}</html>`,
		"admin.html":  `<admin>{{{content}}}</admin>`,
		"body.html":   `x`,
	})
	var sb strings.Builder
	if err := ve.RenderWithLayout(&sb, "body", nil, "admin"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if sb.String() != "<admin>x</admin>" {
		t.Fatalf("got %q", sb.String())
	}
	sb.Reset()
	if err := ve.RenderWithLayout(&sb, "body", nil, ""); err != nil {
		t.Fatalf("render: %v", err)
	}
	if sb.String() != "x" {
		t.Fatalf("got %q", sb.String())
	}

	disabled, err := NewViewEngineWithConfig(ViewConfig{FS: newCountingFS(map[string]string{
		"layout.html": `<html>{{{content}}}</html>`,
		"body.html":   `x`,
	}), DisableLayout: true})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if got := render(t, disabled, "body", nil); got != "x" {
		t.Fatalf("layout should be disabled, got %q", got)
	}
}

func TestLayoutMarkerErrors(t *testing.T) {
	tests := []struct {
		name   string
		layout string
	}{
		{"no marker", `<html></html>`},
		{"two markers", `{{{content}}}{{{content}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ve, _ := newTestEngine(t, map[string]string{
				"layout.html": tt.layout,
				"body.html":   `x`,
			})
			_, err := ve.RenderString("body", nil)
			if !errors.Is(err, ErrContentMarker) {
				t.Fatalf("expected ErrContentMarker, got %v", err)
			}
		})
	}

	ve, _ := newTestEngine(t, map[string]string{"body.html": `a{{{content}}}`})
	if _, err := ve.RenderString("body", nil); !errors.Is(err, ErrContentMarker) {
		t.Fatalf("content marker in a page should fail, got %v", err)
	}
}

func TestRenderLayoutDirectly(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"layout.html": `<title>{{titulo}}</title>{{{content}}}`,
	})
	if got := render(t, ve, "layout", map[string]interface{}{"titulo": "T"}); got != "<title>T</title>" {
		t.Fatalf("got %q", got)
	}
}

func TestTemplateNotFound(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{})
	_, err := ve.RenderString("nope", nil)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Name != "nope" {
		t.Fatalf("expected NotFoundError for nope, got %#v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected the fs error to be wrapped, got %v", err)
	}

	if _, err := ve.RenderString("../etc/passwd", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("escaping names must not resolve, got %v", err)
	}
}

func TestParseErrorSurfaces(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"broken.html": "<ul>\n{{#each items}}<li>{{nombre}}</li>\n</ul>",
	})
	var sb strings.Builder
	err := ve.Render(&sb, "broken", nil)
	var perr *parse.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if perr.Line != 3 {
		t.Fatalf("expected error at line 3, got %d", perr.Line)
	}
	if sb.Len() != 0 {
		t.Fatalf("nothing should be written on error, got %q", sb.String())
	}
	if len(ve.CachedTemplates()) != 0 {
		t.Fatalf("broken template must not be cached")
	}
}

func TestCachingReadsSourceOnce(t *testing.T) {
	ve, cfs := newTestEngine(t, map[string]string{
		"layout.html": `<html>{{{content}}}</html>`,
		"page.html":   `<p>{{titulo}}</p>`,
	})
	data := map[string]interface{}{"titulo": "Shop"}
	first := render(t, ve, "page", data)
	second := render(t, ve, "page", data)
	if first != second {
		t.Fatalf("renders differ: %q vs %q", first, second)
	}
	if n := cfs.count("page.html"); n != 1 {
		t.Fatalf("page.html read %d times, want 1", n)
	}
	if n := cfs.count("layout.html"); n != 1 {
		t.Fatalf("layout.html read %d times, want 1", n)
	}

	// the cached text wins even when the source changes
	cfs.fs["page.html"] = &fstest.MapFile{Data: []byte(`changed`)}
	if got := render(t, ve, "page", data); got != first {
		t.Fatalf("expected cached output, got %q", got)
	}

	ve.ClearCache()
	if got := render(t, ve, "page", data); got != "<html>changed</html>" {
		t.Fatalf("expected reload after ClearCache, got %q", got)
	}
	if n := cfs.count("page.html"); n != 2 {
		t.Fatalf("page.html read %d times after clear, want 2", n)
	}
}

func TestClearCacheFor(t *testing.T) {
	ve, cfs := newTestEngine(t, map[string]string{
		"a.html": `a`,
		"b.html": `b`,
	})
	render(t, ve, "a", nil)
	render(t, ve, "b", nil)
	ve.ClearCacheFor("a.html")
	if got := ve.CachedTemplates(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected cached templates %v", got)
	}
	render(t, ve, "a", nil)
	if cfs.count("a.html") != 2 || cfs.count("b.html") != 1 {
		t.Fatalf("unexpected reads a=%d b=%d", cfs.count("a.html"), cfs.count("b.html"))
	}
}

func TestConcurrentRender(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"page.html": `{{#each xs}}{{this}}{{/each}}`,
	})
	data := map[string]interface{}{"xs": []int{1, 2, 3}}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := ve.RenderString("page", data)
			if err != nil {
				errs <- err
				return
			}
			if out != "123" {
				errs <- errors.New("unexpected output " + out)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if len(ve.CachedTemplates()) != 1 {
		t.Fatalf("expected one cached template")
	}
}

type producto struct {
	ID     int     `json:"id"`
	Nombre string  `json:"nombre"`
	Precio float64 `json:"precio"`
}

func TestEndToEndProductos(t *testing.T) {
	files := map[string]string{
		"productos.html": `<h1>{{titulo}}</h1>{{#each productos}}<li>{{nombre}} ${{precio}}</li>{{/each}}`,
	}
	ve, _ := newTestEngine(t, files)
	data := map[string]interface{}{
		"productos": []map[string]interface{}{{"nombre": "Mouse", "precio": 50}},
		"titulo":    "Shop",
	}
	want := `<h1>Shop</h1><li>Mouse $50</li>`
	if got := render(t, ve, "productos", data); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// structs resolve through json tags
	structData := map[string]interface{}{
		"productos": []producto{{ID: 2, Nombre: "Mouse", Precio: 50}},
		"titulo":    "Shop",
	}
	if got := render(t, ve, "productos", structData); got != want {
		t.Fatalf("struct data: got %q, want %q", got, want)
	}

	files["layout.html"] = `<html>{{{content}}}</html>`
	ve, _ = newTestEngine(t, files)
	if got := render(t, ve, "productos", data); got != "<html>"+want+"</html>" {
		t.Fatalf("with layout: got %q", got)
	}
}

func TestPreloadAndStats(t *testing.T) {
	ve, cfs := newTestEngine(t, map[string]string{
		"layout.html":        `<html>{{{content}}}</html>`,
		"home.html":          `home`,
		"partials/item.html": `item`,
		"notes.txt":          `ignored`,
	})
	if err := ve.PreloadTemplates(); err != nil {
		t.Fatalf("preload: %v", err)
	}
	keys := ve.CachedTemplates()
	want := []string{"home", "layout", "partials/item"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("cached %v, want %v", keys, want)
	}
	render(t, ve, "home", nil)
	if cfs.count("home.html") != 1 {
		t.Fatalf("preloaded template read again")
	}
	stats := ve.CacheStats()
	if stats["total_items"] != 3 {
		t.Fatalf("unexpected stats %v", stats)
	}
	if stats["hits"].(int64) < 2 {
		t.Fatalf("expected hits to be counted, got %v", stats["hits"])
	}
	if _, ok := stats["source_size"].(string); !ok {
		t.Fatalf("expected human readable size, got %v", stats["source_size"])
	}
}

func TestPreloadReportsBrokenTemplates(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"ok.html":  `fine`,
		"bad.html": `{{#if x}}`,
	})
	err := ve.PreloadTemplates()
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected preload error naming bad, got %v", err)
	}
	if got := ve.CachedTemplates(); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("expected only ok cached, got %v", got)
	}
}

func TestValidateAllTemplates(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"layout.html": `<html>{{{content}}}</html>`,
		"home.html":   `{{#each xs}}{{/each}}`,
	})
	if err := ve.ValidateAllTemplates(); err != nil {
		t.Fatalf("expected valid templates, got %v", err)
	}
	if len(ve.CachedTemplates()) != 0 {
		t.Fatalf("validation must not fill the cache")
	}

	ve, _ = newTestEngine(t, map[string]string{
		"layout.html": `<html></html>`,
		"home.html":   `{{#each xs}}`,
		"page.html":   `{{{content}}}`,
	})
	err := ve.ValidateAllTemplates()
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, name := range []string{"layout", "home", "page"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("validation error should mention %s: %v", name, err)
		}
	}
}

func TestDebugTemplate(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{
		"home.html": `{{#if a}}{{b}}{{/if}}`,
	})
	dump, err := ve.DebugTemplate("home")
	if err != nil {
		t.Fatalf("debug: %v", err)
	}
	if !strings.Contains(dump, "If a") || !strings.Contains(dump, "Var b") {
		t.Fatalf("unexpected dump %q", dump)
	}
}

func TestLoadSource(t *testing.T) {
	ve, _ := newTestEngine(t, map[string]string{"a.html": `{{x}}`})
	src, err := ve.Load("a")
	if err != nil || src != "{{x}}" {
		t.Fatalf("Load = %q, %v", src, err)
	}
}
