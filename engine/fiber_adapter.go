package engine

import (
	"io"

	"github.com/gofiber/fiber/v2"
)

// RequestKey is the data-context key under which WithFiberContext exposes
// the current request.
const RequestKey = "request"

// FiberViewsAdapter implements fiber.Views by delegating to ViewEngine
type FiberViewsAdapter struct {
	Engine *ViewEngine
}

// Render implements fiber.Views. The first layout argument, when given,
// replaces the engine's default layout ("" renders without one).
func (v *FiberViewsAdapter) Render(w io.Writer, name string, data interface{}, layout ...string) error {
	if len(layout) > 0 {
		return v.Engine.RenderWithLayout(w, name, data, layout[0])
	}
	return v.Engine.Render(w, name, data)
}

// Load implements fiber.Views by preloading every template.
func (v *FiberViewsAdapter) Load() error {
	return v.Engine.PreloadTemplates()
}

// RequestView is the read-only view of a request templates may address,
// e.g. {{request.path}} or {{#each request.query}}.
type RequestView struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
	Params map[string]string `json:"params"`
}

// NewRequestView snapshots the parts of c that templates may read.
func NewRequestView(c *fiber.Ctx) *RequestView {
	if c == nil {
		return nil
	}
	params := make(map[string]string)
	for _, name := range c.Route().Params {
		params[name] = c.Params(name)
	}
	return &RequestView{
		Method: c.Method(),
		Path:   c.Path(),
		Query:  c.Queries(),
		Params: params,
	}
}

// WithFiberContext returns a copy of data with the request view added
// under RequestKey. Non-map data is kept under "data".
func WithFiberContext(c *fiber.Ctx, data interface{}) map[string]interface{} {
	req := NewRequestView(c)
	switch m := data.(type) {
	case nil:
		return map[string]interface{}{RequestKey: req}
	case fiber.Map:
		return withRequest(m, req)
	case map[string]interface{}:
		return withRequest(m, req)
	}
	return map[string]interface{}{RequestKey: req, "data": data}
}

func withRequest(m map[string]interface{}, req *RequestView) map[string]interface{} {
	nm := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		nm[k] = v
	}
	nm[RequestKey] = req
	return nm
}

// RenderWithCtx injects the request view and writes the rendered page as
// the HTML response body.
func (v *FiberViewsAdapter) RenderWithCtx(c *fiber.Ctx, name string, data interface{}, layout ...string) error {
	enriched := WithFiberContext(c, data)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return v.Render(c.Response().BodyWriter(), name, enriched, layout...)
}
