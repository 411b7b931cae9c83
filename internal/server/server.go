// Package server is the storefront HTTP frontend: HTML pages rendered with
// the view engine and a JSON API over the product catalog.
package server

import (
	"context"
	"errors"
	"html"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"storefront/engine"
	"storefront/internal/catalog"
)

const (
	requestIDKey = "requestid"
	accessFormat = "[${time}] ${method} ${path} ${status} ${latency} ${locals:requestid}\n"

	msgServerError = "Ha ocurrido un error interno. Por favor, inténtalo de nuevo más tarde."
)

// Options configures a Server.
type Options struct {
	Views   *engine.ViewEngine
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	// Development exposes error details on the error page and mounts the
	// /dev cache endpoints.
	Development bool
	// PublicDir is served under /public when set.
	PublicDir string
	// AccessLog receives one line per request, os.Stdout when nil.
	AccessLog io.Writer
	// Now is the clock used for page dates, time.Now when nil.
	Now func() time.Time
}

// Server wires the view engine and the catalog into a Fiber app.
type Server struct {
	app     *fiber.App
	views   *engine.FiberViewsAdapter
	catalog *catalog.Catalog
	logger  *slog.Logger
	dev     bool
	now     func() time.Time
}

// New builds the app and registers every route.
func New(opts Options) *Server {
	s := &Server{
		views:   &engine.FiberViewsAdapter{Engine: opts.Views},
		catalog: opts.Catalog,
		logger:  opts.Logger,
		dev:     opts.Development,
		now:     opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "storefront",
		Views:                 s.views,
		ErrorHandler:          s.handleError,
		DisableStartupMessage: true,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	s.app.Use(logger.New(logger.Config{
		Format:     accessFormat,
		TimeFormat: time.RFC3339,
		Output:     accessLog,
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",
		AllowHeaders: "Content-Type",
	}))

	if opts.PublicDir != "" {
		s.app.Static("/public", opts.PublicDir)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.handleHome)
	s.app.Get("/productos", s.handleProductos)
	s.app.Get("/productos/:id", s.handleProducto)
	s.app.Get("/acerca", s.handleAcerca)

	api := s.app.Group("/api")
	api.Get("/productos", s.handleAPIProductos)
	api.Get("/productos/:id", s.handleAPIProducto)

	if s.dev {
		dev := s.app.Group("/dev")
		dev.Get("/cache-stats", s.handleCacheStats)
		dev.Post("/clear-cache", s.handleClearCache)
	}

	s.app.Use(s.handleNotFound)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve serves on a bound listener until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting storefront server", "address", ln.Addr().String(), "development", s.dev)
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// render writes view name with the given status, adding the request view
// to data.
func (s *Server) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	c.Status(status)
	return s.views.RenderWithCtx(c, name, data)
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	if isAPI(c) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Ruta no encontrada"})
	}
	return s.render(c, fiber.StatusNotFound, "404", fiber.Map{
		"titulo":  "Página no encontrada",
		"mensaje": "La ruta " + html.EscapeString(c.Path()) + " no existe en este servidor.",
	})
}

// handleError is the Fiber ErrorHandler: API routes answer JSON, pages get
// the error view. Error details are only shown in development.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code == fiber.StatusNotFound {
		return s.handleNotFound(c)
	}

	s.logger.Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"status", code,
		"request_id", c.Locals(requestIDKey),
		"error", err)

	if isAPI(c) {
		msg := "Error del servidor"
		if fe != nil {
			msg = fe.Message
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}

	detail := ""
	if s.dev {
		detail = html.EscapeString(err.Error())
	}
	rerr := s.render(c, code, "error", fiber.Map{
		"titulo":  "Error del servidor",
		"mensaje": msgServerError,
		"error":   detail,
	})
	if rerr != nil {
		s.logger.Error("error page failed", "error", rerr)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(code).SendString(msgServerError)
	}
	return nil
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}
