package server

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/catalog"
)

const (
	featuredCount = 3
	listPageSize  = 100

	msgProductNotFound = "Producto no encontrado"
)

func (s *Server) handleHome(c *fiber.Ctx) error {
	productos, err := s.catalog.Featured(c.UserContext(), featuredCount)
	if err != nil {
		return err
	}
	return s.render(c, fiber.StatusOK, "home", fiber.Map{
		"titulo":    "Bienvenido a Mi Tienda",
		"productos": productos,
		"fecha":     formatFecha(s.now()),
	})
}

func (s *Server) handleProductos(c *fiber.Ctx) error {
	f := catalog.Filter{
		Categoria: c.Query("categoria"),
		MaxPrecio: optionalFloat(c.Query("maxPrecio")),
		Limite:    listPageSize,
	}
	page, err := s.catalog.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	categorias, err := s.catalog.Categories(c.UserContext())
	if err != nil {
		return err
	}

	// query values are echoed into the page
	filtros := make(map[string]string)
	for k, v := range c.Queries() {
		filtros[k] = html.EscapeString(v)
	}
	return s.render(c, fiber.StatusOK, "productos", fiber.Map{
		"titulo":     "Nuestros Productos",
		"productos":  page.Productos,
		"total":      page.Total,
		"filtros":    filtros,
		"categorias": categorias,
	})
}

func (s *Server) handleProducto(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	var p *catalog.Product
	if err == nil {
		p, err = s.catalog.Get(c.UserContext(), id)
	}
	if err != nil {
		var numErr *strconv.NumError
		if !errors.Is(err, catalog.ErrNotFound) && !errors.As(err, &numErr) {
			return err
		}
		return s.render(c, fiber.StatusNotFound, "404", fiber.Map{
			"titulo":  msgProductNotFound,
			"mensaje": fmt.Sprintf("El producto con ID %s no existe.", html.EscapeString(c.Params("id"))),
		})
	}
	return s.render(c, fiber.StatusOK, "producto-detalle", fiber.Map{
		"titulo":   p.Nombre,
		"producto": p,
	})
}

func (s *Server) handleAcerca(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "acerca", fiber.Map{
		"titulo":      "Acerca de Nosotros",
		"empresa":     "Mi Tienda Online",
		"descripcion": "Somos una tienda especializada en productos tecnológicos.",
		"fundacion":   2020,
	})
}

func (s *Server) handleCacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"stats":     s.views.Engine.CacheStats(),
		"templates": s.views.Engine.CachedTemplates(),
	})
}

func (s *Server) handleClearCache(c *fiber.Ctx) error {
	s.views.Engine.ClearCache()
	s.logger.Info("template cache cleared", "request_id", c.Locals(requestIDKey))
	return c.JSON(fiber.Map{"cleared": true})
}

// formatFecha writes t as a short es-ES date, e.g. 18/10/2026.
func formatFecha(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
