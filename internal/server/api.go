package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/catalog"
)

func (s *Server) handleAPIProductos(c *fiber.Ctx) error {
	f := catalog.Filter{
		Categoria: c.Query("categoria"),
		Ordenar:   c.Query("ordenar"),
		Pagina:    c.QueryInt("pagina", 1),
		Limite:    c.QueryInt("limite", catalog.DefaultLimit),
	}
	var err error
	if f.MinPrecio, err = parsePrice(c.Query("minPrecio")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "minPrecio inválido")
	}
	if f.MaxPrecio, err = parsePrice(c.Query("maxPrecio")); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "maxPrecio inválido")
	}

	page, err := s.catalog.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (s *Server) handleAPIProducto(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgProductNotFound})
	}
	p, err := s.catalog.Get(c.UserContext(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msgProductNotFound})
	}
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// parsePrice reads an optional price query value; "" means no bound.
func parsePrice(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// optionalFloat is parsePrice for pages, where a bad value is ignored.
func optionalFloat(raw string) *float64 {
	f, err := parsePrice(raw)
	if err != nil {
		return nil
	}
	return f
}
