// Package catalog stores the storefront products in SQLite and answers the
// filtered, sorted and paginated queries the pages and the JSON API make.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultLimit = 10

	SortPriceAsc  = "precio_asc"
	SortPriceDesc = "precio_desc"
)

// ErrNotFound is returned by Get for unknown product ids.
var ErrNotFound = errors.New("producto no encontrado")

// Product is one catalog entry. The json names are the ones templates and
// API clients address.
type Product struct {
	ID        int64   `json:"id"`
	Nombre    string  `json:"nombre"`
	Precio    float64 `json:"precio"`
	Categoria string  `json:"categoria"`
	Imagen    string  `json:"imagen"`
}

// Filter narrows a List call. Nil price bounds and an empty category match
// everything; Pagina and Limite below 1 fall back to 1 and DefaultLimit.
type Filter struct {
	Categoria string
	MinPrecio *float64
	MaxPrecio *float64
	Ordenar   string
	Pagina    int
	Limite    int
}

// Page is one page of a List result.
type Page struct {
	Total     int       `json:"total"`
	Pagina    int       `json:"pagina"`
	Limite    int       `json:"limite"`
	Productos []Product `json:"productos"`
}

// Catalog is the product store.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Seed is the product list a new catalog starts with.
var Seed = []Product{
	{ID: 1, Nombre: "Laptop Gaming", Precio: 1200, Categoria: "Electrónica", Imagen: "producto-1.jpg"},
	{ID: 2, Nombre: "Mouse Inalámbrico", Precio: 50, Categoria: "Accesorios", Imagen: "producto-2.jpg"},
	{ID: 3, Nombre: "Teclado Mecánico", Precio: 150, Categoria: "Accesorios", Imagen: "producto-3.jpg"},
	{ID: 4, Nombre: `Monitor 27"`, Precio: 300, Categoria: "Electrónica", Imagen: "producto-4.jpg"},
}

func setupSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS productos (
		id INTEGER PRIMARY KEY,
		nombre TEXT NOT NULL,
		precio REAL NOT NULL CHECK(precio >= 0),
		categoria TEXT NOT NULL,
		imagen TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_productos_categoria ON productos(categoria);
	`
	_, err := db.Exec(schema)
	return err
}

// Open opens (creating if needed) the database at dataSource and sets up
// the schema. When seed is true an empty catalog is filled with Seed.
func Open(dataSource string, seed bool, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if file := dbFile(dataSource); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := initDB(dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer; an in-memory database also only
	// exists on the connection that created it
	db.SetMaxOpenConns(1)

	c, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if seed {
		if err := c.SeedIfEmpty(context.Background(), Seed); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return c, nil
}

// New wraps an open database, creating the schema when it is missing.
func New(db *sql.DB, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := setupSchema(db); err != nil {
		return nil, fmt.Errorf("failed to setup catalog schema: %w", err)
	}
	return &Catalog{db: db, logger: logger}, nil
}

// dbFile returns the file behind a data source, "" for in-memory databases.
func dbFile(dataSource string) string {
	file := strings.TrimPrefix(dataSource, "file:")
	file, _, _ = strings.Cut(file, "?")
	if file == "" || file == ":memory:" {
		return ""
	}
	return file
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// SeedIfEmpty inserts products when the table has no rows.
func (c *Catalog) SeedIfEmpty(ctx context.Context, products []Product) error {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM productos").Scan(&n); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO productos (id, nombre, precio, categoria, imagen) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmt)
	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Nombre, p.Precio, p.Categoria, p.Imagen); err != nil {
			return fmt.Errorf("failed to seed product %d: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.logger.Info("catalog seeded", "products", len(products))
	return nil
}

// Get returns the product with the given id or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := c.db.QueryRowContext(ctx,
		"SELECT id, nombre, precio, categoria, imagen FROM productos WHERE id = ?", id,
	).Scan(&p.ID, &p.Nombre, &p.Precio, &p.Categoria, &p.Imagen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// List returns the page of products matching f. Total counts every match,
// not only the returned page.
func (c *Catalog) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Pagina < 1 {
		f.Pagina = 1
	}
	if f.Limite < 1 {
		f.Limite = DefaultLimit
	}

	var where []string
	var args []interface{}
	if f.Categoria != "" {
		where = append(where, "categoria = ?")
		args = append(args, f.Categoria)
	}
	if f.MinPrecio != nil {
		where = append(where, "precio >= ?")
		args = append(args, *f.MinPrecio)
	}
	if f.MaxPrecio != nil {
		where = append(where, "precio <= ?")
		args = append(args, *f.MaxPrecio)
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	page := &Page{Pagina: f.Pagina, Limite: f.Limite, Productos: []Product{}}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM productos"+cond, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	order := " ORDER BY id"
	switch f.Ordenar {
	case SortPriceAsc:
		order = " ORDER BY precio ASC, id"
	case SortPriceDesc:
		order = " ORDER BY precio DESC, id"
	}
	query := "SELECT id, nombre, precio, categoria, imagen FROM productos" + cond + order + " LIMIT ? OFFSET ?"
	args = append(args, f.Limite, (f.Pagina-1)*f.Limite)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var p Product
		if err = rows.Scan(&p.ID, &p.Nombre, &p.Precio, &p.Categoria, &p.Imagen); err != nil {
			return nil, err
		}
		page.Productos = append(page.Productos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.logger.Debug("products listed", "total", page.Total, "returned", len(page.Productos))
	return page, nil
}

// Featured returns the first n products by id.
func (c *Catalog) Featured(ctx context.Context, n int) ([]Product, error) {
	page, err := c.List(ctx, Filter{Limite: n})
	if err != nil {
		return nil, err
	}
	return page.Productos, nil
}

// Categories returns the distinct product categories, sorted.
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT categoria FROM productos ORDER BY categoria")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []string
	for rows.Next() {
		var cat string
		if err = rows.Scan(&cat); err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, rows.Err()
}
