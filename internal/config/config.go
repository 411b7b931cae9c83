// Package config loads the storefront configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// DefaultPath is the configuration file used when no --config flag is given.
const DefaultPath = "./storefront.json"

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr      string `json:"addr"`
	LogLevel  string `json:"log_level"`
	PublicDir string `json:"public_dir"`
	// Development shows error details, enables template hot reload and the
	// /dev endpoints.
	Development     bool `json:"development"`
	ShutdownTimeout int  `json:"shutdown_timeout_sec"`
}

// ViewsConfig holds the template engine settings.
type ViewsConfig struct {
	Dir        string `json:"dir"`
	Extension  string `json:"extension"`
	LayoutName string `json:"layout_name"`
	Preload    bool   `json:"preload"`
}

// CatalogConfig holds the product database settings.
type CatalogConfig struct {
	DatabasePath string `json:"database_path"`
	Seed         bool   `json:"seed"`
}

// Config is the top-level configuration.
type Config struct {
	Server  *ServerConfig  `json:"server_config"`
	Views   *ViewsConfig   `json:"views_config"`
	Catalog *CatalogConfig `json:"catalog_config"`
}

// Default returns a configuration with every field set.
func Default() *Config {
	return &Config{
		Server: &ServerConfig{
			Addr:            ":3000",
			LogLevel:        "info",
			PublicDir:       "./public",
			Development:     false,
			ShutdownTimeout: 10,
		},
		Views: &ViewsConfig{
			Dir:        "./views",
			Extension:  ".html",
			LayoutName: "layout",
			Preload:    true,
		},
		Catalog: &CatalogConfig{
			DatabasePath: "./data/storefront.db",
			Seed:         true,
		},
	}
}

// Load reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it is created with default values. Sections
// missing from the file keep their defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config := Default()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "." {
				_ = os.MkdirAll(dir, 0o755)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// the server still runs with defaults
				logger.Warn("failed to write default config file", "path", path, "error", err)
			} else {
				logger.Info("wrote default config file", "path", path)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.fillDefaults()
	return config, nil
}

// fillDefaults restores sections that a config file set to null.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Server == nil {
		c.Server = d.Server
	}
	if c.Views == nil {
		c.Views = d.Views
	}
	if c.Catalog == nil {
		c.Catalog = d.Catalog
	}
}

// ParseLevel maps a config log level to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns the text logger used across the storefront, writing
// to w at the given config level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
