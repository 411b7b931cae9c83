package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/catalog"
	"storefront/internal/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		addr      string
		dev       bool
		publicDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront HTTP server",
		Long: `Start the storefront HTTP server.

Examples:
  storefront serve
  storefront serve --addr :8080 --dev
  storefront serve --views ./views --public ./public`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				o.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("dev") {
				o.cfg.Server.Development = dev
			}
			if cmd.Flags().Changed("public") {
				o.cfg.Server.PublicDir = publicDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", o.cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", o.cfg.Server.Addr, err)
			}
			return runServe(ctx, o, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides the config")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development mode: template hot reload, error details, /dev endpoints")
	cmd.Flags().StringVar(&publicDir, "public", "", "Directory served under /public; overrides the config")
	return cmd
}

// runServe serves on ln until ctx is done, then shuts down gracefully.
func runServe(ctx context.Context, o *rootOptions, ln net.Listener) error {
	cfg := o.cfg
	logger := o.logger

	cat, err := catalog.Open(cfg.Catalog.DatabasePath, cfg.Catalog.Seed, logger)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logger.Error("failed to close catalog", "error", err)
		}
	}()

	ve, err := o.newEngine(cfg.Server.Development)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		_ = ve.Close()
	}()
	if cfg.Views.Preload {
		if err := ve.PreloadTemplates(); err != nil {
			logger.Warn("template preload failed", "error", err)
		}
	}

	srv := server.New(server.Options{
		Views:       ve,
		Catalog:     cat,
		Logger:      logger,
		Development: cfg.Server.Development,
		PublicDir:   cfg.Server.PublicDir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
