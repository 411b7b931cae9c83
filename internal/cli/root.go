// Package cli implements the storefront command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storefront/engine"
	"storefront/internal/config"
	"storefront/views"
)

// Version is set at build time.
var Version = "dev"

// rootOptions carries the persistent flags and the state they produce.
type rootOptions struct {
	configPath string
	logLevel   string
	viewsDir   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Server-rendered storefront",
		Long: `storefront serves a small product catalog as HTML pages and a JSON API.

Pages are rendered by a template engine supporting {{path}} placeholders,
{{#if}}/{{else}} and {{#each}} blocks and a layout with a {{{content}}} marker.
The render, check and inspect commands work on templates without starting
the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", config.DefaultPath, "Path to the JSON config file")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	cmd.PersistentFlags().StringVar(&o.viewsDir, "views", "", "Templates directory; overrides the config")

	cmd.AddCommand(newServeCmd(o))
	cmd.AddCommand(newRenderCmd(o))
	cmd.AddCommand(newCheckCmd(o))
	cmd.AddCommand(newInspectCmd(o))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	level := o.logLevel
	bootstrap := config.NewLogger(cmd.ErrOrStderr(), level)
	cfg, err := config.Load(o.configPath, bootstrap)
	if err != nil {
		return err
	}
	if o.viewsDir != "" {
		cfg.Views.Dir = o.viewsDir
	}
	if level == "" {
		level = cfg.Server.LogLevel
	}
	o.cfg = cfg
	o.logger = config.NewLogger(cmd.ErrOrStderr(), level)
	return nil
}

// newEngine builds the view engine over the configured directory, falling
// back to the embedded templates.
func (o *rootOptions) newEngine(development bool) (*engine.ViewEngine, error) {
	return engine.NewViewEngineWithConfig(engine.ViewConfig{
		ViewsDir:    o.cfg.Views.Dir,
		Extension:   o.cfg.Views.Extension,
		LayoutName:  o.cfg.Views.LayoutName,
		EmbeddedFS:  views.FS,
		Development: development,
		Logger:      o.logger,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// skip config loading
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "storefront version %s\n", Version)
		},
	}
}
