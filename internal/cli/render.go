package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"storefront/engine"
)

func newRenderCmd(o *rootOptions) *cobra.Command {
	var (
		dataPath string
		layout   string
		noLayout bool
	)
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template to stdout",
		Long: `Render a template with a JSON data context and print the result.

Objects in the data file keep their key order in {{#each}} loops.

Examples:
  storefront render productos --data productos.json
  echo '{"titulo": "Hola"}' | storefront render acerca --data -
  storefront render home --no-layout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(cmd, dataPath)
			if err != nil {
				return err
			}
			ve, err := o.newEngine(false)
			if err != nil {
				return err
			}
			defer ve.Close()

			if !cmd.Flags().Changed("layout") {
				layout = ve.LayoutName()
			}
			if noLayout {
				layout = ""
			}
			return ve.RenderWithLayout(cmd.OutOrStdout(), args[0], data, layout)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", `JSON file with the data context ("-" reads stdin)`)
	cmd.Flags().StringVar(&layout, "layout", "", "Layout template; defaults to the configured layout")
	cmd.Flags().BoolVar(&noLayout, "no-layout", false, "Render without a layout")
	return cmd
}

func readData(cmd *cobra.Command, path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open data file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return engine.DecodeJSON(r)
}
