package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Parse every template and report errors",
		Long: `Parse every template and check the layout rules: the layout needs exactly
one {{{content}}} marker and no other template may contain one.
All problems are reported at once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ve, err := o.newEngine(false)
			if err != nil {
				return err
			}
			defer ve.Close()

			names, err := ve.Templates()
			if err != nil {
				return err
			}
			if err := ve.ValidateAllTemplates(); err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d templates valid\n", len(names))
			return nil
		},
	}
}

func newInspectCmd(o *rootOptions) *cobra.Command {
	var source bool
	cmd := &cobra.Command{
		Use:   "inspect <template>",
		Short: "Print the parsed block tree of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ve, err := o.newEngine(false)
			if err != nil {
				return err
			}
			defer ve.Close()

			var out string
			if source {
				out, err = ve.Load(args[0])
			} else {
				out, err = ve.DebugTemplate(args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&source, "source", false, "Print the raw template source instead")
	return cmd
}
