package cli

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := app.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = app.out.Write(b)
			return err
		},
	}
}
