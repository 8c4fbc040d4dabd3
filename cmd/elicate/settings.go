package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"elicate/internal/options"
	"elicate/internal/settings"
	"elicate/pkg/chattypes"
)

func newSettingsCmd() *cobra.Command {
	var quick, hidden bool
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the settings screen or the quick-settings panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			r := settings.NewRenderer(cmd.OutOrStdout())
			if quick {
				items, err := settings.QuickSettings(a.Registry, a.Facade)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), r.RenderQuick(items))
				return nil
			}

			filter := options.Filter{}
			if hidden {
				filter.DisplayTarget = chattypes.DisplayHidden
			}
			form, err := settings.BuildForm(a.Registry, a.Facade, filter)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), r.RenderForm(form))
			return nil
		},
	}
	cmd.Flags().BoolVar(&quick, "quick", false, "Show the quick-settings panel")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Show hidden options only")
	return cmd
}
