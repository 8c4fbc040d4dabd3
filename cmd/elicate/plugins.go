package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List, enable and disable plugins",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available plugins and their pipeline position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			for _, p := range a.PluginInfos() {
				pos := "-"
				if p.Position > 0 {
					pos = fmt.Sprint(p.Position)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-3s %-20s %-12s %s v%s\n", pos, p.ID, p.State, p.Name, p.Version)
			}
			return nil
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable <id>",
		Short: "Enable a plugin and append it to the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return a.EnablePlugin(cmd.Context(), args[0])
		},
	}

	disableCmd := &cobra.Command{
		Use:   "disable <id>",
		Short: "Disable a plugin; its overrides are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()
			return a.DisablePlugin(args[0])
		},
	}

	cmd.AddCommand(listCmd, enableCmd, disableCmd)
	return cmd
}
