package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"elicate/internal/options"
	"elicate/internal/settings"
	"elicate/pkg/chattypes"
)

func splitKey(key string) (string, string, error) {
	group, option, ok := strings.Cut(key, ".")
	if !ok || group == "" || option == "" {
		return "", "", fmt.Errorf("option key must look like group.option, got %q", key)
	}
	return group, option, nil
}

func newOptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Inspect and change option values",
	}

	var group, target string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List options with their effective values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			filter := options.Filter{GroupID: group, DisplayTarget: chattypes.DisplayTarget(target)}
			out := cmd.OutOrStdout()
			for d := range a.Registry.ListOptions(filter) {
				resolved, err := a.Facade.Get(d.GroupID, d.OptionID)
				if err != nil {
					return err
				}
				value := settings.FormatValue(resolved.Value)
				if d.RenderProps.Type == chattypes.ControlPassword {
					value = settings.MaskSecret(value)
				}
				fmt.Fprintf(out, "%-40s %-8s %-7s %s\n", d.Key(), resolved.Source, d.Scope, value)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&group, "group", "", "Only list one group")
	listCmd.Flags().StringVar(&target, "target", "", "Only list one display target (settings-screen|quick-settings|hidden)")

	getCmd := &cobra.Command{
		Use:   "get <group.option>",
		Short: "Print the effective value of an option",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, o, err := splitKey(args[0])
			if err != nil {
				return err
			}
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			resolved, err := a.Facade.Get(g, o)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", settings.FormatValue(resolved.Value), resolved.Source)
			return nil
		},
	}

	var layerName string
	setCmd := &cobra.Command{
		Use:   "set <group.option> <value>",
		Short: "Override an option",
		Long: `Override an option at the narrowest layer its scope allows, or at the
layer given with --layer. Chat overrides need --chat.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, o, err := splitKey(args[0])
			if err != nil {
				return err
			}
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			d, ok := a.Registry.Lookup(g, o)
			if !ok {
				return &chattypes.OptionNotFoundError{Key: args[0]}
			}
			value, err := settings.ParseInput(d, args[1])
			if err != nil {
				return err
			}
			if layerName == "" {
				return a.Facade.Set(g, o, value)
			}
			layer, err := chattypes.ParseLayer(layerName)
			if err != nil {
				return err
			}
			return a.Store.SetOverride(g, o, value, layer, chatID)
		},
	}
	setCmd.Flags().StringVar(&layerName, "layer", "", "Layer to write (user|chat)")

	resetCmd := &cobra.Command{
		Use:   "reset <group.option>",
		Short: "Remove an override and show what changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, o, err := splitKey(args[0])
			if err != nil {
				return err
			}
			a, done, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			form, err := settings.BuildForm(a.Registry, a.Facade, options.Filter{GroupID: g})
			if err != nil {
				return err
			}
			var layer chattypes.Layer
			if layerName != "" {
				if layer, err = chattypes.ParseLayer(layerName); err != nil {
					return err
				}
			}

			if f, ok := form.Field(args[0]); ok && f.Overridden() {
				var after chattypes.ResolvedOption
				if layerName == "" {
					after, err = a.Facade.ResolveAfterReset(g, o)
				} else {
					after, err = a.Store.ResolveWithout(g, o, chatID, layer)
				}
				if err != nil {
					return err
				}
				r := settings.NewRenderer(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), r.ResetPreview(f, after))
			}

			if layerName == "" {
				return a.Facade.Reset(g, o)
			}
			return a.Store.ClearOverride(g, o, layer, chatID)
		},
	}
	resetCmd.Flags().StringVar(&layerName, "layer", "", "Layer to clear (user|chat)")

	cmd.AddCommand(listCmd, getCmd, setCmd, resetCmd)
	return cmd
}
