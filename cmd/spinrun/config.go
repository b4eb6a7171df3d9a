package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubert/spinrun/logger"
	"github.com/zhubert/spinrun/paths"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or change properties",
		GroupID: GroupConfig,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print every property",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				out := cmd.OutOrStdout()
				for _, key := range a.props.Keys() {
					fmt.Fprintf(out, "%s = %s\n", key, a.props.String(key))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print where properties and logs are kept",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				layout := "xdg"
				if paths.IsFlatLayout() {
					layout = "flat"
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "properties: %s\n", a.props.FilePath())
				fmt.Fprintf(out, "log: %s\n", logger.Path())
				fmt.Fprintf(out, "layout: %s\n", layout)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set a property and save the property file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				key := strings.ToUpper(args[0])
				if !a.props.Known(key) {
					return fmt.Errorf("unknown property %q", key)
				}
				a.props.Set(key, args[1])
				if err := a.props.Save(); err != nil {
					return fmt.Errorf("failed to save properties: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", key, args[1], a.props.FilePath())
				return nil
			},
		},
	)
	return cmd
}
