package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/spinrun/cli"
	"github.com/zhubert/spinrun/logger"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Short:   "Check that Spin and the C compiler are installed",
		GroupID: GroupConfig,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prereqs := cli.DefaultPrerequisites(a.props)
			results := cli.CheckAll(cmd.Context(), prereqs)

			out := cmd.OutOrStdout()
			fmt.Fprint(out, cli.FormatCheckResults(results))
			fmt.Fprintf(out, "\nProperties: %s\n", a.props.FilePath())
			if path := logger.Path(); path != "" {
				fmt.Fprintf(out, "Log file:   %s\n", path)
			}
			return cli.MissingRequired(results)
		},
	}
}
