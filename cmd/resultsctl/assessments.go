package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAssessmentsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "assessments",
		Short: "List available assessments",
		Long:  "List the built-in assessments and any loaded from --assessments-dir.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog(cmd)
			if err != nil {
				return err
			}
			defs := catalog.List()

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), defs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tPOLARITY\tTABS")
			for _, def := range defs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", def.ID, def.Title, def.Polarity, len(def.Tabs()))
			}
			return tw.Flush()
		},
	}
}
