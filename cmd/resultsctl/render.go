package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/render"
	"github.com/assessment-results-server/internal/service"
)

func newRenderCmd(opts *options) *cobra.Command {
	var assessmentID string
	var color bool

	cmd := &cobra.Command{
		Use:   "render REPORT",
		Short: "Render a report as a results dashboard",
		Long: `Render an overall report document as a terminal dashboard.

REPORT is a path to a JSON report, or - to read it from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			catalog, err := opts.catalog(cmd)
			if err != nil {
				return err
			}
			def, ok := catalog.Get(assessmentID)
			if !ok {
				return domain.UnknownAssessment(assessmentID)
			}

			report, err := service.ParseReport(payload, def)
			if err != nil {
				return err
			}
			dashboard := service.NewDashboardBuilder(opts.logger(cmd.ErrOrStderr()), nil).Build(def, report)

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), dashboard)
			}
			return render.NewRenderer(color).Dashboard(cmd.OutOrStdout(), dashboard)
		},
	}

	cmd.Flags().StringVarP(&assessmentID, "assessment", "a", "", "Assessment the report belongs to")
	cmd.Flags().BoolVar(&color, "color", false, "Colorize the dashboard")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return data, nil
}
