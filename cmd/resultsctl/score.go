package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/service"
)

func newClassifyCmd(opts *options) *cobra.Command {
	var params service.ClassifyScoreParams
	var polarity string

	cmd := &cobra.Command{
		Use:   "classify SCORE",
		Short: "Classify a score into a rating band",
		Long: `Classify a score into a qualitative rating band.

The score is a percentage unless --max is given. With --assessment the assessment's own
scale is used; otherwise the stock scale of --polarity applies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := parseNumber("score", args[0])
			if err != nil {
				return err
			}
			params.Score = score
			params.Polarity = domain.Polarity(polarity)

			catalog, err := opts.catalog(cmd)
			if err != nil {
				return err
			}
			scale, err := service.DefinitionScale(catalog, &params)
			if err != nil {
				return err
			}

			classifier := service.NewClassifierService(opts.logger(cmd.ErrOrStderr()), nil)
			result, err := classifier.ClassifyScore(&params, scale)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "%s%% %s (%s)\n", strconv.FormatFloat(result.Percent, 'f', -1, 64), result.Rating.Label, result.Rating.Level)
			if result.Rating.Description != "" {
				fmt.Fprintln(out, result.Rating.Description)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&params.MaxScore, "max", 0, "Maximum raw score; the score is a percentage when omitted")
	cmd.Flags().StringVar(&polarity, "polarity", "ascending", "Scale direction (ascending|descending)")
	cmd.Flags().StringVar(&params.AssessmentID, "assessment", "", "Use the rating scale of this assessment")
	return cmd
}

func newPositionCmd(opts *options) *cobra.Command {
	var window string

	cmd := &cobra.Command{
		Use:   "position YOUR AVERAGE OPTIMAL",
		Short: "Compute benchmark display positions",
		Long: `Compute where your score, the population average and the optimal score sit on a
benchmark bar, as percentages of the visible window.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]float64, 3)
			for i, name := range []string{"your", "average", "optimal"} {
				v, err := parseNumber(name, args[i])
				if err != nil {
					return err
				}
				values[i] = v
			}

			w := domain.BenchmarkWindow(window)
			if w != domain.WindowAverage && w != domain.WindowOptimal {
				return domain.NewValidationError("window", "window must be average or optimal", window)
			}
			pos := service.PositionWithWindow(values[0], values[1], values[2], w)

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, pos)
			}
			fmt.Fprintf(out, "window  %s..%s\n", fmtNumber(pos.RangeStart), fmtNumber(pos.RangeEnd))
			fmt.Fprintf(out, "your    %s%%\n", fmtNumber(pos.YourPct))
			fmt.Fprintf(out, "average %s%%\n", fmtNumber(pos.AveragePct))
			fmt.Fprintf(out, "optimal %s%%\n", fmtNumber(pos.OptimalPct))
			if pos.LabelsOverlap {
				fmt.Fprintln(out, "labels overlap")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&window, "window", string(domain.WindowAverage), "Window anchor (average|optimal)")
	return cmd
}

func parseNumber(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be a number", s)
	}
	return v, nil
}

func fmtNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
