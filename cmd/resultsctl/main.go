// Command resultsctl classifies scores, positions benchmarks and renders result dashboards
// from the command line. It also runs database migrations for the server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/assessment-results-server/internal/assessment"
)

// options holds the persistent flags shared by every subcommand
type options struct {
	assessmentsDir string
	jsonOutput     bool
	verbose        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "resultsctl",
		Short: "Assessment results toolkit",
		Long: `resultsctl works with assessment results outside the server.

It classifies scores into rating bands, computes benchmark positions, renders a stored
report as a terminal dashboard and applies database migrations.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.assessmentsDir, "assessments-dir", "", "Directory with additional assessment definitions")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newClassifyCmd(opts),
		newPositionCmd(opts),
		newRenderCmd(opts),
		newAssessmentsCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// logger writes to stderr so command output stays clean.
func (o *options) logger(errOut io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(errOut)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if o.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func (o *options) catalog(cmd *cobra.Command) (*assessment.Catalog, error) {
	catalog, err := assessment.NewDefaultCatalog(o.logger(cmd.ErrOrStderr()), o.assessmentsDir, "")
	if err != nil {
		return nil, fmt.Errorf("loading assessments: %w", err)
	}
	return catalog, nil
}
