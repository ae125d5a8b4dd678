package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assessment-results-server/internal/config"
	"github.com/assessment-results-server/internal/database"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var configFile string
	var migrationsPath string

	cmd := &cobra.Command{
		Use:   "migrate up|down|status",
		Short: "Apply, roll back or inspect the database schema",
		Long: `Apply (up), roll back one step (down) or inspect (status) the PostgreSQL schema
used by the postgres report store and the email delivery audit trail. The schema
compiled into this binary is used unless --path or database.migrations_path names a
directory. Connection settings come from the server configuration.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := loadManager(configFile)
			if err != nil {
				return err
			}
			cfg := manager.GetConfig()

			path := migrationsPath
			if path == "" {
				path = cfg.Database.MigrationsPath
			}

			logger := opts.logger(cmd.ErrOrStderr())
			runner, err := database.NewSchemaRunner(database.ConfigFromDomain(cfg.Database).URL(), path, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			switch args[0] {
			case "up":
				err = runner.Up(cmd.Context())
			case "down":
				err = runner.Down(cmd.Context())
			}
			if err != nil {
				return err
			}

			status, err := runner.Status()
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d", status.Current, status.Latest)
			switch {
			case status.Dirty:
				fmt.Fprintln(cmd.OutOrStdout(), " (dirty, fix manually)")
			case status.UpToDate():
				fmt.Fprintln(cmd.OutOrStdout(), " (current)")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), " (pending)")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (default: search the standard locations)")
	cmd.Flags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: the embedded schema)")
	return cmd
}

func loadManager(path string) (*config.Manager, error) {
	if path != "" {
		return config.NewManagerFromFile(path)
	}
	return config.NewManager()
}
