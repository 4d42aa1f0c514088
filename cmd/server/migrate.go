package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/hospital-directory/internal/config"
	"github.com/sakif/hospital-directory/internal/repository/postgres"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all up migrations",
		Long: `Apply the embedded Postgres migrations. SQLite databases create
their schema on open and need no migration step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			if db.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate up needs DB_DRIVER=postgres, got %q", db.Driver)
			}

			if err := postgres.RunMigrations(db.URL); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	})
	return migrateCmd
}
