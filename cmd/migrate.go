package cmd

import (
	"routeopt/internal/adapters/out/postgres"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err = postgres.Migrate(db, withDirectory); err != nil {
			return err
		}
		logger.Info("schema migrated", "with_directory", withDirectory)
		return nil
	},
}
