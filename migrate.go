package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/database"
	"github.com/Sumeet513/snowflake-data-catalog/pkg/logging"
)

var (
	migrateDown   int
	migrateStatus bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply, roll back or inspect catalog store migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Env, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.OpenMigrationDB(cfg.Database.URL())
		if err != nil {
			return err
		}
		defer db.Close()

		switch {
		case migrateStatus:
			st, err := database.MigrationStatus(db, cfg.Database.MigrationsPath, logger)
			if err != nil {
				return err
			}
			fmt.Printf("version %d (dirty: %v)\n", st.Version, st.Dirty)
			return nil
		case migrateDown > 0:
			return database.RollbackMigrations(db, cfg.Database.MigrationsPath, migrateDown, logger)
		default:
			return database.RunMigrations(db, cfg.Database.MigrationsPath, logger)
		}
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "roll back this many migrations")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print the current schema version")
	rootCmd.AddCommand(migrateCmd)
}
