package main

import (
	"carnumbers/pkg/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			pool, err := database.NewPool(cmd.Context(), database.PoolConfig{ConnString: cfg.DatabaseURL, MaxConns: 2}, logger)
			if err != nil {
				return err
			}
			defer database.ClosePool(pool)

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("schema applied")
			return nil
		},
	}
}
