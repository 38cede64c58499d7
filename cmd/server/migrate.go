package main

import (
	mmysql "restaurant-service/internal/infra/mysql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema, including the payment reference unique index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := mmysql.Open(&cfg.MySQL, logger)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := mmysql.Migrate(db); err != nil {
				return err
			}
			logger.Info("schema up to date", zap.String("database", cfg.MySQL.Database))
			return nil
		},
	}
}
