package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/estore/driver"
	"goflare.io/estore/migrations"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Database migration management",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) > 0 {
			action = args[0]
		}
		return runMigrate(cmd.Context(), action)
	},
}

func runMigrate(ctx context.Context, action string) error {
	db, err := driver.ConnectSQL(ctx, cfg.Database.DSN, driver.PoolConfig{MaxConns: 2})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Pool.Close()

	sqlDB := migrations.OpenDB(db.Pool)
	defer sqlDB.Close()

	switch action {
	case "up":
		err = migrations.Up(ctx, sqlDB)
	case "down":
		err = migrations.Down(ctx, sqlDB)
	case "status":
		err = migrations.Status(ctx, sqlDB)
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	log.Info("Migration finished", zap.String("action", action))
	return nil
}
