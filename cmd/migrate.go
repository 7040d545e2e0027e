package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outline-admin/internal/app"
	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/migrate"
	"github.com/spf13/cobra"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded migrations to MySQL and, if configured, ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		run := migrate.Up
		if migrateDown {
			run = migrate.Down
		}

		mysqlDB, err := app.OpenMySQL(cfg)
		if err != nil {
			return err
		}
		defer mysqlDB.Close()

		if err := run(ctx, mysqlDB.DB, migrate.MySQL); err != nil {
			return err
		}

		chDB, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		if chDB != nil {
			defer chDB.Close()
			if err := run(ctx, chDB.DB, migrate.ClickHouse); err != nil {
				return err
			}
		}

		fmt.Println(">> Migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the latest migration instead")
}
