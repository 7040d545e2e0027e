package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jmehdipour/outline-admin/internal/app"
	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/logger"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue customers once and print {checked, revoked, failed}",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = logger.Log.Sync() }()

		stores, err := app.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		res, err := app.NewCustomerService(cfg, stores, logger.Log).ExpireSweep(cmd.Context())
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(res)
	},
}
