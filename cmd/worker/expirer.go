package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/outline-admin/internal/app"
	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/logger"
	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var expirerCmd = &cobra.Command{
	Use:   "expirer",
	Short: "Run the expiry sweep on sweep.interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = logger.Log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		// 2) stores + service
		stores, err := app.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		svc := app.NewCustomerService(cfg, stores, logger.Log)

		// 3) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Log.Info("expirer started",
			zap.Duration("interval", cfg.Sweep.Interval), zap.Int("concurrency", cfg.Sweep.Concurrency))

		return worker.NewExpirer(svc, cfg.Sweep.Interval, logger.Log).Run(ctx)
	},
}
