package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/outline-admin/internal/app"
	"github.com/jmehdipour/outline-admin/internal/config"
	httpSrv "github.com/jmehdipour/outline-admin/internal/http"
	"github.com/jmehdipour/outline-admin/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (dashboard + API)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = logger.Log.Sync() }()

		if cfg.Auth.SessionSecret == "" || cfg.Auth.AdminPassword == "" {
			logger.Log.Warn("auth secrets missing: login and protected routes will refuse requests")
		}

		stores, err := app.OpenStores(cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Customers: app.NewCustomerService(cfg, stores, logger.Log),
			Audit:     app.NewAuditReader(stores),
			Redis:     stores.Redis,
		})

		errCh := make(chan error, 1)
		go func() {
			logger.Log.Info("starting http", zap.String("addr", cfg.HTTP.Addr),
				zap.Bool("redis", stores.Redis != nil), zap.Bool("clickhouse", stores.ClickHouse != nil))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
