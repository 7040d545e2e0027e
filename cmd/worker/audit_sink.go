package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/outline-admin/internal/app"
	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/kafka"
	"github.com/jmehdipour/outline-admin/internal/logger"
	"github.com/jmehdipour/outline-admin/internal/metrics"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/jmehdipour/outline-admin/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditSinkCmd = &cobra.Command{
	Use:   "audit-sink",
	Short: "Consume audit events from Kafka and store them in ClickHouse",
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

		// 2) ClickHouse is required here
		chDB, err := app.OpenClickHouse(cfg)
		if err != nil {
			return err
		}
		if chDB == nil {
			return fmt.Errorf("audit-sink needs clickhouse.dsn")
		}
		defer chDB.Close()

		// 3) kafka consumer
		topic := cfg.Kafka.AuditTopic
		if topic == "" {
			topic = repository.AuditTopic
		}
		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "vpnadm-audit-sink"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		w := worker.NewAuditSink(consumer, repository.NewCHAuditRepository(chDB), logger.Log)

		// tune knobs
		if cfg.Kafka.BatchSize > 0 {
			w.BatchSize = cfg.Kafka.BatchSize
		}
		if cfg.Kafka.BatchWait > 0 {
			w.BatchWait = cfg.Kafka.BatchWait
		}

		// 4) graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Log.Info("audit sink started",
			zap.String("topic", topic), zap.String("group", groupID),
			zap.Int("batch_size", w.BatchSize), zap.Duration("batch_wait", w.BatchWait))

		return w.Run(ctx)
	},
}
