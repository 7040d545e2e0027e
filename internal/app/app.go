// Package app wires configuration into connections and services shared by the
// serve, sweep and worker commands.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/db"
	"github.com/jmehdipour/outline-admin/internal/lock"
	"github.com/jmehdipour/outline-admin/internal/outline"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/jmehdipour/outline-admin/internal/service/customer"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores holds the open connections. Redis and ClickHouse are optional and
// nil when not configured.
type Stores struct {
	MySQL      *sqlx.DB
	Redis      *redis.Client
	ClickHouse *sqlx.DB
}

func (s *Stores) Close() {
	if s.ClickHouse != nil {
		_ = s.ClickHouse.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.MySQL != nil {
		_ = s.MySQL.Close()
	}
}

// OpenMySQL opens the primary store.
func OpenMySQL(cfg config.Config) (*sqlx.DB, error) {
	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return mysqlDB, nil
}

// OpenClickHouse returns nil, nil when no DSN is configured.
func OpenClickHouse(cfg config.Config) (*sqlx.DB, error) {
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if errors.Is(err, db.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return chDB, nil
}

// OpenRedis returns nil, nil when no address is configured.
func OpenRedis(cfg config.Config) (*redis.Client, error) {
	rdb, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if errors.Is(err, db.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return rdb, nil
}

// OpenStores opens MySQL and, when configured, Redis and ClickHouse.
func OpenStores(cfg config.Config) (*Stores, error) {
	s := &Stores{}
	var err error

	if s.MySQL, err = OpenMySQL(cfg); err != nil {
		return nil, err
	}
	if s.Redis, err = OpenRedis(cfg); err != nil {
		s.Close()
		return nil, err
	}
	if s.ClickHouse, err = OpenClickHouse(cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewLocker prefers Redis so that every process shares the customer locks.
func NewLocker(cfg config.Config, rdb *redis.Client) lock.Locker {
	if rdb == nil {
		return lock.NewMemory(cfg.Lock.Wait)
	}
	return lock.NewRedis(rdb, lock.RedisConfig{
		TTL:  cfg.Lock.TTL,
		Wait: cfg.Lock.Wait,
	})
}

func NewOutlineClient(cfg config.Config) *outline.Client {
	return outline.NewClient(outline.Config{
		BaseURL:       cfg.Outline.APIURL,
		CertSHA256:    cfg.Outline.CertSHA256,
		Timeout:       cfg.Outline.Timeout,
		FailThreshold: cfg.Outline.Breaker.FailThreshold,
		OpenFor:       time.Duration(cfg.Outline.Breaker.OpenForMs) * time.Millisecond,
	})
}

// NewCustomerService builds the lifecycle service on top of the given stores.
func NewCustomerService(cfg config.Config, stores *Stores, log *zap.Logger) *customer.Service {
	outboxRepo := repository.NewOutboxRepository(stores.MySQL)

	return customer.New(
		repository.NewCustomersRepository(stores.MySQL),
		repository.NewAuditRepository(stores.MySQL, outboxRepo),
		NewOutlineClient(cfg),
		NewLocker(cfg, stores.Redis),
		customer.Options{
			Logger:           log,
			SweepConcurrency: cfg.Sweep.Concurrency,
			SweepBatch:       cfg.Sweep.BatchSize,
		},
	)
}

// NewAuditReader serves audit history from ClickHouse when available.
func NewAuditReader(stores *Stores) repository.AuditReader {
	if stores.ClickHouse != nil {
		return repository.NewCHAuditRepository(stores.ClickHouse)
	}
	return repository.NewAuditRepository(stores.MySQL, nil)
}
