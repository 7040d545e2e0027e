package app

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmehdipour/outline-admin/internal/config"
	"github.com/jmehdipour/outline-admin/internal/lock"
	"github.com/jmehdipour/outline-admin/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Lock.TTL = time.Minute
	cfg.Lock.Wait = time.Second
	return cfg
}

func TestNewLocker(t *testing.T) {
	cfg := testConfig()

	_, ok := NewLocker(cfg, nil).(*lock.Memory)
	assert.True(t, ok, "no redis falls back to in-process locks")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, ok = NewLocker(cfg, rdb).(*lock.Redis)
	assert.True(t, ok)
}

func TestNewAuditReader(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	mysqlDB := sqlx.NewDb(raw, "mysql")

	_, ok := NewAuditReader(&Stores{MySQL: mysqlDB}).(*repository.AuditRepositoryImpl)
	assert.True(t, ok, "without clickhouse the mysql audit_logs table is read")

	chDB := sqlx.NewDb(raw, "clickhouse")
	_, ok = NewAuditReader(&Stores{MySQL: mysqlDB, ClickHouse: chDB}).(repository.CHAuditRepository)
	assert.True(t, ok)
}

func TestOpenOptionalStores(t *testing.T) {
	cfg := testConfig()

	rdb, err := OpenRedis(cfg)
	require.NoError(t, err)
	assert.Nil(t, rdb)

	ch, err := OpenClickHouse(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)
}
