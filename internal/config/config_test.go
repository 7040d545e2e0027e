package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Outline.Timeout)
	assert.Equal(t, 5, cfg.Outline.Breaker.FailThreshold)
	assert.Equal(t, "vpnadm.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateLimit.Window)
	assert.Empty(t, cfg.Auth.SessionSecret)
	assert.Greater(t, cfg.Lock.TTL, RenewOutlineCalls*cfg.Outline.Timeout)
}

func TestLoad_EnvOverridesNestedKeys(t *testing.T) {
	t.Setenv("VPNADM_AUTH_SESSION_SECRET", "s3cret")
	t.Setenv("VPNADM_OUTLINE_CERT_SHA256", "AA:BB")
	t.Setenv("VPNADM_SWEEP_CONCURRENCY", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.SessionSecret)
	assert.Equal(t, "AA:BB", cfg.Outline.CertSHA256)
	assert.Equal(t, 3, cfg.Sweep.Concurrency)
}

func TestLoad_MergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9090\"\n  secure_cookies: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.True(t, cfg.HTTP.SecureCookies)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_LockTTLMustOutliveOutlineCalls(t *testing.T) {
	t.Setenv("VPNADM_LOCK_TTL", "1m")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock.ttl")

	t.Setenv("VPNADM_OUTLINE_TIMEOUT", "10s")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Lock.TTL)
}
