package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// EnvPrefix is prepended to every environment override, e.g. VPNADM_AUTH_SESSION_SECRET.
const EnvPrefix = "VPNADM"

// ---- Root ----

type Config struct {
	HTTP           HTTPConfig      `mapstructure:"http"`
	Auth           AuthConfig      `mapstructure:"auth"`
	Outline        OutlineConfig   `mapstructure:"outline"`
	MySQL          DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse     DatabaseConfig  `mapstructure:"clickhouse"`
	Redis          RedisConfig     `mapstructure:"redis"`
	Kafka          KafkaConfig     `mapstructure:"kafka"`
	Sweep          SweepConfig     `mapstructure:"sweep"`
	LoginRateLimit RateLimitConfig `mapstructure:"login_rate_limit"`
	Lock           LockConfig      `mapstructure:"lock"`
	Log            LogConfig       `mapstructure:"log"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

// AuthConfig holds the shared secrets. Empty values are allowed at load time;
// the gatekeeper fails closed on them.
type AuthConfig struct {
	AdminPassword string `mapstructure:"admin_password"`
	SessionSecret string `mapstructure:"session_secret"`
	CronSecret    string `mapstructure:"cron_secret"`
}

type OutlineConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	CertSHA256 string        `mapstructure:"cert_sha256"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	GroupID        string        `mapstructure:"group_id"`
	AuditTopic     string        `mapstructure:"audit_topic"`
	MinBytes       int           `mapstructure:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes"`
	CommitInterval int           `mapstructure:"commit_interval_ms"`
	BatchSize      int           `mapstructure:"batch_size"`
	BatchWait      time.Duration `mapstructure:"batch_wait"`
}

type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type RateLimitConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Window   time.Duration `mapstructure:"window"`
}

type LockConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Wait time.Duration `mapstructure:"wait"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (VPNADM_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
	}

	// env override (VPNADM_*), nested keys use "_" for "."
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RenewOutlineCalls is the most Outline requests a single locked operation
// makes (renew: create, rename, delete old, and delete new on rollback).
const RenewOutlineCalls = 4

func (c Config) validate() error {
	// the per-customer lease must outlive the slowest locked operation
	if c.Outline.Timeout > 0 && c.Lock.TTL <= RenewOutlineCalls*c.Outline.Timeout {
		return fmt.Errorf("lock.ttl (%s) must exceed %d x outline.timeout (%s)",
			c.Lock.TTL, RenewOutlineCalls, c.Outline.Timeout)
	}
	return nil
}
