package domain

import (
	"time"
)

// Config is the full application configuration tree.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	LIS        LISConfig        `mapstructure:"lis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Events     EventsConfig     `mapstructure:"events"`
	Overrides  OverridesConfig  `mapstructure:"overrides"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LISConfig represents the laboratory information system client
// configuration
type LISConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RetryCount     int           `mapstructure:"retry_count"`
	PanelCacheSize int           `mapstructure:"panel_cache_size"`
	BreakerMaxFail uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig represents the report cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// EventsConfig represents the disposition event bus configuration
type EventsConfig struct {
	RedisURL string `mapstructure:"redis_url"`
	Channel  string `mapstructure:"channel"`
	Enabled  bool   `mapstructure:"enabled"`
}

// OverridesConfig represents the override audit store configuration.
// Backend selects between the embedded sqlite store and the shared
// postgres store.
type OverridesConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ThresholdsConfig is the raw threshold configuration as it appears in the
// config file: condition family -> iteration -> named threshold. Iteration
// keys arrive as strings from YAML and environment sources; the config
// manager converts the block into a ThresholdConfig snapshot.
type ThresholdsConfig struct {
	Conditions map[string]map[string]map[string]float64 `mapstructure:"conditions"`
	QC         map[string]float64                       `mapstructure:"qc"`
	Panels     map[string]float64                       `mapstructure:"panels"`
}

// SchedulerConfig represents the background job schedules
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	VolumeRollupSpec string `mapstructure:"volume_rollup_spec"`
	CachePruneSpec   string `mapstructure:"cache_prune_spec"`
}
