package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Manager loads and serves the application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration from file and environment.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig merges the config file, if any, over the viper defaults
// and binds NRIS_* environment variables.
func (m *Manager) loadConfig() error {
	// Set configuration file name and paths
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/nris/")

	// Set environment variable prefix and enable automatic env binding
	viper.SetEnvPrefix("NRIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	m.setDefaults()

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal configuration into struct
	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults registers the viper defaults.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.tls_enabled", false)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "nris")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")

	// LIS client defaults
	viper.SetDefault("lis.base_url", "http://localhost:9090/lis/v2/")
	viper.SetDefault("lis.timeout", "30s")
	viper.SetDefault("lis.rate_limit", 10)
	viper.SetDefault("lis.retry_count", 3)
	viper.SetDefault("lis.panel_cache_size", 128)
	viper.SetDefault("lis.breaker_max_failures", 5)
	viper.SetDefault("lis.breaker_timeout", "60s")

	// Report cache defaults
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	// Event bus defaults
	viper.SetDefault("events.redis_url", "redis://localhost:6379")
	viper.SetDefault("events.channel", "nris.dispositions")
	viper.SetDefault("events.enabled", true)

	// Override store defaults
	viper.SetDefault("overrides.backend", "postgres")
	viper.SetDefault("overrides.sqlite_path", "./data/overrides.db")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Scheduler defaults
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.volume_rollup_spec", "0 2 * * *")
	viper.SetDefault("scheduler.cache_prune_spec", "30 3 * * *")
}

// GetConfig returns the currently loaded configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns the database block.
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetLISConfig returns the LIS client configuration
func (m *Manager) GetLISConfig() *domain.LISConfig {
	return &m.config.LIS
}

// GetServerConfig returns the HTTP server block.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Snapshot converts the raw thresholds block into an immutable
// threshold snapshot. Condition-family and iteration keys are normalized
// here so the config file can spell them "trisomy"/"1" while the domain
// uses typed keys; unknown families are dropped.
func (m *Manager) Snapshot() domain.ThresholdConfig {
	raw := m.config.Thresholds

	conditions := make(map[domain.ConditionFamily]map[int]map[string]float64, len(raw.Conditions))
	for familyKey, iterations := range raw.Conditions {
		family := domain.ConditionFamily(strings.ToUpper(familyKey))
		if !family.IsValid() {
			continue
		}
		converted := make(map[int]map[string]float64, len(iterations))
		for iterKey, values := range iterations {
			iteration := cast.ToInt(iterKey)
			if iteration < 1 || iteration > 3 {
				continue
			}
			thresholds := make(map[string]float64, len(values))
			for key, value := range values {
				thresholds[strings.ToLower(key)] = value
			}
			converted[iteration] = thresholds
		}
		conditions[family] = converted
	}

	return domain.NewThresholdConfig(conditions, raw.QC, raw.Panels)
}

// Reload re-reads configuration from the backing sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for unusable values.
func (m *Manager) Validate() error {
	config := m.config

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	// Validate database configuration
	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	// Validate LIS configuration
	if config.LIS.BaseURL == "" {
		return fmt.Errorf("LIS base URL is required")
	}

	// Validate cache configuration
	if config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required")
	}

	// Validate override store configuration
	switch strings.ToLower(config.Overrides.Backend) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid override store backend: %s", config.Overrides.Backend)
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString assembles the Postgres DSN.
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetDatabaseURL returns the database connection string in URL form, as
// expected by the migration tooling and the override store.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// GetRedisConnectionString assembles the cache address.
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction reports whether the environment is production.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment reports whether the environment is development.
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
