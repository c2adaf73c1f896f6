package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ticket search service
type Config struct {
	// HTTP
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Database
	DBDriver     string `yaml:"db_driver"` // "sqlite" or "postgres"
	DatabasePath string `yaml:"sqlite_database"`
	DatabaseURL  string `yaml:"database_url"`

	// Result cache
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"-"` // decoded from fileConfig.CacheTTL

	// Search
	DefaultPageSize      int  `yaml:"default_page_size"`
	MaxPageSize          int  `yaml:"max_page_size"`
	FallbackBatchSize    int  `yaml:"fallback_batch_size"`
	StationAutoProvision bool `yaml:"station_auto_provision"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from environment variables with sensible defaults.
// If CONFIG_FILE is set, the YAML file is applied on top of the defaults
// and environment variables still win over both.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:                 "8081",
		CORSOrigins:          []string{"http://localhost:5173"},
		DBDriver:             "sqlite",
		DatabasePath:         "../../data/tickets.db",
		CacheSize:            500,
		CacheTTL:             5 * time.Minute,
		DefaultPageSize:      10,
		MaxPageSize:          100,
		FallbackBatchSize:    10,
		StationAutoProvision: true,
		LogLevel:             "info",
	}
}

// fileConfig mirrors Config for YAML decoding; durations are strings ("5m").
type fileConfig struct {
	Config   `yaml:",inline"`
	CacheTTL string `yaml:"cache_ttl"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	ttl := c.CacheTTL
	if fc.CacheTTL != "" {
		d, err := time.ParseDuration(fc.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid cache_ttl %q: %w", fc.CacheTTL, err)
		}
		ttl = d
	}

	*c = fc.Config
	c.CacheTTL = ttl
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabasePath = getEnv("SQLITE_DATABASE", c.DatabasePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.CacheSize = getEnvInt("CACHE_SIZE", c.CacheSize)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)

	c.DefaultPageSize = getEnvInt("DEFAULT_PAGE_SIZE", c.DefaultPageSize)
	c.MaxPageSize = getEnvInt("MAX_PAGE_SIZE", c.MaxPageSize)
	c.FallbackBatchSize = getEnvInt("FALLBACK_BATCH_SIZE", c.FallbackBatchSize)
	c.StationAutoProvision = getEnvBool("STATION_AUTO_PROVISION", c.StationAutoProvision)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("SQLITE_DATABASE is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.FallbackBatchSize <= 0 {
		return fmt.Errorf("fallback batch size must be positive, got %d", c.FallbackBatchSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
