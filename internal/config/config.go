// Package config loads the render cache settings from the environment and
// an optional config file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultStoreURL points at a local Redis instance.
const DefaultStoreURL = "redis://localhost:6379/0"

// Config holds process settings.
type Config struct {
	// StoreURL selects the cache backend (redis://, rediss://, sqlite:// or host:port)
	StoreURL string

	// Port the HTTP server listens on
	Port int

	// RendererURL is the base URL of the rendering service
	RendererURL string

	// RenderTimeout bounds one render attempt
	RenderTimeout time.Duration

	// RenderRateLimit caps render attempts per second; 0 disables the limit
	RenderRateLimit float64
	RenderRateBurst int

	LogLevel      string
	LogPretty     bool
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// PartitionCacheSize bounds the memo of initialized partitions
	PartitionCacheSize int

	// Tracing enables the stdout span exporter
	Tracing bool

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_url", DefaultStoreURL)
	v.SetDefault("port", 8080)
	v.SetDefault("renderer_url", "http://localhost:3000")
	v.SetDefault("render_timeout", "30s")
	v.SetDefault("render_rate_limit", 0)
	v.SetDefault("render_rate_burst", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 10)
	v.SetDefault("partition_cache_size", 1024)
	v.SetDefault("tracing", false)
	v.SetDefault("shutdown_timeout", "15s")
}

// bindEnv maps settings to environment variables. The store URL falls back
// to REDIS_URL when RENDER_CACHE_STORE_URL is unset.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"store_url":            {"RENDER_CACHE_STORE_URL", "REDIS_URL"},
		"port":                 {"PORT"},
		"renderer_url":         {"RENDERER_URL"},
		"render_timeout":       {"RENDER_TIMEOUT"},
		"render_rate_limit":    {"RENDER_RATE_LIMIT"},
		"render_rate_burst":    {"RENDER_RATE_BURST"},
		"log_level":            {"LOG_LEVEL"},
		"log_pretty":           {"LOG_PRETTY"},
		"log_file":             {"LOG_FILE"},
		"log_max_size_mb":      {"LOG_MAX_SIZE_MB"},
		"log_max_backups":      {"LOG_MAX_BACKUPS"},
		"partition_cache_size": {"PARTITION_CACHE_SIZE"},
		"tracing":              {"TRACING"},
		"shutdown_timeout":     {"SHUTDOWN_TIMEOUT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration. When path is not empty the file is read
// first; environment variables override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		StoreURL:           strings.TrimSpace(v.GetString("store_url")),
		Port:               v.GetInt("port"),
		RendererURL:        strings.TrimSpace(v.GetString("renderer_url")),
		RenderTimeout:      v.GetDuration("render_timeout"),
		RenderRateLimit:    v.GetFloat64("render_rate_limit"),
		RenderRateBurst:    v.GetInt("render_rate_burst"),
		LogLevel:           v.GetString("log_level"),
		LogPretty:          v.GetBool("log_pretty"),
		LogFile:            v.GetString("log_file"),
		LogMaxSizeMB:       v.GetInt("log_max_size_mb"),
		LogMaxBackups:      v.GetInt("log_max_backups"),
		PartitionCacheSize: v.GetInt("partition_cache_size"),
		Tracing:            v.GetBool("tracing"),
		ShutdownTimeout:    v.GetDuration("shutdown_timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the process cannot run with.
func (c *Config) Validate() error {
	if err := validateStoreURL(c.StoreURL); err != nil {
		return err
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	u, err := url.Parse(c.RendererURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("renderer url must be an absolute http(s) url (got %q)", c.RendererURL)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be > 0 (got %s)", c.RenderTimeout)
	}
	if c.RenderRateLimit < 0 {
		return fmt.Errorf("render rate limit must be >= 0 (got %g)", c.RenderRateLimit)
	}
	if c.PartitionCacheSize <= 0 {
		return fmt.Errorf("partition cache size must be > 0 (got %d)", c.PartitionCacheSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be > 0 (got %s)", c.ShutdownTimeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func validateStoreURL(storeURL string) error {
	if storeURL == "" {
		return fmt.Errorf("store url is required")
	}
	scheme, _, found := strings.Cut(storeURL, "://")
	if !found {
		// plain host:port
		return nil
	}
	switch scheme {
	case "redis", "rediss", "sqlite":
		return nil
	default:
		return fmt.Errorf("unsupported store scheme %q", scheme)
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
