package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the metrics response cache.
type Config struct {
	Enabled bool          // When false no cache is constructed. Default true.
	TTL     time.Duration // Report cache TTL. Default 30s.
	MaxSize int           // Max cached responses. Default 500.
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		TTL:     30 * time.Second,
		MaxSize: 500,
	}
}

// ConfigFromEnv loads config from environment variables.
// APPTRAIL_CACHE_ENABLED, APPTRAIL_CACHE_TTL_SECONDS, APPTRAIL_CACHE_MAX_SIZE
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("APPTRAIL_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("APPTRAIL_CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("APPTRAIL_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
	return cfg
}

// FromConfig builds the cache, or nil when disabled. A nil cache is safe
// to pass to Middleware and to invalidate.
func FromConfig(cfg *Config) *TTLCache {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return NewTTLCache(cfg.MaxSize, cfg.TTL)
}
