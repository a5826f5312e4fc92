// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the collector service.
type Config struct {
	Env      string
	LogLevel string
	Port     string
	GRPCPort string

	DatabaseURL string
	RedisURL    string

	JSearch  JSearchConfig
	Collect  CollectConfig
	Geocoder GeocoderConfig
}

// JSearchConfig configures the RapidAPI JSearch client.
type JSearchConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	NumPages   int
	RateLimit  int // requests allowed per RateWindow and caller
	RateWindow time.Duration
}

// CollectConfig configures the pagination loop and the scheduler.
type CollectConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	PageDelay    time.Duration
	Schedule     string // cron spec, e.g. "@every 6h"; empty disables scheduled runs
}

// GeocoderConfig configures the Nominatim client.
type GeocoderConfig struct {
	BaseURL    string
	UserAgent  string
	CacheTTL   time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  int // Nominatim usage policy: one request per second
	RateWindow time.Duration
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	env := &envReader{}
	cfg := &Config{
		Env:         getEnvString("APP_ENV", "production"),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		Port:        getEnvString("COLLECTOR_PORT", "8083"),
		GRPCPort:    getEnvString("COLLECTOR_GRPC_PORT", "9083"),
		DatabaseURL: dbURL,
		RedisURL:    redisURL,
		JSearch: JSearchConfig{
			BaseURL:    getEnvString("JSEARCH_BASE_URL", "https://jsearch.p.rapidapi.com"),
			APIKey:     os.Getenv("RAPID_API_KEY"),
			Timeout:    env.getDuration("JSEARCH_TIMEOUT", 90*time.Second),
			CacheTTL:   env.getDuration("JSEARCH_CACHE_TTL", 5*time.Hour),
			NumPages:   env.getInt("JSEARCH_NUM_PAGES", 10),
			RateLimit:  env.getInt("JSEARCH_RATE_LIMIT", 30),
			RateWindow: env.getDuration("JSEARCH_RATE_WINDOW", time.Minute),
		},
		Collect: CollectConfig{
			MaxAttempts:  env.getInt("COLLECT_MAX_ATTEMPTS", 1),
			RetryBackoff: env.getDuration("COLLECT_RETRY_BACKOFF", 3*time.Second),
			PageDelay:    env.getDuration("COLLECT_PAGE_DELAY", 3*time.Second),
			Schedule:     os.Getenv("COLLECT_SCHEDULE"),
		},
		Geocoder: GeocoderConfig{
			BaseURL:    getEnvString("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:  getEnvString("NOMINATIM_USER_AGENT", "city_distance_app"),
			CacheTTL:   env.getDuration("GEOCODE_CACHE_TTL", 24*time.Hour),
			MaxRetries: env.getInt("GEOCODE_MAX_RETRIES", 3),
			RetryDelay: env.getDuration("GEOCODE_RETRY_DELAY", 2*time.Second),
			RateLimit:  env.getInt("GEOCODE_RATE_LIMIT", 1),
			RateWindow: env.getDuration("GEOCODE_RATE_WINDOW", time.Second),
		},
	}
	if env.err != nil {
		return nil, env.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JSearch.NumPages < 1 {
		return fmt.Errorf("JSEARCH_NUM_PAGES must be a positive integer, got %d", c.JSearch.NumPages)
	}
	if c.JSearch.RateLimit < 1 {
		return fmt.Errorf("JSEARCH_RATE_LIMIT must be a positive integer, got %d", c.JSearch.RateLimit)
	}
	if c.Collect.MaxAttempts < 1 {
		return fmt.Errorf("COLLECT_MAX_ATTEMPTS must be a positive integer, got %d", c.Collect.MaxAttempts)
	}
	if c.JSearch.RateWindow <= 0 {
		return fmt.Errorf("JSEARCH_RATE_WINDOW must be positive, got %s", c.JSearch.RateWindow)
	}
	if c.Geocoder.RateLimit < 1 {
		return fmt.Errorf("GEOCODE_RATE_LIMIT must be a positive integer, got %d", c.Geocoder.RateLimit)
	}
	if c.Geocoder.RateWindow <= 0 {
		return fmt.Errorf("GEOCODE_RATE_WINDOW must be positive, got %s", c.Geocoder.RateWindow)
	}
	if c.Geocoder.MaxRetries < 1 {
		return fmt.Errorf("GEOCODE_MAX_RETRIES must be a positive integer, got %d", c.Geocoder.MaxRetries)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// envReader parses optional typed variables and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) getInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		r.fail(fmt.Errorf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return intValue
}

func (r *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		r.fail(fmt.Errorf("%s must be a duration such as 90s or 5h, got %q", key, value))
		return defaultValue
	}
	return duration
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
