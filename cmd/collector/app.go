package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/cache"
	"jobmate/collector-service/internal/config"
	"jobmate/collector-service/internal/db"
	"jobmate/collector-service/internal/geo"
	"jobmate/collector-service/internal/logging"
	"jobmate/collector-service/internal/ratelimit"
	"jobmate/collector-service/internal/scraper"
)

// app holds the wired service components shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	pool *pgxpool.Pool
	rdb  *redis.Client

	cache    cache.Cache
	geocoder *geo.Geocoder
	jobs     *db.JobStore
	profiles *db.ProfileStore
	runner   *scraper.Runner
}

// newApp loads the configuration, connects to PostgreSQL and Redis and wires
// the components. Callers must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	logger.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	logger.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	responses := cache.NewRedisCache(rdb)
	searchLimiter := ratelimit.NewRedisLimiter(rdb, cfg.JSearch.RateLimit, cfg.JSearch.RateWindow)
	geocodeLimiter := ratelimit.NewRedisLimiter(rdb, cfg.Geocoder.RateLimit, cfg.Geocoder.RateWindow)

	geocoder := geo.NewGeocoder(geo.GeocoderOptions{
		BaseURL:    cfg.Geocoder.BaseURL,
		UserAgent:  cfg.Geocoder.UserAgent,
		CacheTTL:   cfg.Geocoder.CacheTTL,
		MaxRetries: cfg.Geocoder.MaxRetries,
		RetryDelay: cfg.Geocoder.RetryDelay,
	}, responses, geocodeLimiter, logger)

	fetcher := scraper.NewFetcher(scraper.FetcherOptions{
		BaseURL:  cfg.JSearch.BaseURL,
		APIKey:   cfg.JSearch.APIKey,
		Timeout:  cfg.JSearch.Timeout,
		CacheTTL: cfg.JSearch.CacheTTL,
	}, responses, searchLimiter, logger)

	jobs := db.NewJobStore(pool, logger)
	profiles := db.NewProfileStore(pool, geocoder, logger)

	collector := scraper.NewCollector(fetcher, jobs, scraper.CollectorOptions{
		NumPages:     cfg.JSearch.NumPages,
		MaxAttempts:  cfg.Collect.MaxAttempts,
		RetryBackoff: cfg.Collect.RetryBackoff,
		PageDelay:    cfg.Collect.PageDelay,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		rdb:      rdb,
		cache:    responses,
		geocoder: geocoder,
		jobs:     jobs,
		profiles: profiles,
		runner:   scraper.NewRunner(profiles, collector, logger),
	}, nil
}

func (a *app) close() {
	_ = a.cache.Close()
	_ = a.rdb.Close()
	a.pool.Close()
	_ = a.logger.Sync()
}

// withApp runs fn with a wired app and tears it down afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
