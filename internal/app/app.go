// Package app wires configuration into the loaders, cache and dashboard service
// shared by the commands.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"uidai-insights/internal/cache"
	"uidai-insights/internal/config"
	"uidai-insights/internal/dashboard"
	"uidai-insights/internal/database"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/source"
)

// Sources maps each configured dataset kind to its source URI, in config order
func Sources(cfg *config.Config) (map[dataset.Kind]string, []dataset.Kind, error) {
	sources := make(map[dataset.Kind]string, len(cfg.Datasets))
	kinds := make([]dataset.Kind, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		kind, err := dataset.ParseKind(d.Kind)
		if err != nil {
			return nil, nil, err
		}
		sources[kind] = d.Source
		kinds = append(kinds, kind)
	}
	return sources, kinds, nil
}

// NewFetcher builds the source fetcher. The S3 client is only created when a
// dataset is read from s3.
func NewFetcher(ctx context.Context, cfg *config.Config) (*source.MultiFetcher, error) {
	var s3 *source.S3Client
	for _, d := range cfg.Datasets {
		if strings.HasPrefix(d.Source, "s3://") {
			c, err := source.NewS3Client(ctx, cfg.S3)
			if err != nil {
				return nil, err
			}
			s3 = c
			break
		}
	}
	return source.NewMultiFetcher(s3), nil
}

// NewStore returns the configured cache store and a function releasing it
func NewStore(ctx context.Context, cfg *config.Config) (cache.Store, func(), error) {
	if cfg.Cache.Backend != "redis" {
		return cache.NewLocalStore(cfg.Cache.TTL, 2*cfg.Cache.TTL), func() {}, nil
	}

	redisCfg := cfg.Cache.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", redisCfg.Addr, err)
	}

	logging.Info().Str("addr", redisCfg.Addr).Msg("using Redis cache")
	return cache.NewRedisStore(client, redisCfg.KeyPrefix), func() { client.Close() }, nil
}

// NewLoader returns the configured record loader and a function releasing it
func NewLoader(ctx context.Context, cfg *config.Config, fetcher source.Fetcher) (dashboard.RecordLoader, func(), error) {
	if cfg.Storage.Backend == "mysql" {
		db, err := database.NewDB(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Msg("loading records from MySQL")
		return db, func() { db.Close() }, nil
	}

	sources, _, err := Sources(cfg)
	if err != nil {
		return nil, nil, err
	}
	return dataset.NewSourceLoader(fetcher, sources), func() {}, nil
}

// NewService builds the dashboard service from configuration
func NewService(ctx context.Context, cfg *config.Config) (*dashboard.Service, func(), error) {
	_, kinds, err := Sources(cfg)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := NewFetcher(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	loader, closeLoader, err := NewLoader(ctx, cfg, fetcher)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	svc := dashboard.NewService(loader, cache.NewMemo(store), fetcher, dashboard.Options{
		Kinds:        kinds,
		Threshold:    cfg.Analytics.Threshold,
		Window:       cfg.Analytics.Window,
		Steps:        cfg.Analytics.Steps,
		CacheTTL:     cfg.Cache.TTL,
		FitTimeout:   cfg.Forecast.FitTimeout,
		BoundaryPath: cfg.Geo.BoundaryPath,
		BoundaryURL:  cfg.Geo.BoundaryURL,
		PropertyKeys: cfg.Geo.PropertyKeys,
	})

	cleanup := func() {
		closeLoader()
		closeStore()
	}
	return svc, cleanup, nil
}
