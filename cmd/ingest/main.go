package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"uidai-insights/internal/app"
	"uidai-insights/internal/config"
	"uidai-insights/internal/database"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/logging"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	only := flag.String("kind", "", "ingest only this dataset kind")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, kinds, err := app.Sources(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid dataset configuration")
	}
	if *only != "" {
		kind, err := dataset.ParseKind(*only)
		if err != nil {
			logging.Fatal().Err(err).Msg("Invalid -kind")
		}
		if _, ok := sources[kind]; !ok {
			logging.Fatal().Str("kind", kind.String()).Msg("Dataset has no configured source")
		}
		kinds = []dataset.Kind{kind}
	}

	fetcher, err := app.NewFetcher(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize fetcher")
	}

	db, err := database.NewDB(cfg.Storage.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	start := time.Now()
	stored, failed := 0, 0
	for _, kind := range kinds {
		if ctx.Err() != nil {
			break
		}

		records, err := dataset.Load(ctx, fetcher, kind, sources[kind])
		if err != nil {
			logging.Error().Err(err).Str("dataset", kind.String()).Msg("❌ load failed")
			failed++
			continue
		}

		if err := db.StoreRecords(ctx, kind, records); err != nil {
			logging.Error().Err(err).Str("dataset", kind.String()).Msg("❌ store failed")
			failed++
			continue
		}
		stored += len(records)
		logging.Info().Str("dataset", kind.String()).Int("records", len(records)).Msg("✓ ingested")
	}

	counts, err := db.DatasetCounts(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to count stored records")
	}

	logging.Info().
		Int("records", stored).
		Int("failed", failed).
		Interface("stored", counts).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion complete")

	if failed > 0 {
		os.Exit(1)
	}
}
