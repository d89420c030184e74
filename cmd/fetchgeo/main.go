package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"uidai-insights/internal/config"
	"uidai-insights/internal/dashboard"
	"uidai-insights/internal/geo"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/source"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	force := flag.Bool("force", false, "download even when the boundary file exists")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := cfg.Geo.BoundaryPath
	data, err := os.ReadFile(path)
	switch {
	case err == nil && !*force:
		logging.Info().Str("path", path).Msg("Boundary file already present")
	case err == nil || errors.Is(err, fs.ErrNotExist):
		data, err = dashboard.DownloadBoundary(ctx, source.NewMultiFetcher(nil), cfg.Geo.BoundaryURL, path)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to download boundary file")
		}
	default:
		logging.Fatal().Err(err).Str("path", path).Msg("Failed to read boundary file")
	}

	boundary, err := geo.ParseFeatureSet(data)
	if err != nil {
		logging.Fatal().Err(err).Msg("Boundary file is not valid GeoJSON")
	}

	key, ok := geo.NewKeyResolver(cfg.Geo.PropertyKeys).Resolve(boundary)
	if !ok {
		logging.Warn().Int("features", len(boundary.Features)).Msg("No region name property found; the map will be unavailable")
		return
	}
	logging.Info().
		Str("path", path).
		Int("features", len(boundary.Features)).
		Str("property_key", key).
		Msg("✓ Boundary file ready")
}
