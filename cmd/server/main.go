package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"uidai-insights/internal/app"
	"uidai-insights/internal/config"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/server"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := app.NewService(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize dashboard service")
	}
	defer cleanup()

	httpServer := server.NewServer(svc, server.Options{
		Addr:             cfg.Server.Addr,
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimit:        cfg.Server.RateLimit,
		RateLimitWindow:  cfg.Server.RateLimitWindow,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		ShutdownDeadline: cfg.Server.ShutdownDeadline,
		Threshold:        cfg.Analytics.Threshold,
		Window:           cfg.Analytics.Window,
		Steps:            cfg.Analytics.Steps,
	})

	if err := httpServer.Run(ctx); err != nil {
		logging.Error().Err(err).Msg("HTTP server stopped")
		return
	}
	logging.Info().Msg("Server stopped")
}
