package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"uidai-insights/internal/app"
	"uidai-insights/internal/config"
	"uidai-insights/internal/dashboard"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/logging"
)

// ReportResult holds the trend summary of one dataset
type ReportResult struct {
	Kind           dataset.Kind
	Trend          *dashboard.Trend
	Error          error
	ProcessingTime time.Duration
}

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML config file")
	flag.Parse()

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

	_, kinds, _ := app.Sources(cfg)
	params := dashboard.TrendParams{
		Threshold: cfg.Analytics.Threshold,
		Window:    cfg.Analytics.Window,
		Steps:     cfg.Analytics.Steps,
	}

	if failed := runReport(ctx, svc, kinds, params); failed > 0 {
		os.Exit(1)
	}
}

// runReport computes the trend of every dataset with one worker per dataset and
// logs a summary. It returns the number of datasets that failed.
func runReport(ctx context.Context, svc *dashboard.Service, kinds []dataset.Kind, params dashboard.TrendParams) int {
	startTime := time.Now()

	jobs := make(chan dataset.Kind, len(kinds))
	results := make(chan ReportResult, len(kinds))

	var wg sync.WaitGroup
	for i := 0; i < len(kinds); i++ {
		wg.Add(1)
		go worker(ctx, svc, params, jobs, results, &wg)
	}

	for _, kind := range kinds {
		jobs <- kind
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	totalAnomalies := 0
	totalErrors := 0
	count := 0
	for result := range results {
		count++
		progress := fmt.Sprintf("%d/%d", count, len(kinds))

		if result.Error != nil {
			logging.Error().Err(result.Error).
				Str("dataset", result.Kind.String()).
				Str("progress", progress).
				Msg("❌ trend failed")
			totalErrors++
			continue
		}

		t := result.Trend
		totalAnomalies += len(t.Anomalies)
		event := logging.Info().
			Str("dataset", result.Kind.String()).
			Str("progress", progress).
			Dur("elapsed", result.ProcessingTime).
			Int("days", len(t.Series)).
			Int("anomalies", len(t.Anomalies)).
			Str("forecast_path", string(t.Forecast.Path))
		if last, ok := t.Forecast.Points.Last(); ok {
			event = event.Time("forecast_until", last.Date).Float64("forecast_last", last.Value)
		}
		if t.Forecast.Reason != "" {
			event = event.Str("fallback_reason", t.Forecast.Reason)
		}
		event.Msg("✓ trend computed")

		for _, a := range t.Anomalies {
			logging.Info().
				Str("dataset", result.Kind.String()).
				Time("date", a.Date).
				Float64("value", a.Value).
				Float64("z_score", a.ZScore).
				Str("severity", a.Severity).
				Msg("anomaly")
		}
	}

	logging.Info().
		Int("datasets", count-totalErrors).
		Int("errors", totalErrors).
		Int("anomalies", totalAnomalies).
		Dur("elapsed", time.Since(startTime)).
		Msg("Report complete")
	return totalErrors
}

// worker computes trends for datasets from the jobs channel
func worker(ctx context.Context, svc *dashboard.Service, params dashboard.TrendParams,
	jobs <-chan dataset.Kind, results chan<- ReportResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for kind := range jobs {
		startTime := time.Now()
		trend, err := svc.Trend(ctx, kind, params)
		results <- ReportResult{
			Kind:           kind,
			Trend:          trend,
			Error:          err,
			ProcessingTime: time.Since(startTime),
		}
	}
}
