// Package dashboard computes the views of the analytics dashboard: KPIs, trends
// with anomalies and forecasts, state rankings, the choropleth map, insights and
// exports.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"

	"uidai-insights/internal/cache"
	"uidai-insights/internal/dataset"
	"uidai-insights/internal/detector"
	"uidai-insights/internal/forecast"
	"uidai-insights/internal/geo"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/metrics"
	"uidai-insights/internal/models"
	"uidai-insights/internal/source"
)

// DefaultTopStates is the number of states ranked when no limit is given
const DefaultTopStates = 15

// RecordLoader loads the cleaned records of a dataset
type RecordLoader interface {
	LoadRecords(ctx context.Context, kind dataset.Kind) ([]models.Record, error)
}

// Options configures a Service
type Options struct {
	Kinds        []dataset.Kind
	Threshold    float64
	Window       int
	Steps        int
	CacheTTL     time.Duration
	FitTimeout   time.Duration
	BoundaryPath string
	BoundaryURL  string
	PropertyKeys []string
}

// Service answers dashboard queries. Records and the boundary set are memoized;
// trends and forecasts are recomputed per call.
type Service struct {
	loader     RecordLoader
	memo       *cache.Memo
	fetcher    source.Fetcher
	resolver   *geo.KeyResolver
	forecaster *forecast.Forecaster
	opts       Options
}

// NewService creates a dashboard service. fetcher is used to download the
// boundary file when it is missing locally and may be nil.
func NewService(loader RecordLoader, memo *cache.Memo, fetcher source.Fetcher, opts Options) *Service {
	if len(opts.Kinds) == 0 {
		opts.Kinds = dataset.Kinds()
	}
	if opts.Threshold <= 0 {
		opts.Threshold = detector.DefaultThreshold
	}
	if opts.Window < 1 {
		opts.Window = 7
	}
	if opts.Steps < 1 {
		opts.Steps = 7
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}

	return &Service{
		loader:     loader,
		memo:       memo,
		fetcher:    fetcher,
		resolver:   geo.NewKeyResolver(opts.PropertyKeys),
		forecaster: forecast.NewForecaster(opts.FitTimeout),
		opts:       opts,
	}
}

// DatasetInfo describes an available dataset
type DatasetInfo struct {
	Kind   string `json:"kind"`
	Metric string `json:"metric"`
	Label  string `json:"label"`
}

// Datasets lists the configured datasets
func (s *Service) Datasets() []DatasetInfo {
	out := make([]DatasetInfo, 0, len(s.opts.Kinds))
	for _, k := range s.opts.Kinds {
		out = append(out, DatasetInfo{Kind: k.String(), Metric: k.MetricName(), Label: k.MetricLabel()})
	}
	return out
}

// Kind parses a dataset name and checks it is configured
func (s *Service) Kind(name string) (dataset.Kind, error) {
	kind, err := dataset.ParseKind(name)
	if err != nil {
		return 0, err
	}
	for _, k := range s.opts.Kinds {
		if k == kind {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not configured", dataset.ErrUnknownKind, name)
}

// Records returns the memoized records of kind
func (s *Service) Records(ctx context.Context, kind dataset.Kind) ([]models.Record, error) {
	var records []models.Record
	err := s.memo.Load(ctx, cache.NewKey("records", kind.String()), s.opts.CacheTTL, &records,
		func(ctx context.Context) (interface{}, error) {
			return s.loader.LoadRecords(ctx, kind)
		})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// KPIs are the headline figures of a dataset
type KPIs struct {
	Dataset   string  `json:"dataset"`
	Metric    string  `json:"metric"`
	Records   int     `json:"records"`
	Total     float64 `json:"total"`
	Mean      float64 `json:"mean"`
	States    int     `json:"states"`
	Districts int     `json:"districts"`
}

func (s *Service) KPIs(ctx context.Context, kind dataset.Kind) (*KPIs, error) {
	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer observe(kind, "kpis", time.Now())

	values := dataset.Metrics(records)
	k := &KPIs{
		Dataset:   kind.String(),
		Metric:    kind.MetricName(),
		Records:   len(records),
		States:    dataset.Distinct(records, "state"),
		Districts: dataset.Distinct(records, "district"),
	}
	if len(values) > 0 {
		k.Total, _ = stats.Sum(values)
		k.Mean, _ = stats.Mean(values)
	}
	return k, nil
}

// TrendParams tune a trend view; zero values take the service defaults
type TrendParams struct {
	Threshold float64
	Window    int
	Steps     int
}

// Trend is the daily series of a dataset with its moving average, z-scores,
// anomalies and forecast
type Trend struct {
	Dataset   string           `json:"dataset"`
	Metric    string           `json:"metric"`
	Threshold float64          `json:"threshold"`
	Window    int              `json:"window"`
	Series    models.Series    `json:"series"`
	Smoothed  models.Series    `json:"smoothed"`
	ZScores   []float64        `json:"z_scores"`
	Anomalies []models.Anomaly `json:"anomalies"`
	Forecast  forecast.Result  `json:"forecast"`
}

func (s *Service) Trend(ctx context.Context, kind dataset.Kind, p TrendParams) (*Trend, error) {
	p = s.withDefaults(p)

	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer observe(kind, "trend", time.Now())

	series := dataset.DailySeries(records)
	det := detector.DetectAnomalies(series, p.Threshold)
	anomalies := det.Anomalies(series)
	fc := s.forecaster.Forecast(ctx, series, p.Steps)

	metrics.RecordForecast(kind.String(), string(fc.Path))
	metrics.AnomaliesFlagged.WithLabelValues(kind.String()).Set(float64(len(anomalies)))

	logging.Ctx(ctx).Debug().
		Str("dataset", kind.String()).
		Int("points", len(series)).
		Int("anomalies", len(anomalies)).
		Str("forecast_path", string(fc.Path)).
		Msg("trend computed")

	if anomalies == nil {
		anomalies = []models.Anomaly{}
	}
	return &Trend{
		Dataset:   kind.String(),
		Metric:    kind.MetricName(),
		Threshold: p.Threshold,
		Window:    p.Window,
		Series:    series,
		Smoothed:  detector.Smooth(series, p.Window),
		ZScores:   det.ZScores,
		Anomalies: anomalies,
		Forecast:  fc,
	}, nil
}

func (s *Service) withDefaults(p TrendParams) TrendParams {
	if p.Threshold <= 0 {
		p.Threshold = s.opts.Threshold
	}
	if p.Window < 1 {
		p.Window = s.opts.Window
	}
	if p.Steps < 1 {
		p.Steps = s.opts.Steps
	}
	return p
}

// TopStates ranks states by total metric; n <= 0 uses DefaultTopStates
func (s *Service) TopStates(ctx context.Context, kind dataset.Kind, n int) ([]models.RegionTotal, error) {
	if n <= 0 {
		n = DefaultTopStates
	}

	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer observe(kind, "states", time.Now())

	totals := dataset.TotalsBy(geo.NormalizeNames(records, "state"), "state")
	return dataset.Top(totals, n), nil
}

// Insights summarizes the daily series into short findings
func (s *Service) Insights(ctx context.Context, kind dataset.Kind) ([]models.Insight, error) {
	records, err := s.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer observe(kind, "insights", time.Now())

	series := dataset.DailySeries(records)
	insights := detector.NewInsightGenerator(s.opts.Threshold, s.opts.Window).Generate(kind.MetricLabel(), series)
	if insights == nil {
		insights = []models.Insight{}
	}
	return insights, nil
}

// Export writes the records of kind to w as csv or xlsx and returns the file name
func (s *Service) Export(ctx context.Context, w io.Writer, kind dataset.Kind, format string) (string, error) {
	format, err := dataset.ParseFormat(format)
	if err != nil {
		return "", err
	}

	records, err := s.Records(ctx, kind)
	if err != nil {
		return "", err
	}
	defer observe(kind, "export", time.Now())

	if err := dataset.Write(w, kind, records, format); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", kind, err)
	}
	return dataset.ExportFileName(kind, format), nil
}

func observe(kind dataset.Kind, operation string, start time.Time) {
	metrics.RecordAnalytics(kind.String(), operation, time.Since(start))
}
