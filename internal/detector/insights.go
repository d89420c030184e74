package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"uidai-insights/internal/models"
)

// InsightGenerator summarizes a daily series into short findings for analysts
type InsightGenerator struct {
	threshold      float64
	window         int
	minTrendPoints int
	now            func() time.Time
}

// NewInsightGenerator creates a new insight generator
func NewInsightGenerator(threshold float64, window int) *InsightGenerator {
	return &InsightGenerator{
		threshold:      threshold,
		window:         window,
		minTrendPoints: 3, // a trend needs a few smoothed points to mean anything
		now:            time.Now,
	}
}

// Generate analyzes the series and returns its insights, peak activity first
func (ig *InsightGenerator) Generate(metric string, series models.Series) []models.Insight {
	if len(series) == 0 {
		return nil
	}

	var insights []models.Insight
	if peak := ig.peakActivity(metric, series); peak != nil {
		insights = append(insights, *peak)
	}
	if typical := ig.typicalActivity(metric, series); typical != nil {
		insights = append(insights, *typical)
	}
	if anomalies := ig.anomalySummary(metric, series); anomalies != nil {
		insights = append(insights, *anomalies)
	}
	if trend := ig.trendDirection(metric, series); trend != nil {
		insights = append(insights, *trend)
	}
	return insights
}

// peakActivity finds the date with the highest total
func (ig *InsightGenerator) peakActivity(metric string, series models.Series) *models.Insight {
	peakIdx := -1
	peak := math.Inf(-1)
	for i, p := range series {
		if p.Missing {
			continue
		}
		if p.Value > peak {
			peak = p.Value
			peakIdx = i
		}
	}
	if peakIdx < 0 {
		return nil
	}

	date := series[peakIdx].Date
	return &models.Insight{
		Kind:        "peak",
		Title:       "Peak Activity Date",
		Description: fmt.Sprintf("Peak %s on %s", metric, date.Format("02 Jan 2006")),
		Date:        date,
		Value:       peak,
		GeneratedAt: ig.now(),
	}
}

// typicalActivity reports the median daily total
func (ig *InsightGenerator) typicalActivity(metric string, series models.Series) *models.Insight {
	median, err := stats.Median(stats.Float64Data(series.Values()))
	if err != nil {
		return nil
	}
	return &models.Insight{
		Kind:        "median",
		Title:       "Typical Daily Activity",
		Description: fmt.Sprintf("Median daily %s is %.0f", metric, median),
		Value:       median,
		GeneratedAt: ig.now(),
	}
}

// anomalySummary counts the days flagged at the generator's threshold
func (ig *InsightGenerator) anomalySummary(metric string, series models.Series) *models.Insight {
	res := DetectAnomalies(series, ig.threshold)
	anomalies := res.Anomalies(series)

	description := fmt.Sprintf("No unusual days in %s at |z| >= %.1f", metric, ig.threshold)
	if len(anomalies) > 0 {
		high := 0
		for _, a := range anomalies {
			if a.Severity == "high" {
				high++
			}
		}
		description = fmt.Sprintf("%d unusual days in %s at |z| >= %.1f (%d high severity)",
			len(anomalies), metric, ig.threshold, high)
	}

	return &models.Insight{
		Kind:        "anomalies",
		Title:       "Unusual Activity",
		Description: description,
		Value:       float64(len(anomalies)),
		GeneratedAt: ig.now(),
	}
}

// trendDirection compares the latest smoothed value against the series mean
func (ig *InsightGenerator) trendDirection(metric string, series models.Series) *models.Insight {
	if len(series) < ig.minTrendPoints {
		return nil
	}

	smoothed := Smooth(series, ig.window)
	last, ok := smoothed.Last()
	if !ok || last.Missing {
		return nil
	}

	mean, err := stats.Mean(stats.Float64Data(series.Values()))
	if err != nil || mean == 0 {
		return nil
	}

	change := (last.Value - mean) / math.Abs(mean)
	days := min(ig.window, len(series))
	direction := "steady"
	if change > 0.1 {
		direction = "rising"
	} else if change < -0.1 {
		direction = "falling"
	}

	return &models.Insight{
		Kind:        "trend",
		Title:       "Recent Trend",
		Description: fmt.Sprintf("%s is %s: latest %d-day average is %+.0f%% against the overall mean", metric, direction, days, change*100),
		Date:        last.Date,
		Value:       change,
		GeneratedAt: ig.now(),
	}
}
