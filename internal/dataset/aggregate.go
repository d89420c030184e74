package dataset

import (
	"sort"
	"time"

	"uidai-insights/internal/models"
)

// DailySeries sums each record's metric by date, ascending. Records without a date
// are left out.
func DailySeries(records []models.Record) models.Series {
	totals := make(map[time.Time]float64)
	for _, r := range records {
		if !r.HasDate() {
			continue
		}
		totals[r.Date] += r.Metric
	}

	series := make(models.Series, 0, len(totals))
	for d, v := range totals {
		series = append(series, models.Point{Date: d, Value: v})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	return series
}

// TotalsBy sums the metric per value of a text column. Records with no value are skipped.
func TotalsBy(records []models.Record, column string) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range records {
		key := r.Text(column)
		if key == "" {
			continue
		}
		totals[key] += r.Metric
	}
	return totals
}

// Top returns the n largest totals, ties broken by name. n <= 0 returns all.
func Top(totals map[string]float64, n int) []models.RegionTotal {
	out := make([]models.RegionTotal, 0, len(totals))
	for region, v := range totals {
		out = append(out, models.RegionTotal{Region: region, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Region < out[j].Region
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Distinct counts the distinct non-empty values of a text column
func Distinct(records []models.Record, column string) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		if v := r.Text(column); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}

// Metrics returns every record's metric
func Metrics(records []models.Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Metric
	}
	return out
}
