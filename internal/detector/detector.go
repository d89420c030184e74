package detector

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"uidai-insights/internal/models"
)

// DefaultThreshold is the z-score threshold used when none is supplied
const DefaultThreshold = 2.5

// Result holds the standardized scores of a series and the indices flagged at Threshold
type Result struct {
	ZScores   []float64 `json:"z_scores"`
	Flagged   []int     `json:"flagged"`
	Threshold float64   `json:"threshold"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
}

// DetectAnomalies standardizes the series with its population mean and standard
// deviation and flags every index whose absolute z-score meets threshold.
// Missing values count as 0. A series with no variation scores 0 everywhere.
func DetectAnomalies(series models.Series, threshold float64) Result {
	values := series.Values()
	res := Result{
		ZScores:   make([]float64, len(values)),
		Threshold: threshold,
	}
	if len(values) == 0 {
		return res
	}

	mean, stdDev := stat.PopMeanStdDev(values, nil)
	res.Mean = mean

	// all-equal values can leave a rounding residue in stdDev
	if floats.Max(values) == floats.Min(values) || stdDev == 0 || math.IsNaN(stdDev) {
		return res
	}
	res.StdDev = stdDev

	for i, v := range values {
		res.ZScores[i] = CalculateZScore(v, mean, stdDev)
	}
	res.Flagged = res.Flag(threshold)
	return res
}

// Flag recomputes the flagged indices at another threshold
func (r Result) Flag(threshold float64) []int {
	var flagged []int
	for i, z := range r.ZScores {
		if IsOutlier(z, threshold) {
			flagged = append(flagged, i)
		}
	}
	return flagged
}

// Anomalies expands the flagged indices into anomalies of series
func (r Result) Anomalies(series models.Series) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0, len(r.Flagged))
	for _, i := range r.Flagged {
		if i >= len(series) {
			continue
		}
		p := series[i]
		value := p.Value
		if p.Missing {
			value = 0
		}
		anomalies = append(anomalies, models.Anomaly{
			Index:    i,
			Date:     p.Date,
			Value:    value,
			ZScore:   r.ZScores[i],
			Severity: calculateSeverityFromZScore(r.ZScores[i], r.Threshold),
		})
	}
	return anomalies
}

// Smooth returns the trailing moving average of series. The window narrows at the
// start of the series instead of padding, so the first point is always unchanged.
// Missing values are skipped; a window with no values yields a missing point.
func Smooth(series models.Series, window int) models.Series {
	if window < 1 {
		window = 1
	}

	out := make(models.Series, len(series))
	for i, p := range series {
		sum := 0.0
		count := 0
		for j := max(0, i-window+1); j <= i; j++ {
			if !series[j].Missing {
				sum += series[j].Value
				count++
			}
		}

		out[i] = models.Point{Date: p.Date}
		if count == 0 {
			out[i].Missing = true
			continue
		}
		out[i].Value = sum / float64(count)
	}
	return out
}

// calculateSeverityFromZScore grades an anomaly by how far it sits past the threshold
func calculateSeverityFromZScore(zScore, threshold float64) string {
	absZScore := math.Abs(zScore)
	if absZScore >= threshold+1.0 {
		return "high"
	} else if absZScore >= threshold+0.5 {
		return "medium"
	}
	return "low"
}

// CalculateZScore calculates the Z-score for a value given mean and standard deviation
func CalculateZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (value - mean) / stdDev
}

// IsOutlier checks if a Z-score meets the threshold in either direction
func IsOutlier(zScore, threshold float64) bool {
	return math.Abs(zScore) >= threshold
}
