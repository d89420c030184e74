package models

import (
	"sort"
	"time"
)

// Record represents a single cleaned row of an enrolment, biometric or demographic dataset
type Record struct {
	Date   time.Time          `json:"date"`
	Attrs  map[string]string  `json:"attrs"`  // text columns: state, district, pincode, ...
	Counts map[string]float64 `json:"counts"` // numeric columns
	Metric float64            `json:"metric"` // per-dataset total, resolved at load time
}

// Text returns the text value of column, or "" when absent
func (r Record) Text(column string) string {
	return r.Attrs[column]
}

// WithText returns a copy of the record with column set to value
func (r Record) WithText(column, value string) Record {
	attrs := make(map[string]string, len(r.Attrs)+1)
	for k, v := range r.Attrs {
		attrs[k] = v
	}
	attrs[column] = value
	r.Attrs = attrs
	return r
}

// HasDate reports whether the source date parsed
func (r Record) HasDate() bool {
	return !r.Date.IsZero()
}

// Point is a single observation of a daily series
type Point struct {
	Date    time.Time `json:"date"`
	Value   float64   `json:"value"`
	Missing bool      `json:"missing,omitempty"` // null value
}

// Series is an ordered sequence of daily observations
type Series []Point

// Values returns the values of the series with missing points as 0
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		if !p.Missing {
			values[i] = p.Value
		}
	}
	return values
}

// Sorted returns a copy of the series sorted ascending by date
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Last returns the last point of the series
func (s Series) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Anomaly represents a flagged observation
type Anomaly struct {
	Index    int       `json:"index"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
	ZScore   float64   `json:"z_score"`
	Severity string    `json:"severity"` // "low", "medium", "high"
}

// RegionTotal is a metric total for one region
type RegionTotal struct {
	Region string  `json:"region"`
	Value  float64 `json:"value"`
}

// Insight is a short finding shown on the insights tab
type Insight struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date,omitempty"`
	Value       float64   `json:"value"`
	GeneratedAt time.Time `json:"generated_at"`
}
