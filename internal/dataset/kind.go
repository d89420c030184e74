// Package dataset turns raw enrolment, biometric and demographic tables into records
// and aggregates them into the series and totals the dashboard reports on.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned for a dataset name that is not one of the known kinds
var ErrUnknownKind = errors.New("unknown dataset kind")

// Kind identifies a dataset and how its metric is computed
type Kind int

const (
	Enrolment Kind = iota + 1
	Biometric
	Demographic
)

// Kinds lists every dataset kind in display order
func Kinds() []Kind {
	return []Kind{Enrolment, Biometric, Demographic}
}

// ParseKind parses a dataset name such as "enrolment"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enrolment":
		return Enrolment, nil
	case "biometric":
		return Biometric, nil
	case "demographic":
		return Demographic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string {
	switch k {
	case Enrolment:
		return "enrolment"
	case Biometric:
		return "biometric"
	case Demographic:
		return "demographic"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MetricName is the name of the derived total column
func (k Kind) MetricName() string {
	return "total_" + k.String()
}

// MetricLabel is the metric name for display, e.g. "Total Enrolment"
func (k Kind) MetricLabel() string {
	return "Total " + strings.ToUpper(k.String()[:1]) + k.String()[1:]
}

var enrolmentColumns = []string{"age_0_5", "age_5_17", "age_18_greater"}

// MetricAccessor computes a record's metric from its numeric columns
type MetricAccessor func(counts map[string]float64) float64

// Accessor resolves the metric accessor for a table with the given numeric columns.
// ok is false when the columns the kind sums are missing; the accessor then yields 0.
func (k Kind) Accessor(numericColumns []string) (accessor MetricAccessor, components []string, ok bool) {
	switch k {
	case Enrolment:
		have := make(map[string]bool, len(numericColumns))
		for _, c := range numericColumns {
			have[c] = true
		}
		for _, c := range enrolmentColumns {
			if !have[c] {
				return zeroMetric, nil, false
			}
		}
		components = enrolmentColumns
	case Biometric:
		components = columnsContaining(numericColumns, "bio")
	case Demographic:
		components = columnsContaining(numericColumns, "demo")
	default:
		return zeroMetric, nil, false
	}

	if len(components) == 0 {
		return zeroMetric, nil, false
	}
	return sumOf(components), components, true
}

func columnsContaining(columns []string, substr string) []string {
	var out []string
	for _, c := range columns {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

func sumOf(columns []string) MetricAccessor {
	cols := append([]string(nil), columns...)
	return func(counts map[string]float64) float64 {
		total := 0.0
		for _, c := range cols {
			total += counts[c]
		}
		return total
	}
}

func zeroMetric(map[string]float64) float64 { return 0 }
