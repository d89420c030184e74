package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"uidai-insights/internal/geo"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/models"
)

// columns always kept as text, whatever their cells look like
var textColumns = map[string]bool{
	"date":     true,
	"state":    true,
	"district": true,
	"pincode":  true,
}

// UIDAI exports write dates day first
var dateLayouts = []string{
	"02-01-2006",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// NormalizeColumn lower-cases a header and joins its words with underscores
func NormalizeColumn(c string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
}

// Preprocess cleans a raw table into records of the given kind: headers are
// normalized, dates parsed, state and district title-cased, pincodes padded to six
// digits, blank numbers read as 0, and the kind's metric computed once per record.
func Preprocess(kind Kind, table *Table) []models.Record {
	header := make([]string, len(table.Header))
	for i, c := range table.Header {
		header[i] = NormalizeColumn(c)
	}

	numeric := numericColumns(header, table.Rows)
	accessor, components, ok := kind.Accessor(numeric)
	if !ok {
		logging.Warn().
			Str("dataset", kind.String()).
			Strs("columns", numeric).
			Msgf("no component columns for %s, metric will be 0", kind.MetricName())
	} else {
		logging.Debug().Str("dataset", kind.String()).Strs("components", components).Msg("metric resolved")
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, c := range numeric {
		isNumeric[c] = true
	}

	records := make([]models.Record, 0, len(table.Rows))
	unparsedDates := 0
	for _, row := range table.Rows {
		r := models.Record{
			Attrs:  make(map[string]string),
			Counts: make(map[string]float64),
		}
		for i, column := range header {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}

			switch {
			case column == "date":
				if d, ok := ParseDate(cell); ok {
					r.Date = d
				} else {
					unparsedDates++
				}
			case column == "state" || column == "district":
				r.Attrs[column] = geo.TitleCase(cell)
			case column == "pincode":
				r.Attrs[column] = padPincode(cell)
			case isNumeric[column]:
				r.Counts[column] = parseNumber(cell)
			default:
				r.Attrs[column] = cell
			}
		}
		r.Metric = accessor(r.Counts)
		records = append(records, r)
	}

	if unparsedDates > 0 {
		logging.Warn().Str("dataset", kind.String()).Int("rows", unparsedDates).Msg("rows with unparseable dates")
	}
	return records
}

// ParseDate parses the date formats seen in the exports
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// numericColumns returns the columns outside textColumns whose non-blank cells all parse as numbers
func numericColumns(header []string, rows [][]string) []string {
	var out []string
	for i, column := range header {
		if textColumns[column] {
			continue
		}
		numeric := true
		for _, row := range rows {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if isBlank(cell) {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric {
			out = append(out, column)
		}
	}
	sort.Strings(out)
	return out
}

func isBlank(cell string) bool {
	switch strings.ToLower(cell) {
	case "", "nan", "null", "na":
		return true
	}
	return false
}

func parseNumber(cell string) float64 {
	if isBlank(cell) {
		return 0
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0
	}
	return v
}

func padPincode(cell string) string {
	cell = strings.TrimSuffix(cell, ".0")
	if cell == "" {
		return cell
	}
	for len(cell) < 6 {
		cell = "0" + cell
	}
	return cell
}
