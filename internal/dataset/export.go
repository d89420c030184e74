package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"uidai-insights/internal/models"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ParseFormat validates an export format; empty means csv
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ExportFileName is the download name for a kind, e.g. uidai_enrolment.csv
func ExportFileName(kind Kind, format string) string {
	return fmt.Sprintf("uidai_%s.%s", kind, format)
}

// ContentType returns the MIME type of an export format
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Write writes records in the given format
func Write(w io.Writer, kind Kind, records []models.Record, format string) error {
	if format == FormatXLSX {
		return WriteXLSX(w, kind, records)
	}
	return WriteCSV(w, kind, records)
}

// WriteCSV writes records with the date, text columns, counts and the metric
func WriteCSV(w io.Writer, kind Kind, records []models.Record) error {
	header, rows, _ := exportRows(kind, records)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook
func WriteXLSX(w io.Writer, kind Kind, records []models.Record) error {
	header, rows, numeric := exportRows(kind, records)

	f := excelize.NewFile()
	defer f.Close()

	sheet := kind.String()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", toCells(header, nil)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, toCells(row, func(col int) bool { return col >= numeric })); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func toCells(row []string, isNumber func(col int) bool) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		if isNumber != nil && isNumber(i) {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cells[i] = f
				continue
			}
		}
		cells[i] = v
	}
	return cells
}

func exportColumns(records []models.Record) (attrs, counts []string) {
	attrSet := make(map[string]bool)
	countSet := make(map[string]bool)
	for _, r := range records {
		for k := range r.Attrs {
			attrSet[k] = true
		}
		for k := range r.Counts {
			countSet[k] = true
		}
	}

	for _, c := range []string{"state", "district", "pincode"} {
		if attrSet[c] {
			attrs = append(attrs, c)
			delete(attrSet, c)
		}
	}
	var rest []string
	for k := range attrSet {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	attrs = append(attrs, rest...)

	for k := range countSet {
		counts = append(counts, k)
	}
	sort.Strings(counts)
	return attrs, counts
}

// exportRows returns the header, the rows and the index of the first numeric column
func exportRows(kind Kind, records []models.Record) ([]string, [][]string, int) {
	attrs, counts := exportColumns(records)

	header := append([]string{"date"}, attrs...)
	header = append(header, counts...)
	header = append(header, kind.MetricName())

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, 0, len(header))
		if r.HasDate() {
			row = append(row, r.Date.Format("2006-01-02"))
		} else {
			row = append(row, "")
		}
		for _, c := range attrs {
			row = append(row, r.Text(c))
		}
		for _, c := range counts {
			row = append(row, formatNumber(r.Counts[c]))
		}
		row = append(row, formatNumber(r.Metric))
		rows = append(rows, row)
	}
	return header, rows, 1 + len(attrs)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
