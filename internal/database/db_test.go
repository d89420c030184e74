package database

import (
	"context"
	"os"
	"testing"
	"time"

	"uidai-insights/internal/dataset"
	"uidai-insights/internal/models"
)

func TestRecordRowRoundTrip(t *testing.T) {
	in := models.Record{
		Date:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Attrs:  map[string]string{"state": "Goa", "district": "North Goa", "pincode": "403001"},
		Counts: map[string]float64{"age_0_5": 2, "age_5_17": 3, "age_18_greater": 1},
		Metric: 6,
	}

	row, err := toRow(dataset.Enrolment, in)
	if err != nil {
		t.Fatalf("toRow() error = %v", err)
	}
	if row.Dataset != "enrolment" || row.State != "Goa" || row.Pincode != "403001" {
		t.Errorf("toRow() = %+v", row)
	}
	if !row.RecordDate.Valid {
		t.Error("RecordDate.Valid = false, want true")
	}

	out, err := row.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if !out.Date.Equal(in.Date) || out.Metric != in.Metric || out.Text("district") != "North Goa" || out.Counts["age_5_17"] != 3 {
		t.Errorf("record() = %+v, want %+v", out, in)
	}
}

func TestRecordRow_UndatedAndEmpty(t *testing.T) {
	row, err := toRow(dataset.Biometric, models.Record{Metric: 4})
	if err != nil {
		t.Fatalf("toRow() error = %v", err)
	}
	if row.RecordDate.Valid {
		t.Error("RecordDate.Valid = true for undated record")
	}
	if string(row.Attrs) != "{}" || string(row.Counts) != "{}" {
		t.Errorf("attrs/counts = %s/%s, want {}", row.Attrs, row.Counts)
	}

	out, err := row.record()
	if err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if out.HasDate() {
		t.Errorf("record() date = %v, want zero", out.Date)
	}
}

// TestDB_Integration runs against a real MySQL when TEST_DATABASE_DSN is set
func TestDB_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := NewDB(dsn)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }
	records := []models.Record{
		{Date: day(1), Attrs: map[string]string{"state": "Goa"}, Metric: 2},
		{Date: day(1), Attrs: map[string]string{"state": "Kerala"}, Metric: 3},
		{Date: day(2), Attrs: map[string]string{"state": "Goa"}, Metric: 5},
		{Attrs: map[string]string{"state": "Goa"}, Metric: 100},
	}

	if err := db.StoreRecords(ctx, dataset.Demographic, records); err != nil {
		t.Fatalf("StoreRecords() error = %v", err)
	}

	loaded, err := db.LoadRecords(ctx, dataset.Demographic)
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(loaded) != len(records) {
		t.Errorf("len(LoadRecords()) = %d, want %d", len(loaded), len(records))
	}

	series, err := db.DailyTotals(ctx, dataset.Demographic)
	if err != nil {
		t.Fatalf("DailyTotals() error = %v", err)
	}
	if len(series) != 2 || series[0].Value != 5 || series[1].Value != 5 {
		t.Errorf("DailyTotals() = %+v", series)
	}

	counts, err := db.DatasetCounts(ctx)
	if err != nil {
		t.Fatalf("DatasetCounts() error = %v", err)
	}
	if counts["demographic"] != len(records) {
		t.Errorf("DatasetCounts()[demographic] = %d, want %d", counts["demographic"], len(records))
	}
}
