package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"uidai-insights/internal/dataset"
	"uidai-insights/internal/logging"
	"uidai-insights/internal/metrics"
	"uidai-insights/internal/models"
)

// insertBatchSize bounds the rows sent per INSERT statement
const insertBatchSize = 500

// DB represents the database connection
type DB struct {
	conn *sqlx.DB
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(dsn string) (*DB, error) {
	conn, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			dataset VARCHAR(32) NOT NULL,
			record_date DATE NULL,
			state VARCHAR(255) NOT NULL DEFAULT '',
			district VARCHAR(255) NOT NULL DEFAULT '',
			pincode VARCHAR(16) NOT NULL DEFAULT '',
			metric DOUBLE NOT NULL,
			attrs JSON NOT NULL,
			counts JSON NOT NULL,
			INDEX idx_records_dataset_date (dataset, record_date),
			INDEX idx_records_dataset_state (dataset, state)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// recordRow is the stored form of a models.Record
type recordRow struct {
	Dataset    string       `db:"dataset"`
	RecordDate sql.NullTime `db:"record_date"`
	State      string       `db:"state"`
	District   string       `db:"district"`
	Pincode    string       `db:"pincode"`
	Metric     float64      `db:"metric"`
	Attrs      []byte       `db:"attrs"`
	Counts     []byte       `db:"counts"`
}

func toRow(kind dataset.Kind, r models.Record) (recordRow, error) {
	attrs, err := json.Marshal(nonNilAttrs(r.Attrs))
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to marshal attrs: %w", err)
	}
	counts, err := json.Marshal(nonNilCounts(r.Counts))
	if err != nil {
		return recordRow{}, fmt.Errorf("failed to marshal counts: %w", err)
	}

	return recordRow{
		Dataset:    kind.String(),
		RecordDate: sql.NullTime{Time: r.Date, Valid: r.HasDate()},
		State:      r.Text("state"),
		District:   r.Text("district"),
		Pincode:    r.Text("pincode"),
		Metric:     r.Metric,
		Attrs:      attrs,
		Counts:     counts,
	}, nil
}

func (row recordRow) record() (models.Record, error) {
	r := models.Record{Metric: row.Metric}
	if row.RecordDate.Valid {
		d := row.RecordDate.Time
		r.Date = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	if err := json.Unmarshal(row.Attrs, &r.Attrs); err != nil {
		return r, fmt.Errorf("failed to unmarshal attrs: %w", err)
	}
	if err := json.Unmarshal(row.Counts, &r.Counts); err != nil {
		return r, fmt.Errorf("failed to unmarshal counts: %w", err)
	}
	return r, nil
}

func nonNilAttrs(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilCounts(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func (db *DB) updatePoolStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// StoreRecords replaces every stored record of kind with records in one transaction
func (db *DB) StoreRecords(ctx context.Context, kind dataset.Kind, records []models.Record) error {
	defer db.updatePoolStats()

	rows := make([]recordRow, 0, len(records))
	for i, r := range records {
		row, err := toRow(kind, r)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	// Begin transaction for batch insert
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	queryStart := time.Now()
	_, err = tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, kind.String())
	metrics.RecordDBQuery("DELETE", "records", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to clear %s records: %w", kind, err)
	}

	const insert = `INSERT INTO records (dataset, record_date, state, district, pincode, metric, attrs, counts)
		VALUES (:dataset, :record_date, :state, :district, :pincode, :metric, :attrs, :counts)`

	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		queryStart := time.Now()
		_, err := tx.NamedExecContext(ctx, insert, rows[start:end])
		metrics.RecordDBQuery("INSERT", "records", time.Since(queryStart), err)
		if err != nil {
			return fmt.Errorf("failed to insert %s records %d-%d: %w", kind, start, end, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info().Str("dataset", kind.String()).Int("records", len(rows)).Msg("records stored")
	return nil
}

// LoadRecords returns every stored record of kind
func (db *DB) LoadRecords(ctx context.Context, kind dataset.Kind) ([]models.Record, error) {
	defer db.updatePoolStats()

	var rows []recordRow
	queryStart := time.Now()
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT dataset, record_date, state, district, pincode, metric, attrs, counts
		FROM records WHERE dataset = ? ORDER BY id`, kind.String())
	metrics.RecordDBQuery("SELECT", "records", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", kind, err)
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		r, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", kind, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// DailyTotals sums the metric of kind per date, ascending. Undated records are left out.
func (db *DB) DailyTotals(ctx context.Context, kind dataset.Kind) (models.Series, error) {
	var rows []struct {
		Date  time.Time `db:"record_date"`
		Total float64   `db:"total"`
	}

	queryStart := time.Now()
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT record_date, SUM(metric) AS total FROM records
		WHERE dataset = ? AND record_date IS NOT NULL
		GROUP BY record_date ORDER BY record_date`, kind.String())
	metrics.RecordDBQuery("SELECT", "records", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s daily totals: %w", kind, err)
	}

	series := make(models.Series, len(rows))
	for i, row := range rows {
		d := row.Date
		series[i] = models.Point{Date: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), Value: row.Total}
	}
	return series, nil
}

// DatasetCounts returns the number of stored records per dataset name
func (db *DB) DatasetCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Dataset string `db:"dataset"`
		Count   int    `db:"n"`
	}

	queryStart := time.Now()
	err := db.conn.SelectContext(ctx, &rows, `SELECT dataset, COUNT(*) AS n FROM records GROUP BY dataset`)
	metrics.RecordDBQuery("SELECT", "records", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Dataset] = row.Count
	}
	return counts, nil
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
