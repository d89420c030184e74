package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	// DBQueriesTotal tracks the total number of database queries
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_queries_total",
			Help: "Total number of database queries executed",
		},
		[]string{"query_type", "table", "status"},
	)

	// DBQueryDuration tracks the duration of database queries
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of established connections both in use and idle",
		},
	)

	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle connections",
		},
	)
)

// Analytics metrics
var (
	// ForecastsTotal counts forecasts by the path taken (model_fit or fallback)
	ForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uidai_forecasts_total",
			Help: "Total number of forecasts by path",
		},
		[]string{"dataset", "path"},
	)

	// AnomaliesFlagged holds the anomaly count of the latest trend computed per dataset
	AnomaliesFlagged = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "uidai_anomalies_flagged",
			Help: "Anomalies flagged in the latest trend per dataset",
		},
		[]string{"dataset"},
	)

	AnalyticsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uidai_analytics_duration_seconds",
			Help:    "Duration of dashboard computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset", "operation"},
	)

	// CacheRequestsTotal counts memo lookups by result (hit or miss)
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uidai_cache_requests_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"namespace", "result"},
	)

	AppInfo = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uidai_app_info",
			Help: "Application information (always 1)",
		},
	)

	AppStartTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uidai_app_start_time_seconds",
			Help: "Unix timestamp of when the application started",
		},
	)
)

func init() {
	AppInfo.Set(1)
	AppStartTime.SetToCurrentTime()
}

// RecordDBQuery records a database query execution
func RecordDBQuery(queryType, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(queryType, table, status).Inc()
	DBQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(open, inUse, idle int) {
	DBConnectionsOpen.Set(float64(open))
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}

// RecordForecast counts a forecast by its path
func RecordForecast(dataset, path string) {
	ForecastsTotal.WithLabelValues(dataset, path).Inc()
}

// RecordAnalytics observes how long a dashboard operation took
func RecordAnalytics(dataset, operation string, duration time.Duration) {
	AnalyticsDuration.WithLabelValues(dataset, operation).Observe(duration.Seconds())
}

// RecordCacheLookup counts a memo hit or miss
func RecordCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(namespace, result).Inc()
}
