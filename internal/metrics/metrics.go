// Package metrics exposes Prometheus instrumentation for dataset loading,
// dashboard queries, forecast jobs and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Dataset Metrics
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_dataset_rows",
			Help: "Number of normalized transactions in the loaded dataset",
		},
	)

	DatasetRowsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_dataset_rows_dropped",
			Help: "Number of source rows dropped for an unparseable timestamp",
		},
	)

	DatasetFieldsCoerced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_dataset_fields_coerced",
			Help: "Number of unparseable field values coerced to null",
		},
	)

	DatasetLoadedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_dataset_loaded_timestamp_seconds",
			Help: "Unix time the dataset was loaded",
		},
	)

	// Query Metrics
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demand_query_duration_seconds",
			Help:    "Duration of filter and aggregation queries in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	QueryWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "demand_query_warnings_total",
			Help: "Total number of ignored filter bounds",
		},
	)

	// Forecast Metrics
	ForecastJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demand_forecast_jobs_total",
			Help: "Total number of forecast jobs by terminal status",
		},
		[]string{"status"},
	)

	ForecastJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "demand_forecast_job_duration_seconds",
			Help:    "Forecast job duration in seconds, including the Monte Carlo interval",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ForecastDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "demand_forecast_degraded_total",
			Help: "Total number of fits that fell back to a flat forecast",
		},
	)

	ForecastQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_forecast_queue_depth",
			Help: "Forecast jobs waiting for a worker",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demand_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "demand_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "demand_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demand_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordDatasetLoad publishes the load summary of a dataset.
func RecordDatasetLoad(rows, dropped, coerced int, loadedAt time.Time) {
	DatasetRows.Set(float64(rows))
	DatasetRowsDropped.Set(float64(dropped))
	DatasetFieldsCoerced.Set(float64(coerced))
	DatasetLoadedAt.Set(float64(loadedAt.Unix()))
}

// RecordQuery records a query duration and the number of warnings it produced.
func RecordQuery(duration time.Duration, warnings int) {
	QueryDuration.Observe(duration.Seconds())
	if warnings > 0 {
		QueryWarnings.Add(float64(warnings))
	}
}

// RecordForecastJob records a finished forecast job.
func RecordForecastJob(status string, duration time.Duration) {
	ForecastJobsTotal.WithLabelValues(status).Inc()
	ForecastJobDuration.Observe(duration.Seconds())
}

// RecordForecastDegraded counts a fit that fell back to a flat forecast.
func RecordForecastDegraded() {
	ForecastDegraded.Inc()
}

// SetQueueDepth publishes the number of queued forecast jobs.
func SetQueueDepth(depth int) {
	ForecastQueueDepth.Set(float64(depth))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit counts a rate limited request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
