// Package metrics holds the Prometheus collectors of the dashboard backend
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transfer_dashboard"

// Query engine
var (
	// QueriesTotal counts engine runs by metric set and outcome (ok, empty, cached, input_error, unavailable)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Aggregation queries by metric set and outcome",
		},
		[]string{"set", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Aggregation query latency including upstream reads",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"set"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Memoized results served from the cache",
		},
		[]string{"set"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Queries computed because no memoized result existed",
		},
		[]string{"set"},
	)

	// DegradedFields counts numeric fields that were present but unparseable
	DegradedFields = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_fields_total",
			Help:      "Raw numeric fields degraded to absent",
		},
		[]string{"field"},
	)

	DataUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_unavailable_total",
			Help:      "Upstream reads that failed and were served as empty results",
		},
		[]string{"feed"},
	)
)

// Live monitor
var (
	LiveEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_total",
			Help:      "Raw events consumed from the stream by feed and result (accepted, filtered, duplicate, invalid)",
		},
		[]string{"feed", "result"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_sent_total",
			Help:      "Messages pushed to websocket clients",
		},
		[]string{"type"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and status",
		},
		[]string{"job", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordQuery records one engine run
func RecordQuery(set, outcome string, durationSeconds float64) {
	QueriesTotal.WithLabelValues(set, outcome).Inc()
	QueryDuration.WithLabelValues(set).Observe(durationSeconds)
}

// RecordCache records a cache lookup
func RecordCache(set string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(set).Inc()
		return
	}
	CacheMisses.WithLabelValues(set).Inc()
}

// RecordDegraded adds degraded field counts
func RecordDegraded(counts map[string]int) {
	for field, n := range counts {
		DegradedFields.WithLabelValues(field).Add(float64(n))
	}
}

// RecordWSConnection tracks the websocket client gauge
func RecordWSConnection(connected bool) {
	if connected {
		WSClients.Inc()
		return
	}
	WSClients.Dec()
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
