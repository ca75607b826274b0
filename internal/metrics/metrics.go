// Package metrics exposes Prometheus collectors for ingestion, diff tracking,
// batched queries and the HTTP API. Collectors register with the default
// registry; the HTTP adapter serves them on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by several collectors.
const (
	OutcomeInserted      = "inserted"
	OutcomeAlreadyExists = "already_exists"
	OutcomeMalformed     = "malformed"
	OutcomeError         = "error"
)

var (
	// IngestEventsTotal counts ingested events by source type and outcome.
	IngestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_ingest_events_total",
		Help: "Events handed to the ingester, by source type and outcome",
	}, []string{"source_type", "outcome"})

	// UnresolvedActorsTotal counts events whose actor had no binding.
	UnresolvedActorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_unresolved_actor_events_total",
		Help: "Ingested events attributed to the unknown person",
	}, []string{"source_type"})

	// IngestRunDuration measures whole ingestion runs.
	IngestRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pulse_ingest_run_duration_seconds",
		Help:    "Duration of ingestion runs",
		Buckets: prometheus.DefBuckets,
	})

	// DiffObservationsTotal counts tracker observations by outcome.
	DiffObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_diff_observations_total",
		Help: "Document observations, by outcome",
	}, []string{"outcome"})

	// BatchDispatchTotal counts batched aggregate queries by loader kind.
	BatchDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_batch_dispatch_total",
		Help: "Batched aggregate queries issued, by loader kind and result",
	}, []string{"kind", "result"})

	// BatchKeys observes how many keys each batch carried.
	BatchKeys = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_batch_keys",
		Help:    "Keys collapsed into one batched query",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"kind"})

	// BatchDuration measures batched query latency.
	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_batch_duration_seconds",
		Help:    "Latency of batched aggregate queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_http_requests_total",
		Help: "HTTP API requests, by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration measures API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_http_request_duration_seconds",
		Help:    "HTTP API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordIngest records one ingester call.
func RecordIngest(sourceType, outcome string, unresolved bool) {
	IngestEventsTotal.WithLabelValues(sourceType, outcome).Inc()
	if unresolved {
		UnresolvedActorsTotal.WithLabelValues(sourceType).Inc()
	}
}

// RecordIngestRun records the duration of a run.
func RecordIngestRun(duration time.Duration) {
	IngestRunDuration.Observe(duration.Seconds())
}

// RecordObservation records one tracker observation.
func RecordObservation(outcome string) {
	DiffObservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordBatch records one dispatched batch. Its signature matches
// batch.DispatchHook.
func RecordBatch(kind string, keys int, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = OutcomeError
	}
	BatchDispatchTotal.WithLabelValues(kind, result).Inc()
	BatchKeys.WithLabelValues(kind).Observe(float64(keys))
	BatchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// RecordHTTPRequest records one API request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
