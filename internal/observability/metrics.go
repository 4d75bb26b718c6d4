package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recommender"

var (
	// IngestOutcomesTotal считает исходы по записям: operation (insert, update, delete), result (ok или код ошибки).
	IngestOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_outcomes_total",
			Help:      "Per-record ingestion outcomes by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// ExtractionUnitsTotal считает единицы архива по итоговому состоянию.
	ExtractionUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_units_total",
			Help:      "Archive extraction units by final state.",
		},
		[]string{"state"},
	)

	ExtractionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_run_duration_seconds",
			Help:      "Duration of archive processing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Recommendation latency by mode (id, query).",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	// ExternalCallFailuresTotal считает отказы внешних зависимостей: dependency (vectorizer, extractor, index, ...).
	ExternalCallFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_call_failures_total",
			Help:      "Failed calls to external dependencies.",
		},
		[]string{"dependency"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)
)
