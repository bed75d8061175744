package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and indexing Prometheus metrics.
var (
	StrategyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "retrieval_strategy_duration_seconds",
			Help:      "Duration of a single retrieval strategy",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	StrategyOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "retrieval_strategy_outcomes_total",
			Help:      "Retrieval strategy outcomes",
		},
		[]string{"strategy", "outcome"}, // ok / failed / timeout / skipped
	)

	PoolRelaxedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "retrieval_pool_relaxed_total",
			Help:      "Queries re-run without the temporal constraint after an empty pool",
		},
	)

	FusedResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "retrieval_fused_results",
			Help:      "Number of fused results per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	IndexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "index_document_duration_seconds",
			Help:      "Time to embed and persist one document",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	IndexedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recall",
			Name:      "index_document_chunks",
			Help:      "Chunks per indexed document",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	IndexFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recall",
			Name:      "index_failures_total",
			Help:      "Documents that failed to index",
		},
		[]string{"reason"}, // embedding / write / lock
	)
)
