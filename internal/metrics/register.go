package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers all recall metrics with the default registry. Must be called from main.
func Register() {
	registerOnce.Do(func() {
		MustRegister(prometheus.DefaultRegisterer)
	})
}

// MustRegister registers all recall metrics with r.
func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		EmbeddingErrorsTotal,
		EmbeddingRetriesTotal,
		EmbeddingCacheTotal,
		StrategyDuration,
		StrategyOutcomesTotal,
		PoolRelaxedTotal,
		FusedResults,
		IndexDuration,
		IndexedChunks,
		IndexFailuresTotal,
		GenerationRequestsTotal,
		GenerationRequestDuration,
		AnswersTotal,
	)
}
