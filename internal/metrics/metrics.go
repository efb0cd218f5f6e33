// Package metrics defines the Prometheus collectors of the memorag service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memorag",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by outcome; shared means the call joined an in-flight miss",
		},
		[]string{"result"}, // "hit" / "miss" / "shared"
	)
)

// Retrieval and generation pipeline metrics.
var (
	VectorSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memorag",
			Name:      "vector_search_duration_seconds",
			Help:      "Similarity query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"purpose"}, // "search" / "chat"
	)

	RerankBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "rerank_batches_total",
			Help:      "Total rerank batch calls",
		},
		[]string{"backend", "status"},
	)

	RerankBatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memorag",
			Name:      "rerank_batch_duration_seconds",
			Help:      "Rerank batch call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	QueryRewritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "query_rewrites_total",
			Help:      "Query rewrite outcomes",
		},
		[]string{"result"}, // "rewritten" / "skipped" / "fallback"
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "llm_requests_total",
			Help:      "Total chat model requests",
		},
		[]string{"provider", "mode", "status"}, // mode: "invoke" / "stream"
	)

	LLMStreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memorag",
			Name:      "llm_stream_chunks_total",
			Help:      "Total streamed chunks received from chat models",
		},
		[]string{"provider"},
	)
)

var registerOnce sync.Once

// Register adds the embedding and pipeline collectors to the default registry.
// Safe to call more than once; tests call it from several packages.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			VectorSearchDuration,
			RerankBatchesTotal,
			RerankBatchDuration,
			QueryRewritesTotal,
			LLMRequestsTotal,
			LLMStreamChunksTotal,
		)
	})
}
