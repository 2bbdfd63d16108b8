package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 相似度缓存
	SimilarityCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_cache_hits_total",
			Help: "Total number of similarity cache hits",
		},
	)

	SimilarityCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "similarity_cache_misses_total",
			Help: "Total number of similarity cache misses",
		},
	)

	SimilarityCandidatesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "similarity_candidates_skipped_total",
			Help: "Candidates excluded from ranking",
		},
		[]string{"reason"}, // "no_embedding", "dimension", "nan"
	)

	SimilarityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "similarity_compute_duration_seconds",
			Help:    "Duration of uncached similarity computations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// 向量生成
	EmbeddingsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "embeddings_generated_total",
			Help: "Total number of movie embeddings generated and stored",
		},
	)

	EmbeddingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_failures_total",
			Help: "Embedding pipeline failures by stage",
		},
		[]string{"stage"}, // "embed", "store", "index"
	)

	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embedding_inference_duration_seconds",
			Help:    "Duration of a single model inference",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// 向量模型熔断
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejected_total",
			Help: "Requests rejected while the circuit breaker was open",
		},
		[]string{"name"},
	)

	IndexConvergenceFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_index_insert_fallbacks_total",
			Help: "Embedding updates that fell back to inserting a missing document",
		},
	)

	// 数据导入
	ImportRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_records_total",
			Help: "Dataset records processed by the import pipeline",
		},
		[]string{"outcome"}, // "loaded", "skipped", "upserted", "indexed", "index_failed"
	)
)
