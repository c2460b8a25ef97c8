// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline, retrieval and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentsProcessed counts documents by terminal status (ready, error)
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexvault",
		Subsystem: "ingest",
		Name:      "documents_processed_total",
		Help:      "Documents that reached a terminal ingestion status",
	}, []string{"status"})

	// ChunksCreated counts chunks committed to storage
	ChunksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lexvault",
		Subsystem: "ingest",
		Name:      "chunks_created_total",
		Help:      "Chunks embedded and stored",
	})

	// EmbeddingsGenerated counts embedding calls by outcome
	EmbeddingsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexvault",
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Embedding requests by outcome",
	}, []string{"outcome"})

	// IngestDuration observes end to end document processing time
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lexvault",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Time to process a document from upload to terminal status",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// SearchDuration observes similarity search latency
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lexvault",
		Subsystem: "retrieval",
		Name:      "search_duration_seconds",
		Help:      "Similarity search latency",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimitHits counts requests rejected by the rate limiter
	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexvault",
		Subsystem: "http",
		Name:      "rate_limit_hits_total",
		Help:      "Requests rejected by the per user rate limiter",
	}, []string{"scope"})

	// StuckDocumentsFailed counts documents the janitor moved to error
	StuckDocumentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lexvault",
		Subsystem: "janitor",
		Name:      "stuck_documents_failed_total",
		Help:      "Documents stuck in processing past the deadline and failed by the janitor",
	})
)
