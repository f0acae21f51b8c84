// Package metrics provides Prometheus metrics for the ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "maingest"
)

// File metrics track ingestion outcomes.
var (
	// FilesProcessedTotal counts files per terminal status.
	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_processed_total",
		Help:      "Total number of files reaching a terminal status",
	}, []string{"status"})

	// FilesInProgress is the number of files currently being processed.
	FilesInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "files_in_progress",
		Help:      "Number of files currently being processed",
	})

	// ProcessingDuration is a histogram of per-file pipeline duration in seconds.
	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "processing_duration_seconds",
		Help:      "Duration of per-file ingestion in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~409s
	}, []string{"source_type"})
)

// Chunk metrics track chunking and dedup outcomes.
var (
	// ChunksStoredTotal is the total number of chunks written to the store.
	ChunksStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_stored_total",
		Help:      "Total number of chunks written to the relational store",
	})

	// ChunksDedupedTotal is the total number of chunks dropped as duplicates.
	ChunksDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_deduped_total",
		Help:      "Total number of chunks dropped by deduplication",
	})

	// VisualChunksTotal is the total number of chunks flagged as visual content.
	VisualChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "visual_chunks_total",
		Help:      "Total number of chunks intercepted as visual content",
	})
)

// Queue metrics track the pipeline worker queue.
var (
	// QueueDepth is the number of files waiting for a worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of files waiting in the pipeline queue",
	})
)

// Classifier metrics track LLM gateway usage.
var (
	// ClassifierRequestsTotal counts classification calls by outcome.
	ClassifierRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classifier_requests_total",
		Help:      "Total number of classifier requests",
	}, []string{"outcome"})

	// ClassifierDuration is a histogram of classifier call duration in seconds.
	ClassifierDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "classifier_duration_seconds",
		Help:      "Duration of classifier requests in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~102s
	})
)

// Vector metrics track qdrant writes.
var (
	// VectorsUpsertedTotal is the total number of points upserted.
	VectorsUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vectors_upserted_total",
		Help:      "Total number of vector points upserted",
	})

	// VectorErrorsTotal is the total number of vector store errors.
	VectorErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vector_errors_total",
		Help:      "Total number of vector store errors",
	})
)

// Cache metrics track search cache operations.
var (
	// CacheHitsTotal is the total number of cache hits by cache type.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	}, []string{"cache"})

	// CacheMissesTotal is the total number of cache misses by cache type.
	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	}, []string{"cache"})
)

// Watcher and feed metrics track content sources.
var (
	// WatcherEventsTotal is the total number of filesystem events by type.
	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_events_total",
		Help:      "Total number of filesystem events",
	}, []string{"type"})

	// FeedEntriesTotal counts feed entries fetched per source type.
	FeedEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_entries_total",
		Help:      "Total number of feed entries fetched",
	}, []string{"source_type"})

	// FeedErrorsTotal counts failed feed polls.
	FeedErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_errors_total",
		Help:      "Total number of failed feed polls",
	})
)

// Service metrics track process health.
var (
	// ServiceInfo provides version and build information.
	ServiceInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_info",
		Help:      "Service version and build information",
	}, []string{"version", "go_version"})

	// ServiceStartTime is the unix timestamp when the service started.
	ServiceStartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_start_time_seconds",
		Help:      "Unix timestamp when the service started",
	})

	// ComponentStatus tracks the health status of service components.
	ComponentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_status",
		Help:      "Health status of service components (1=healthy, 0=unhealthy)",
	}, []string{"component"})
)
