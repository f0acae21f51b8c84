package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider is a component that refreshes gauge metrics on demand.
type Provider interface {
	// CollectMetrics refreshes the component's metrics.
	CollectMetrics(ctx context.Context) error
}

// Collector manages periodic metric collection from registered components.
type Collector struct {
	mu        sync.RWMutex
	providers map[string]Provider
	interval  time.Duration
	stopCh    chan struct{}
	running   bool
}

// NewCollector creates a new metrics collector.
func NewCollector(interval time.Duration) *Collector {
	return &Collector{
		providers: make(map[string]Provider),
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Register adds a metrics provider to the collector.
func (c *Collector) Register(name string, provider Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = provider
}

// Unregister removes a metrics provider from the collector.
func (c *Collector) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.providers, name)
}

// Start begins periodic metric collection.
func (c *Collector) Start(ctx context.Context, version string) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.mu.Unlock()

	ServiceStartTime.Set(float64(time.Now().Unix()))
	ServiceInfo.WithLabelValues(version, runtime.Version()).Set(1)

	c.collect(ctx)

	go c.run(ctx)

	return nil
}

// Stop halts periodic metric collection.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}

	close(c.stopCh)
	c.running = false
}

func (c *Collector) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// collect gathers metrics from all registered providers.
func (c *Collector) collect(ctx context.Context) {
	c.mu.RLock()
	providers := make(map[string]Provider, len(c.providers))
	for k, v := range c.providers {
		providers[k] = v
	}
	c.mu.RUnlock()

	for name, provider := range providers {
		if err := provider.CollectMetrics(ctx); err != nil {
			ComponentStatus.WithLabelValues(name).Set(0)
		} else {
			ComponentStatus.WithLabelValues(name).Set(1)
		}
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a handler for a specific registry.
func HandlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordFileOutcome records a file reaching a terminal status.
func RecordFileOutcome(status, sourceType string, duration time.Duration) {
	FilesProcessedTotal.WithLabelValues(status).Inc()
	ProcessingDuration.WithLabelValues(sourceType).Observe(duration.Seconds())
}

// RecordChunks records stored and deduplicated chunk counts for one file.
func RecordChunks(stored, deduped int) {
	ChunksStoredTotal.Add(float64(stored))
	ChunksDedupedTotal.Add(float64(deduped))
}

// RecordClassifierRequest records one classifier call.
func RecordClassifierRequest(outcome string, duration time.Duration) {
	ClassifierRequestsTotal.WithLabelValues(outcome).Inc()
	ClassifierDuration.Observe(duration.Seconds())
}

// RecordCacheAccess records a cache access.
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordWatcherEvent records a filesystem event.
func RecordWatcherEvent(eventType string) {
	WatcherEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordFeedPoll records one feed poll outcome.
func RecordFeedPoll(sourceType string, entries int, err error) {
	if err != nil {
		FeedErrorsTotal.Inc()
		return
	}
	FeedEntriesTotal.WithLabelValues(sourceType).Add(float64(entries))
}

// UpdateQueueDepth updates the pipeline queue gauge.
func UpdateQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}
