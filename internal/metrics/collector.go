package metrics

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsProvider is an interface for components that provide metrics.
type MetricsProvider interface {
	// CollectMetrics refreshes the component's gauges.
	CollectMetrics(ctx context.Context) error
}

// Collector periodically refreshes gauges owned by registered components.
type Collector struct {
	mu        sync.RWMutex
	providers map[string]MetricsProvider
	interval  time.Duration
	version   string
	stopCh    chan struct{}
	running   bool
}

// NewCollector creates a new metrics collector reporting the given version.
func NewCollector(interval time.Duration, version string) *Collector {
	return &Collector{
		providers: make(map[string]MetricsProvider),
		interval:  interval,
		version:   version,
		stopCh:    make(chan struct{}),
	}
}

// Register adds a metrics provider to the collector.
func (c *Collector) Register(name string, provider MetricsProvider) {
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
func (c *Collector) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	StartTime.Set(float64(time.Now().Unix()))
	BuildInfo.WithLabelValues(c.version, runtime.Version()).Set(1)

	c.collect(ctx)

	go c.run(ctx, stopCh)

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

func (c *Collector) run(ctx context.Context, stopCh chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// collect gathers metrics from all registered providers.
func (c *Collector) collect(ctx context.Context) {
	c.mu.RLock()
	providers := make(map[string]MetricsProvider, len(c.providers))
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

// RecordCapture records the outcome of one capture attempt.
func RecordCapture(result string) {
	CapturesTotal.WithLabelValues(result).Inc()
}

// RecordArchive records an archive transfer.
func RecordArchive(mode string, duration time.Duration) {
	ArchiveDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCycle records the start of a capture cycle.
func RecordCycle(reason string) {
	CaptureCyclesTotal.WithLabelValues(reason).Inc()
}

// RecordTriggerError records a failed export trigger.
func RecordTriggerError(kind string) {
	TriggerErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordHostSignal records a host lifecycle signal.
func RecordHostSignal(signalType string) {
	HostSignalsTotal.WithLabelValues(signalType).Inc()
}

// RecordWatcherEvent records a filesystem event.
func RecordWatcherEvent(eventType string) {
	WatcherEventsTotal.WithLabelValues(eventType).Inc()
}

// UpdateSequenceMetrics updates the sequence namer gauge.
func UpdateSequenceMetrics(next int) {
	SequenceNextIndex.Set(float64(next))
}

// UpdateArchiveMetrics updates the archive directory gauge.
func UpdateArchiveMetrics(frames int) {
	ArchiveFramesTotal.Set(float64(frames))
}
