// Package metrics provides Prometheus metrics for the timelapse process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "timelapse"
)

// Capture result labels.
const (
	ResultArchived  = "archived"
	ResultSkipped   = "skipped"
	ResultMissing   = "missing"
	ResultFailed    = "failed"
	ResultDuplicate = "duplicate"
)

// Capture metrics track the capture-then-archive lifecycle.
var (
	// CapturesTotal is the total number of capture outcomes by result.
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captures_total",
		Help:      "Total number of capture outcomes",
	}, []string{"result"})

	// CaptureCyclesTotal is the total number of capture cycles started.
	CaptureCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_cycles_total",
		Help:      "Total number of capture cycles started",
	}, []string{"reason"})

	// ArchiveDuration is a histogram of archive transfer duration in seconds.
	ArchiveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "archive_duration_seconds",
		Help:      "Duration of archive transfers in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"mode"})

	// TriggerErrorsTotal is the total number of failed export triggers.
	TriggerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trigger_errors_total",
		Help:      "Total number of failed export triggers",
	}, []string{"kind"})

	// SequenceNextIndex is the index the active sequence namer will assign next.
	SequenceNextIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sequence_next_index",
		Help:      "Next index the active sequence namer will assign",
	})

	// ArchiveFramesTotal is the number of frames in the active archive directory.
	ArchiveFramesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "archive_frames_total",
		Help:      "Number of frames in the active archive directory",
	})
)

// Host metrics track the lifecycle signal stream.
var (
	// HostSignalsTotal is the total number of host signals by type.
	HostSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "host_signals_total",
		Help:      "Total number of host lifecycle signals received",
	}, []string{"type"})

	// HostMalformedLinesTotal is the total number of unparseable signal lines.
	HostMalformedLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "host_malformed_lines_total",
		Help:      "Total number of malformed host signal lines",
	})
)

// Watcher metrics track filesystem monitoring.
var (
	// WatcherEventsTotal is the total number of filesystem events.
	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_events_total",
		Help:      "Total number of filesystem events",
	}, []string{"type"})

	// WatcherErrorsTotal is the total number of errors reported by fsnotify.
	WatcherErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_errors_total",
		Help:      "Total number of filesystem watcher errors",
	})
)

// Event bus metrics.
var (
	// EventsDroppedTotal is the total number of events dropped on full subscriber buffers.
	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Total number of events dropped by the event bus",
	}, []string{"type"})
)

// Process metrics track process health and uptime.
var (
	// BuildInfo provides version and build information.
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Version and build information",
	}, []string{"version", "go_version"})

	// StartTime is the unix timestamp when the process started.
	StartTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix timestamp when the process started",
	})

	// ComponentStatus tracks the health status of components.
	ComponentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "component_status",
		Help:      "Health status of components (1=healthy, 0=unhealthy)",
	}, []string{"component"})
)
