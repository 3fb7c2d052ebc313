// Package watcher turns filesystem notifications for the export directory
// into capture.detected events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/fsutil"
	"github.com/leefowlercu/timelapse/internal/metrics"
)

// ErrAlreadyRunning is returned when Start is called on a running watcher.
var ErrAlreadyRunning = errors.New("watcher already running")

// Filter selects the export file among everything written to the directory.
type Filter struct {
	// BaseName is the export file name without extension, e.g. "Farm".
	BaseName string

	// Extension, when set, must also match (case-insensitive), e.g. ".png".
	Extension string
}

// Matches reports whether path names the export file.
func (f Filter) Matches(path string) bool {
	base, ext := fsutil.SplitName(path)
	if base != f.BaseName {
		return false
	}
	if f.Extension != "" && !strings.EqualFold(ext, f.Extension) {
		return false
	}
	return true
}

// Stats contains statistics about watcher activity.
type Stats struct {
	EventsReceived  int64
	EventsFiltered  int64
	EventsPublished int64
	Errors          int64
	IsRunning       bool
}

// Option configures the Watcher.
type Option func(*Watcher)

// WithDebounceWindow sets the debounce window for event coalescing.
func WithDebounceWindow(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceWindow = d
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// Watcher watches one export directory, non-recursively, and publishes a
// capture.detected event each time the export file settles.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	bus       events.Bus
	dir       string
	filter    Filter
	coalescer *Coalescer
	logger    *slog.Logger

	debounceWindow time.Duration

	mu       sync.RWMutex
	stats    Stats
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher for dir. The directory must already exist.
func New(bus events.Bus, dir string, filter Filter, opts ...Option) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path; %w", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path; %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absDir)
	}

	w := &Watcher{
		bus:            bus,
		dir:            absDir,
		filter:         filter,
		logger:         slog.Default(),
		debounceWindow: 250 * time.Millisecond,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With("component", "watcher", "dir", absDir)
	w.coalescer = NewCoalescer(w.debounceWindow)

	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start registers the fsnotify watch and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("failed to create fsnotify watcher; %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		w.mu.Unlock()
		return fmt.Errorf("failed to watch directory; %w", err)
	}

	w.fsWatcher = fsw
	w.running = true
	w.stats.IsRunning = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	go w.processCoalescedEvents(ctx)

	w.logger.Debug("watcher started", "base_name", w.filter.BaseName, "extension", w.filter.Extension)

	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var stopErr error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		if !w.running {
			w.mu.Unlock()
			return
		}
		w.running = false
		w.stats.IsRunning = false
		w.mu.Unlock()

		close(w.stopCh)
		<-w.doneCh

		w.coalescer.Stop()
		stopErr = w.fsWatcher.Close()

		w.logger.Debug("watcher stopped")
	})
	return stopErr
}

// Stats returns current watcher statistics.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// CollectMetrics implements metrics.MetricsProvider.
func (w *Watcher) CollectMetrics(ctx context.Context) error {
	if !w.Stats().IsRunning {
		return errors.New("watcher not running")
	}
	return nil
}

// processEvents reads from fsnotify and feeds the coalescer.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
			metrics.WatcherErrorsTotal.Inc()
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// handleFsEvent filters a single fsnotify event down to the export file.
func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	w.mu.Lock()
	w.stats.EventsReceived++
	w.mu.Unlock()

	if filepath.Dir(event.Name) != w.dir || !w.filter.Matches(event.Name) {
		w.mu.Lock()
		w.stats.EventsFiltered++
		w.mu.Unlock()
		return
	}

	var eventType CoalescedEventType
	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// The file left the directory (typically our own move); nothing to archive
		w.coalescer.Cancel(event.Name)
		return
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventModify
	default:
		return // Ignore chmod-only events
	}

	metrics.RecordWatcherEvent(eventType.String())

	w.coalescer.Add(CoalescedEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	})
}

// processCoalescedEvents publishes settled events to the bus.
func (w *Watcher) processCoalescedEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ce, ok := <-w.coalescer.Events():
			if !ok {
				return
			}
			w.publishEvent(ctx, ce)
		}
	}
}

// publishEvent stats and hashes the settled file and publishes it.
func (w *Watcher) publishEvent(ctx context.Context, ce CoalescedEvent) {
	info, err := os.Stat(ce.Path)
	if err != nil {
		// Gone before we got to it; a mover already took it
		if !os.IsNotExist(err) {
			w.logger.Warn("failed to stat export file", "path", ce.Path, "error", err)
		}
		return
	}
	if info.IsDir() {
		return
	}

	hash, err := fsutil.HashFile(ce.Path)
	if err != nil {
		w.logger.Warn("failed to hash export file", "path", ce.Path, "error", err)
		return
	}

	event := events.NewCaptureDetected(ce.Path, hash, info.Size(), info.ModTime())
	if err := w.bus.Publish(ctx, event); err != nil {
		w.logger.Error("failed to publish event", "path", ce.Path, "error", err)
		return
	}

	w.mu.Lock()
	w.stats.EventsPublished++
	w.mu.Unlock()
}
