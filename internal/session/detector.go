package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/metrics"
	"github.com/leefowlercu/timelapse/internal/watcher"
)

// Detector finds the export file produced by a trigger and hands it to the
// session for archiving.
type Detector interface {
	// Begin prepares detection for a newly opened session.
	Begin(ctx context.Context, s *Session) error

	// AfterTrigger runs once the export trigger has returned.
	AfterTrigger(ctx context.Context, s *Session) error

	// End releases everything Begin acquired. Safe to call repeatedly.
	End() error
}

// PollDetector scans the export directory once, right after the trigger.
// A missing export file means no capture this cycle.
type PollDetector struct {
	filter watcher.Filter
	logger *slog.Logger
}

// NewPollDetector creates a PollDetector matching export files with filter.
func NewPollDetector(filter watcher.Filter, logger *slog.Logger) *PollDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollDetector{filter: filter, logger: logger}
}

// Begin implements Detector.
func (d *PollDetector) Begin(ctx context.Context, s *Session) error {
	return nil
}

// AfterTrigger implements Detector. Transfer errors are returned.
func (d *PollDetector) AfterTrigger(ctx context.Context, s *Session) error {
	src, err := FindExport(s.Dir.ExportDir, d.filter)
	if err != nil {
		return err
	}
	if src == "" {
		metrics.RecordCapture(metrics.ResultMissing)
		d.logger.Info("no export file found after trigger",
			"session_id", s.ID,
			"export_dir", s.Dir.ExportDir,
			"base_name", d.filter.BaseName,
		)
		return nil
	}

	_, err = s.Archive(src, "")
	return err
}

// End implements Detector.
func (d *PollDetector) End() error {
	return nil
}

// FindExport returns the first regular file in dir accepted by filter, or
// "" when there is none.
func FindExport(dir string, filter watcher.Filter) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read export directory; %w", err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if filter.Matches(entry.Name()) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", nil
}

// NotifyDetector archives export files as filesystem notifications report
// them. Archive errors are logged, throttled, and otherwise ignored; the
// export file stays in place for a later notification.
type NotifyDetector struct {
	bus      events.Bus
	filter   watcher.Filter
	debounce time.Duration
	logger   *slog.Logger
	warn     rate.Sometimes

	mu          sync.Mutex
	watcher     *watcher.Watcher
	unsubscribe func()
}

// NewNotifyDetector creates a NotifyDetector listening on bus.
func NewNotifyDetector(bus events.Bus, filter watcher.Filter, debounce time.Duration, logger *slog.Logger) *NotifyDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyDetector{
		bus:      bus,
		filter:   filter,
		debounce: debounce,
		logger:   logger,
		warn:     rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
}

// Begin implements Detector. It subscribes to capture.detected and starts a
// watcher on the session's export directory. Any previous subscription is
// released first.
func (d *NotifyDetector) Begin(ctx context.Context, s *Session) error {
	if err := d.End(); err != nil {
		d.logger.Warn("failed to stop previous watcher", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	unsubscribe := d.bus.Subscribe(func(event events.Event) {
		d.handleDetected(s, event)
	}, events.CaptureDetected)

	w, err := watcher.New(d.bus, s.Dir.ExportDir, d.filter,
		watcher.WithDebounceWindow(d.debounce),
		watcher.WithLogger(d.logger),
	)
	if err != nil {
		unsubscribe()
		return err
	}
	if err := w.Start(ctx); err != nil {
		unsubscribe()
		return err
	}

	d.watcher = w
	d.unsubscribe = unsubscribe
	return nil
}

// AfterTrigger implements Detector. Completion is reported asynchronously by
// the watcher, so there is nothing to do here.
func (d *NotifyDetector) AfterTrigger(ctx context.Context, s *Session) error {
	return nil
}

// End implements Detector.
func (d *NotifyDetector) End() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}

	var err error
	if d.watcher != nil {
		err = d.watcher.Stop()
		d.watcher = nil
	}
	return err
}

// Watcher returns the active watcher, or nil.
func (d *NotifyDetector) Watcher() *watcher.Watcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.watcher
}

func (d *NotifyDetector) handleDetected(s *Session, event events.Event) {
	payload, ok := event.Payload.(*events.CaptureFileEvent)
	if !ok {
		return
	}
	if filepath.Dir(payload.Path) != s.Dir.ExportDir || !d.filter.Matches(payload.Path) {
		return
	}

	_, err := s.Archive(payload.Path, payload.ContentHash)
	if err == nil || errors.Is(err, ErrNoSession) {
		return
	}

	d.warn.Do(func() {
		d.logger.Warn("failed to archive detected capture",
			"session_id", s.ID,
			"path", payload.Path,
			"error", err,
		)
	})
}

// NewDetector builds the Detector for a configured detection mode.
func NewDetector(mode string, bus events.Bus, filter watcher.Filter, debounce time.Duration, logger *slog.Logger) (Detector, error) {
	switch mode {
	case config.DetectionPoll, "":
		return NewPollDetector(filter, logger), nil
	case config.DetectionNotify:
		if bus == nil {
			return nil, errors.New("notify detection requires an event bus")
		}
		return NewNotifyDetector(bus, filter, debounce, logger), nil
	default:
		return nil, fmt.Errorf("unknown detection mode %q", mode)
	}
}
