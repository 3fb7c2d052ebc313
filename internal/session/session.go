// Package session drives the capture-then-archive lifecycle from host
// signals: it resolves the archive directory on session start, gates
// capturing on the player first reaching the target location, and runs a
// capture cycle on each new day.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/metrics"
	"github.com/leefowlercu/timelapse/internal/watcher"
)

// Settings configures how sessions resolve, name, and archive captures.
type Settings struct {
	// Root is the host execution path; ExportDir lives under it.
	Root      string
	ExportDir string
	Prefix    string

	// Target and Scope are passed to the export trigger. Target is also the
	// export file base name.
	Target string
	Scope  string

	// Extension restricts which export file is picked up; empty means any.
	Extension string

	// Location is the location that arms day-tick captures.
	Location string

	Naming string
	Mode   archive.Mode
}

// SettingsFromConfig builds Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Root:      config.ExpandPath(cfg.Game.Root),
		ExportDir: cfg.Game.ExportDir,
		Prefix:    cfg.Archive.Prefix,
		Target:    cfg.Capture.Target,
		Scope:     cfg.Capture.Scope,
		Extension: cfg.Capture.Extension,
		Location:  cfg.Capture.Location,
		Naming:    cfg.Capture.Naming,
		Mode:      archive.Mode(cfg.Capture.Mode),
	}
}

// Filter returns the export file filter for these settings.
func (s Settings) Filter() watcher.Filter {
	return watcher.Filter{BaseName: s.Target, Extension: s.Extension}
}

// CaptureSummary describes the most recent archive attempt of a session.
type CaptureSummary struct {
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Session is the in-memory state of one loaded save. It is rebuilt from the
// archive directory on every session start and never persisted.
type Session struct {
	ID  string
	Key string
	Dir archive.Directory

	settings Settings
	bus      events.Bus
	logger   *slog.Logger

	dateMu sync.RWMutex
	date   archive.Date

	mu       sync.Mutex
	archiver *archive.Archiver
	namer    archive.Namer
	lastHash string
	last     *CaptureSummary
	closed   bool
}

// Open resolves the archive directory for player and gameID and prepares the
// namer and archiver. Directory creation failures are returned and leave
// nothing behind to clean up.
func Open(settings Settings, player, gameID string, date archive.Date, bus events.Bus, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key, err := archive.SessionKey(player, gameID)
	if err != nil {
		return nil, err
	}

	dir, err := archive.Resolve(settings.Root, settings.ExportDir, settings.Prefix, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive directory; %w", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		Key:      key,
		Dir:      dir,
		settings: settings,
		bus:      bus,
		date:     date,
	}
	s.logger = logger.With("session_id", s.ID, "session_key", key)

	switch settings.Naming {
	case config.NamingSequence:
		namer, err := archive.NewSequenceNamer(dir.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sequence namer; %w", err)
		}
		s.namer = namer
		metrics.UpdateSequenceMetrics(namer.Peek())
	case config.NamingDate, "":
		s.namer = archive.NewDateNamer(s)
	default:
		return nil, fmt.Errorf("unknown naming policy %q", settings.Naming)
	}

	archiver, err := archive.NewArchiver(dir, settings.Mode, archive.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.archiver = archiver

	return s, nil
}

// Today implements archive.Calendar with the session's current in-game date.
func (s *Session) Today() (archive.Date, bool) {
	s.dateMu.RLock()
	defer s.dateMu.RUnlock()
	return s.date, !s.date.IsZero()
}

// SetDate records the current in-game date.
func (s *Session) SetDate(date archive.Date) {
	s.dateMu.Lock()
	defer s.dateMu.Unlock()
	s.date = date
}

// Settings returns the settings the session was opened with.
func (s *Session) Settings() Settings {
	return s.settings
}

// Archive names and transfers the export file at src. A non-empty
// contentHash equal to the last archived capture's hash makes the call a
// no-op under sequence naming, where a repeated notification would
// otherwise produce an extra frame. Archive on a closed session returns
// ErrNoSession.
func (s *Session) Archive(src, contentHash string) (archive.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return archive.Result{}, ErrNoSession
	}

	if contentHash != "" && contentHash == s.lastHash && s.settings.Naming == config.NamingSequence {
		metrics.RecordCapture(metrics.ResultDuplicate)
		s.logger.Debug("capture unchanged since last archive, skipping", "source", src)
		return archive.Result{Status: archive.StatusSkipped, Source: src, Mode: s.archiver.Mode()}, nil
	}

	name, err := s.namer.Next()
	if err != nil {
		metrics.RecordCapture(metrics.ResultFailed)
		s.recordFailure(src, err)
		return archive.Result{}, fmt.Errorf("failed to allocate frame name; %w", err)
	}

	res, err := s.archiver.Archive(src, name)
	if seq, ok := s.namer.(*archive.SequenceNamer); ok {
		metrics.UpdateSequenceMetrics(seq.Peek())
	}
	if err != nil {
		s.recordFailure(src, err)
		return res, err
	}

	if res.Status == archive.StatusArchived && contentHash != "" {
		s.lastHash = contentHash
	}

	s.last = &CaptureSummary{
		Status:      string(res.Status),
		Source:      res.Source,
		Destination: res.Destination,
		At:          time.Now(),
	}
	s.publish(events.NewCaptureArchived(s.ID, res.Source, res.Destination, string(res.Status)))

	return res, nil
}

// LastCapture returns the most recent archive attempt, or nil.
func (s *Session) LastCapture() *CaptureSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	summary := *s.last
	return &summary
}

// NextIndex returns the next sequence index, or false under date naming.
func (s *Session) NextIndex() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq, ok := s.namer.(*archive.SequenceNamer); ok {
		return seq.Peek(), true
	}
	return 0, false
}

// Close marks the session closed. Archive calls that arrive afterwards, such
// as buffered notifications, are rejected with ErrNoSession.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) recordFailure(src string, err error) {
	s.last = &CaptureSummary{
		Status: metrics.ResultFailed,
		Source: src,
		Error:  err.Error(),
		At:     time.Now(),
	}
	s.publish(events.NewCaptureFailed(s.ID, src, err))
}

func (s *Session) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(context.Background(), event); err != nil {
		s.logger.Debug("failed to publish event", "event_type", event.Type, "error", err)
	}
}
