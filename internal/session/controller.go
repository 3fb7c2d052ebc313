package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/host"
	"github.com/leefowlercu/timelapse/internal/metrics"
)

// Cycle reasons, used as metric labels.
const (
	ReasonLocation = "location"
	ReasonDay      = "day"
)

// Status is a snapshot of the controller for logs and the status endpoint.
type Status struct {
	State       State           `json:"state"`
	SessionID   string          `json:"session_id,omitempty"`
	SessionKey  string          `json:"session_key,omitempty"`
	ArchiveDir  string          `json:"archive_dir,omitempty"`
	Date        string          `json:"date,omitempty"`
	NextIndex   *int            `json:"next_index,omitempty"`
	Cycles      int             `json:"cycles"`
	LastCapture *CaptureSummary `json:"last_capture,omitempty"`
}

// Option configures the Controller.
type Option func(*Controller)

// WithBus sets the event bus for session and capture events.
func WithBus(bus events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithLogger sets the logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller is the session state machine. All methods are safe for
// concurrent use; capture cycles are serialized.
type Controller struct {
	settings Settings
	trigger  host.Trigger
	detector Detector
	signals  host.Signals
	bus      events.Bus
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	session       *Session
	unsubLocation func()
	cycles        int
}

// NewController creates a Controller. signals is the source the one-shot
// location subscription is taken from.
func NewController(settings Settings, signals host.Signals, trigger host.Trigger, detector Detector, opts ...Option) *Controller {
	c := &Controller{
		settings: settings,
		trigger:  trigger,
		detector: detector,
		signals:  signals,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "session")
	return c
}

// Attach subscribes the controller to session and day signals. The returned
// function removes both subscriptions.
func (c *Controller) Attach(ctx context.Context) func() {
	unsubSession := c.signals.Subscribe(host.SessionStarted, func(sig host.Signal) {
		if err := c.SessionStarted(ctx, sig.Player, sig.GameID, sig.Date); err != nil {
			c.logger.Error("failed to start session", "player", sig.Player, "error", err)
		}
	})
	unsubDay := c.signals.Subscribe(host.DayStarted, func(sig host.Signal) {
		err := c.DayStarted(ctx, sig.Date)
		switch {
		case errors.Is(err, ErrNoSession):
			c.logger.Debug("day started without a session", "date", sig.Date.Key())
		case err != nil:
			c.logger.Error("capture cycle failed", "date", sig.Date.Key(), "error", err)
		}
	})

	return func() {
		unsubSession()
		unsubDay()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionStarted ends any active session and opens a new one: the archive
// directory is resolved, the namer initialized, the detector begun, and the
// location gate armed. On failure the controller is left uninitialized.
func (c *Controller) SessionStarted(ctx context.Context, player, gameID string, date archive.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		if err := c.endLocked(); err != nil {
			return err
		}
	}

	s, err := Open(c.settings, player, gameID, date, c.bus, c.logger)
	if err != nil {
		return err
	}

	if err := c.detector.Begin(ctx, s); err != nil {
		s.Close()
		return fmt.Errorf("failed to begin capture detection; %w", err)
	}

	if err := c.transitionLocked(StateInitialized); err != nil {
		c.detector.End()
		s.Close()
		return err
	}
	c.session = s
	c.cycles = 0

	c.logger.Info("session initialized",
		"session_id", s.ID,
		"session_key", s.Key,
		"archive_dir", s.Dir.Path,
	)
	c.publish(events.NewSessionOpened(s.ID, s.Key, s.Dir.Path))

	c.unsubLocation = c.signals.Subscribe(host.LocationChanged, func(sig host.Signal) {
		if err := c.LocationChanged(ctx, sig.Location); err != nil {
			c.logger.Error("capture cycle failed", "location", sig.Location, "error", err)
		}
	})
	if err := c.transitionLocked(StateLocationArmed); err != nil {
		return err
	}

	c.logger.Debug("location gate armed", "location", c.settings.Location)
	return nil
}

// LocationChanged fires the one-shot location gate. The first change to the
// target location releases the location subscription and runs a capture
// cycle; anything else is a no-op.
func (c *Controller) LocationChanged(ctx context.Context, location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLocationArmed || location != c.settings.Location {
		return nil
	}

	c.releaseLocationLocked()
	if err := c.transitionLocked(StateLocationReached); err != nil {
		return err
	}

	c.logger.Info("target location reached", "location", location)
	return c.cycleLocked(ctx, ReasonLocation)
}

// DayStarted records the new date and, once the location gate has fired,
// runs a capture cycle. Returns ErrNoSession when no session is loaded.
func (c *Controller) DayStarted(ctx context.Context, date archive.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNoSession
	}
	c.session.SetDate(date)

	if c.state != StateLocationReached {
		return nil
	}
	return c.cycleLocked(ctx, ReasonDay)
}

// Stop ends the active session, if any.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active() {
		return nil
	}
	return c.endLocked()
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{State: c.state, Cycles: c.cycles}
	if s := c.session; s != nil {
		st.SessionID = s.ID
		st.SessionKey = s.Key
		st.ArchiveDir = s.Dir.Path
		if date, ok := s.Today(); ok {
			st.Date = date.Key()
		}
		if next, ok := s.NextIndex(); ok {
			st.NextIndex = &next
		}
		st.LastCapture = s.LastCapture()
	}
	return st
}

// CollectMetrics implements metrics.MetricsProvider.
func (c *Controller) CollectMetrics(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		metrics.UpdateArchiveMetrics(0)
		return nil
	}

	frames, err := s.Dir.Frames()
	if err != nil {
		return err
	}
	metrics.UpdateArchiveMetrics(len(frames))
	return nil
}

// cycleLocked triggers an export and lets the detector pick it up.
func (c *Controller) cycleLocked(ctx context.Context, reason string) error {
	s := c.session
	c.cycles++
	metrics.RecordCycle(reason)

	c.logger.Debug("capture cycle", "reason", reason, "session_id", s.ID)

	if err := c.trigger.Export(ctx, c.settings.Target, c.settings.Scope); err != nil {
		return fmt.Errorf("failed to trigger export; %w", err)
	}
	return c.detector.AfterTrigger(ctx, s)
}

// endLocked tears down the active session.
func (c *Controller) endLocked() error {
	c.releaseLocationLocked()

	if err := c.detector.End(); err != nil {
		c.logger.Warn("failed to end capture detection", "error", err)
	}

	s := c.session
	if err := c.transitionLocked(StateUninitialized); err != nil {
		return err
	}
	c.session = nil

	if s != nil {
		s.Close()
		c.logger.Info("session ended", "session_id", s.ID, "session_key", s.Key)
		c.publish(events.NewSessionClosed(s.ID, s.Key))
	}
	return nil
}

func (c *Controller) releaseLocationLocked() {
	if c.unsubLocation != nil {
		c.unsubLocation()
		c.unsubLocation = nil
	}
}

func (c *Controller) transitionLocked(next State) error {
	if !c.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, next)
	}
	c.state = next
	return nil
}

func (c *Controller) publish(event events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.Background(), event); err != nil {
		c.logger.Debug("failed to publish event", "event_type", event.Type, "error", err)
	}
}
