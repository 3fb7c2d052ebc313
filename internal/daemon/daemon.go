// Package daemon runs the long-lived sidecar loop: it reads host signals,
// keeps the session controller attached to them, and serves health and
// metrics over HTTP while the host is running.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/metrics"
	"github.com/leefowlercu/timelapse/internal/session"
)

// DaemonState represents the lifecycle state of the daemon.
type DaemonState string

const (
	// DaemonStateIdle is the state before Run.
	DaemonStateIdle DaemonState = "idle"

	// DaemonStateStarting indicates the daemon is claiming resources.
	DaemonStateStarting DaemonState = "starting"

	// DaemonStateRunning indicates signals are being read and handled.
	DaemonStateRunning DaemonState = "running"

	// DaemonStateStopping indicates graceful shutdown is in progress.
	DaemonStateStopping DaemonState = "stopping"

	// DaemonStateStopped indicates the daemon has terminated.
	DaemonStateStopped DaemonState = "stopped"
)

// IsTerminal returns true if this state is a terminal state (no further transitions).
func (s DaemonState) IsTerminal() bool {
	return s == DaemonStateStopped
}

// CanTransitionTo returns true if transitioning to the target state is valid.
func (s DaemonState) CanTransitionTo(target DaemonState) bool {
	switch s {
	case DaemonStateIdle:
		return target == DaemonStateStarting
	case DaemonStateStarting:
		return target == DaemonStateRunning || target == DaemonStateStopped
	case DaemonStateRunning:
		return target == DaemonStateStopping
	case DaemonStateStopping:
		return target == DaemonStateStopped
	default:
		return false
	}
}

// ErrInvalidState is returned when Run is called on a daemon that has
// already run.
var ErrInvalidState = errors.New("invalid daemon state transition")

// DaemonConfig holds the configuration values for the daemon.
type DaemonConfig struct {
	// HTTPPort is the status server port; 0 disables the server.
	HTTPPort int

	// HTTPBind is the address to bind the HTTP server.
	HTTPBind string

	// ShutdownTimeout bounds the HTTP server shutdown.
	ShutdownTimeout time.Duration

	// PIDFile is the path to the PID file; empty disables it.
	PIDFile string
}

// DaemonConfigFrom builds a DaemonConfig from the loaded configuration.
func DaemonConfigFrom(cfg *config.Config) DaemonConfig {
	return DaemonConfig{
		HTTPPort:        cfg.Daemon.HTTPPort,
		HTTPBind:        cfg.Daemon.HTTPBind,
		ShutdownTimeout: cfg.Daemon.ShutdownTimeout(),
		PIDFile:         config.ExpandPath(cfg.Daemon.PIDFile),
	}
}

// SignalSource is a blocking host signal reader such as host.Reader. Run
// returns nil when the stream ends.
type SignalSource interface {
	Run(ctx context.Context) error
}

// Controller is the part of session.Controller the daemon drives.
type Controller interface {
	Attach(ctx context.Context) func()
	Stop() error
	Status() session.Status
}

// Option configures the Daemon.
type Option func(*Daemon)

// WithBus makes the health manager follow capture results on bus.
func WithBus(bus events.Bus) Option {
	return func(d *Daemon) {
		d.bus = bus
	}
}

// WithCollector starts and stops collector with the daemon.
func WithCollector(collector *metrics.Collector) Option {
	return func(d *Daemon) {
		d.collector = collector
	}
}

// WithLogger sets the logger for the daemon.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		d.logger = logger
	}
}

// Daemon is the run loop. It is safe for concurrent use; Run may be called
// once.
type Daemon struct {
	mu         sync.RWMutex
	config     DaemonConfig
	state      DaemonState
	health     *HealthManager
	server     *Server
	pidFile    *PIDFile
	source     SignalSource
	controller Controller
	bus        events.Bus
	collector  *metrics.Collector
	logger     *slog.Logger
}

// NewDaemon creates a Daemon reading signals from source and driving
// controller.
func NewDaemon(cfg DaemonConfig, source SignalSource, controller Controller, opts ...Option) *Daemon {
	d := &Daemon{
		config:     cfg,
		state:      DaemonStateIdle,
		health:     NewHealthManager(),
		source:     source,
		controller: controller,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	d.logger = d.logger.With("component", "daemon")

	if cfg.HTTPPort > 0 {
		d.server = NewServer(d.health, ServerConfig{Port: cfg.HTTPPort, Bind: cfg.HTTPBind},
			WithStatusFunc(controller.Status),
			WithMetricsHandler(metrics.Handler()),
		)
	}
	if cfg.PIDFile != "" {
		d.pidFile = NewPIDFile(cfg.PIDFile)
	}

	return d
}

// State returns the current daemon state.
func (d *Daemon) State() DaemonState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Health returns the current aggregate health status.
func (d *Daemon) Health() HealthStatus {
	return d.health.Status()
}

// Server returns the HTTP server, or nil when disabled.
func (d *Daemon) Server() *Server {
	return d.server
}

func (d *Daemon) transition(next DaemonState) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, d.state, next)
	}
	d.state = next
	return nil
}

// Run blocks until ctx is canceled, the signal stream ends, or the HTTP
// server fails. The active session is ended before Run returns. A cleanly
// closed signal stream returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.transition(DaemonStateStarting); err != nil {
		return err
	}

	if d.pidFile != nil {
		if err := d.pidFile.CheckAndClaim(); err != nil {
			_ = d.transition(DaemonStateStopped)
			return fmt.Errorf("failed to claim PID file; %w", err)
		}
		defer func() { _ = d.pidFile.Remove() }()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.bus != nil {
		unobserve := d.health.ObserveBus(d.bus)
		defer unobserve()
	}

	if d.collector != nil {
		if err := d.collector.Start(runCtx); err != nil {
			d.logger.Warn("failed to start metrics collector", "error", err)
		}
		defer d.collector.Stop()
	}

	detach := d.controller.Attach(runCtx)
	d.health.SetStatus(ComponentController, ComponentStatusRunning, nil)

	serverErr := make(chan error, 1)
	if d.server != nil {
		go func() {
			serverErr <- d.server.Start(runCtx)
		}()
		d.health.SetStatus(ComponentHTTP, ComponentStatusRunning, nil)
	}

	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- d.source.Run(runCtx)
	}()
	d.health.SetStatus(ComponentReader, ComponentStatusRunning, nil)

	if err := d.transition(DaemonStateRunning); err != nil {
		cancel()
		<-sourceErr
		detach()
		return err
	}
	d.logger.Info("daemon started",
		"http_port", d.config.HTTPPort,
		"pid_file", d.config.PIDFile,
	)

	var runErr error
	sourceDone := false
	select {
	case <-ctx.Done():
		d.logger.Info("shutdown signal received")
	case err := <-sourceErr:
		sourceDone = true
		if err != nil && !errors.Is(err, context.Canceled) {
			d.health.SetStatus(ComponentReader, ComponentStatusFailed, err)
			runErr = fmt.Errorf("failed to read host signals; %w", err)
		} else {
			d.health.SetStatus(ComponentReader, ComponentStatusStopped, nil)
			d.logger.Info("host signal stream closed")
		}
	case err := <-serverErr:
		if err != nil {
			d.health.SetStatus(ComponentHTTP, ComponentStatusFailed, err)
			runErr = err
		}
	}

	return errors.Join(runErr, d.shutdown(cancel, detach, sourceDone, sourceErr))
}

func (d *Daemon) shutdown(cancel context.CancelFunc, detach func(), sourceDone bool, sourceErr <-chan error) error {
	_ = d.transition(DaemonStateStopping)
	d.logger.Info("stopping daemon")

	detach()
	cancel()
	if !sourceDone {
		<-sourceErr
	}

	var stopErr error
	if err := d.controller.Stop(); err != nil {
		stopErr = fmt.Errorf("failed to end session; %w", err)
	}
	d.health.SetStatus(ComponentController, ComponentStatusStopped, nil)

	if d.server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
		defer done()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("failed to shutdown http server", "error", err)
		}
		d.health.SetStatus(ComponentHTTP, ComponentStatusStopped, nil)
	}

	_ = d.transition(DaemonStateStopped)
	d.logger.Info("daemon stopped")
	return stopErr
}
