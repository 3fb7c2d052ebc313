package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/events"
	"github.com/leefowlercu/timelapse/internal/host"
	"github.com/leefowlercu/timelapse/internal/session"
)

// LoadConfig returns the loaded configuration after validating it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Get()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Pipeline is the wired capture stack: event bus, signal dispatcher,
// export trigger, detector, and session controller.
type Pipeline struct {
	Settings   session.Settings
	Detection  string
	Bus        *events.EventBus
	Dispatcher *host.Dispatcher
	Trigger    host.Trigger
	Detector   session.Detector
	Controller *session.Controller
}

// ResolveDetection returns the detection mode a pipeline runs with. An
// empty requested mode falls back to capture.detection. The stdout trigger
// returns before the host has read the command, so a poll would scan too
// early; it always runs with notify detection.
func ResolveDetection(cfg *config.Config, requested string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	detection := requested
	if detection == "" {
		detection = cfg.Capture.Detection
	}

	if cfg.Trigger.Kind == config.TriggerStdout && detection == config.DetectionPoll {
		logger.Info("stdout trigger does not wait for the export; using notify detection",
			"requested", config.DetectionPoll,
		)
		return config.DetectionNotify
	}
	return detection
}

// NewPipeline wires a Pipeline from cfg. The detection mode is resolved with
// ResolveDetection. Export commands for the stdout trigger are written to out.
func NewPipeline(cfg *config.Config, detection string, out io.Writer, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	detection = ResolveDetection(cfg, detection, logger)

	settings := session.SettingsFromConfig(cfg)
	bus := events.NewBus(events.WithLogger(logger))

	// A command trigger runs in the background under notify detection, where
	// the watcher rather than the command's exit reports completion.
	background := detection == config.DetectionNotify
	trigger, err := host.NewTrigger(cfg.Trigger.Kind, cfg.Trigger.Command, out, background, logger)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to create export trigger; %w", err)
	}

	detector, err := session.NewDetector(detection, bus, settings.Filter(), cfg.Capture.Debounce(), logger)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to create detector; %w", err)
	}

	dispatcher := host.NewDispatcher(logger)
	controller := session.NewController(settings, dispatcher, trigger, detector,
		session.WithBus(bus),
		session.WithLogger(logger),
	)

	return &Pipeline{
		Settings:   settings,
		Detection:  detection,
		Bus:        bus,
		Dispatcher: dispatcher,
		Trigger:    trigger,
		Detector:   detector,
		Controller: controller,
	}, nil
}

// Close ends any active session, waits for background export commands,
// and closes the bus.
func (p *Pipeline) Close() error {
	err := p.Controller.Stop()
	if ct, ok := p.Trigger.(*host.CommandTrigger); ok {
		ct.Wait()
	}
	return errors.Join(err, p.Bus.Close())
}
