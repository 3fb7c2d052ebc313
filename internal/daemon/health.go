package daemon

import (
	"errors"
	"sync"
	"time"

	"github.com/leefowlercu/timelapse/internal/events"
)

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	// Status is the current health state.
	Status ComponentStatus `json:"status"`

	// Error is the most recent failure, empty when healthy.
	Error string `json:"error,omitempty"`

	// LastChecked is when the health was last updated.
	LastChecked time.Time `json:"last_checked"`

	// Since is when the component entered the current state.
	Since time.Time `json:"since,omitempty"`
}

// IsHealthy returns true if the component health indicates healthy operation.
func (h ComponentHealth) IsHealthy() bool {
	return h.Status.IsHealthy()
}

// Aggregate health values.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthStatus is the response format for the /readyz endpoint.
type HealthStatus struct {
	// Status is "healthy", "degraded", or "unhealthy".
	Status string `json:"status"`

	// Ready is false only when some component has failed.
	Ready bool `json:"ready"`

	// Uptime is how long the daemon has been running.
	Uptime time.Duration `json:"uptime"`

	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// HealthManager aggregates health status from multiple components.
// It is safe for concurrent use.
type HealthManager struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
}

// NewHealthManager creates a new HealthManager instance.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

// UpdateComponent replaces the health of a named component.
func (m *HealthManager) UpdateComponent(name string, health ComponentHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = health
}

// SetStatus records a status change for name, keeping Since stable while
// the status is unchanged.
func (m *HealthManager) SetStatus(name string, status ComponentStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	health := m.components[name]
	if health.Status != status || health.Since.IsZero() {
		health.Since = now
	}
	health.Status = status
	health.LastChecked = now
	health.Error = ""
	if err != nil {
		health.Error = err.Error()
	}
	m.components[name] = health
}

// RemoveComponent removes a component from health tracking.
func (m *HealthManager) RemoveComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.components, name)
}

// Component returns the health of name and whether it is tracked.
func (m *HealthManager) Component(name string) (ComponentHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.components[name]
	return h, ok
}

// Status returns the aggregate health status of all components.
func (m *HealthManager) Status() HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := HealthStatus{
		Status:     HealthHealthy,
		Ready:      true,
		Uptime:     time.Since(m.startTime),
		Components: make(map[string]ComponentHealth, len(m.components)),
	}

	for name, health := range m.components {
		status.Components[name] = health

		switch {
		case health.Status == ComponentStatusFailed:
			status.Status = HealthUnhealthy
			status.Ready = false
		case !health.IsHealthy() && status.Status == HealthHealthy:
			status.Status = HealthDegraded
		}
	}

	return status
}

// ObserveBus tracks the capture component from archive results published on
// bus: a failure degrades it until the next successful archive. The
// returned function stops observing.
func (m *HealthManager) ObserveBus(bus events.Bus) func() {
	m.SetStatus(ComponentCapture, ComponentStatusRunning, nil)

	return bus.Subscribe(func(event events.Event) {
		if event.Type == events.CaptureArchived {
			m.SetStatus(ComponentCapture, ComponentStatusRunning, nil)
			return
		}

		var err error
		if payload, ok := event.Payload.(*events.CaptureResultEvent); ok && payload.Error != "" {
			err = errors.New(payload.Error)
		}
		m.SetStatus(ComponentCapture, ComponentStatusDegraded, err)
	}, events.CaptureArchived, events.CaptureFailed)
}
