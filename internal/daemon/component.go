package daemon

// ComponentStatus represents the health state of a component.
type ComponentStatus string

const (
	// ComponentStatusRunning indicates the component is operating normally.
	ComponentStatusRunning ComponentStatus = "running"

	// ComponentStatusDegraded indicates the component works but its last
	// operation failed.
	ComponentStatusDegraded ComponentStatus = "degraded"

	// ComponentStatusFailed indicates the component cannot do its job.
	ComponentStatusFailed ComponentStatus = "failed"

	// ComponentStatusStopped indicates the component has been intentionally stopped.
	ComponentStatusStopped ComponentStatus = "stopped"
)

// Component names reported by the health manager.
const (
	ComponentController = "controller"
	ComponentReader     = "reader"
	ComponentCapture    = "capture"
	ComponentHTTP       = "http"
)

// IsHealthy returns true if the component status indicates healthy operation.
func (s ComponentStatus) IsHealthy() bool {
	return s == ComponentStatusRunning
}
