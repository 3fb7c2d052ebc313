package watcher

import (
	"sync"
	"time"
)

// CoalescedEventType represents the type of coalesced event.
type CoalescedEventType int

const (
	EventCreate CoalescedEventType = iota
	EventModify
)

// String returns the metric label for the event type.
func (t CoalescedEventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	default:
		return "unknown"
	}
}

// CoalescedEvent represents a settled filesystem event for one path.
type CoalescedEvent struct {
	Path      string
	Type      CoalescedEventType
	Timestamp time.Time
}

// Coalescer holds create/write bursts for a path until the path has been
// quiet for the debounce window, then emits a single event. A removal while
// an event is pending cancels it.
type Coalescer struct {
	debounceWindow time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
	events  chan CoalescedEvent
	stopped bool
}

// pendingEvent tracks a pending event with its timer.
type pendingEvent struct {
	event CoalescedEvent
	timer *time.Timer
}

// NewCoalescer creates a new Coalescer with the given debounce window.
func NewCoalescer(debounceWindow time.Duration) *Coalescer {
	return &Coalescer{
		debounceWindow: debounceWindow,
		pending:        make(map[string]*pendingEvent),
		events:         make(chan CoalescedEvent, 64),
	}
}

// Add records an event, restarting the path's debounce timer.
func (c *Coalescer) Add(event CoalescedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	path := event.Path

	if pe, exists := c.pending[path]; exists {
		// emit() checks the pending map, so a timer that already fired is harmless
		pe.timer.Stop()

		// Create followed by writes is still a create
		if pe.event.Type == EventCreate {
			event.Type = EventCreate
		}
		pe.event = event
		pe.timer = time.AfterFunc(c.debounceWindow, func() {
			c.emit(path)
		})
		return
	}

	pe := &pendingEvent{event: event}
	pe.timer = time.AfterFunc(c.debounceWindow, func() {
		c.emit(path)
	})
	c.pending[path] = pe
}

// Cancel drops any pending event for path.
func (c *Coalescer) Cancel(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pe, exists := c.pending[path]; exists {
		pe.timer.Stop()
		delete(c.pending, path)
	}
}

// Events returns the channel of coalesced events.
func (c *Coalescer) Events() <-chan CoalescedEvent {
	return c.events
}

// Stop discards pending events and closes the events channel.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true

	for path, pe := range c.pending {
		pe.timer.Stop()
		delete(c.pending, path)
	}
	close(c.events)
	c.mu.Unlock()
}

// emit sends the pending event for path once its window elapses.
func (c *Coalescer) emit(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pe, exists := c.pending[path]
	if !exists || c.stopped {
		return
	}
	delete(c.pending, path)

	// Sends never block while holding the lock; a full buffer drops the event.
	select {
	case c.events <- pe.event:
	default:
	}
}

// PendingCount returns the number of pending events (for testing).
func (c *Coalescer) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
