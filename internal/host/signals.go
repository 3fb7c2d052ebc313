// Package host adapts the game host to the timelapse process: lifecycle
// signals come in as JSON lines, and export requests go out through a
// Trigger.
package host

import (
	"log/slog"
	"sync"

	"github.com/leefowlercu/timelapse/internal/archive"
)

// SignalType identifies a host lifecycle signal.
type SignalType string

const (
	// SessionStarted is sent when a save is loaded.
	SessionStarted SignalType = "session_started"

	// DayStarted is sent at the start of each in-game day.
	DayStarted SignalType = "day_started"

	// LocationChanged is sent when the player enters a location.
	LocationChanged SignalType = "location_changed"
)

// Signal is one lifecycle signal from the host.
type Signal struct {
	Type SignalType

	// Player and GameID are set for SessionStarted.
	Player string
	GameID string

	// Date is set for SessionStarted (when known) and DayStarted.
	Date archive.Date

	// Location is set for LocationChanged.
	Location string
}

// Handler processes a signal.
type Handler func(Signal)

// Signals is a source of host signals.
type Signals interface {
	// Subscribe registers handler for signals of type t and returns a
	// function that removes the registration.
	Subscribe(t SignalType, handler Handler) (unsubscribe func())
}

type dispatchEntry struct {
	id      uint64
	handler Handler
}

// Dispatcher delivers signals synchronously on the caller's goroutine, to
// handlers in subscription order. A handler sees signals in emit order.
type Dispatcher struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[SignalType][]dispatchEntry
	logger   *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[SignalType][]dispatchEntry),
		logger:   logger,
	}
}

// Subscribe implements Signals. Unsubscribe is idempotent and may be called
// from inside the handler itself.
func (d *Dispatcher) Subscribe(t SignalType, handler Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[t] = append(d.handlers[t], dispatchEntry{id: id, handler: handler})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			entries := d.handlers[t]
			for i, e := range entries {
				if e.id == id {
					d.handlers[t] = append(entries[:i:i], entries[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit delivers sig to every handler subscribed to its type at the time of
// the call. Handler panics are recovered and logged.
func (d *Dispatcher) Emit(sig Signal) {
	d.mu.Lock()
	entries := append([]dispatchEntry(nil), d.handlers[sig.Type]...)
	d.mu.Unlock()

	for _, e := range entries {
		d.safeCall(e, sig)
	}
}

// HandlerCount returns the number of handlers subscribed to t.
func (d *Dispatcher) HandlerCount(t SignalType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers[t])
}

func (d *Dispatcher) safeCall(e dispatchEntry, sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("signal handler panicked",
				"subscriber_id", e.id,
				"signal", sig.Type,
				"panic", r,
			)
		}
	}()

	e.handler(sig)
}
