package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when the controller is asked to make a
// state change the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid session state transition")

// ErrNoSession is returned for operations that need an active session.
var ErrNoSession = errors.New("no active session")

// State is the session controller state.
type State int

const (
	// StateUninitialized means no session is loaded.
	StateUninitialized State = iota

	// StateInitialized means the archive directory, namer, and detector are ready.
	StateInitialized

	// StateLocationArmed means the controller is waiting for the player to
	// reach the target location.
	StateLocationArmed

	// StateLocationReached means the one-shot gate has fired; every new day
	// runs a capture cycle.
	StateLocationReached
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateLocationArmed:
		return "location_armed"
	case StateLocationReached:
		return "location_reached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a session is loaded.
func (s State) Active() bool {
	return s != StateUninitialized
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Sessions advance one step at a time and may end from any active state.
func (s State) CanTransitionTo(next State) bool {
	switch next {
	case StateUninitialized:
		return s.Active()
	case StateInitialized:
		return s == StateUninitialized
	case StateLocationArmed:
		return s == StateInitialized
	case StateLocationReached:
		return s == StateLocationArmed
	default:
		return false
	}
}
