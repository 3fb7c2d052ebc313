// Package events provides an in-process pub/sub event bus for cross-component
// communication within the timelapse process.
package events

import (
	"time"
)

// EventType identifies the type of event being published.
type EventType string

const (
	// CaptureDetected is published by the watcher when an export file settles
	// in the watched export directory.
	CaptureDetected EventType = "capture.detected"

	// CaptureArchived is published after a capture cycle archives (or skips)
	// an export file.
	CaptureArchived EventType = "capture.archived"

	// CaptureFailed is published when archiving an export file fails.
	CaptureFailed EventType = "capture.failed"

	// SessionOpened is published when a session's archive directory is ready.
	SessionOpened EventType = "session.opened"

	// SessionClosed is published when a session is torn down.
	SessionClosed EventType = "session.closed"
)

// Event represents a published event in the system.
type Event struct {
	// Type identifies the event type.
	Type EventType

	// Timestamp is when the event was created.
	Timestamp time.Time

	// Payload contains event-specific data.
	Payload any
}

// NewEvent creates a new event with the given type and payload.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// EventHandler is a function that processes events.
type EventHandler func(event Event)

// CaptureFileEvent describes an export file seen in the export directory.
type CaptureFileEvent struct {
	// Path is the absolute path to the export file.
	Path string

	// ContentHash is the SHA-256 of the file content at detection time.
	ContentHash string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the file modification time.
	ModTime time.Time
}

// CaptureResultEvent describes the outcome of archiving one export file.
type CaptureResultEvent struct {
	SessionID   string
	Source      string
	Destination string

	// Status is "archived" or "skipped" for CaptureArchived events.
	Status string

	// Error is set for CaptureFailed events.
	Error string
}

// SessionEvent describes a session lifecycle change.
type SessionEvent struct {
	SessionID  string
	SessionKey string
	ArchiveDir string
}

// NewCaptureDetected creates a CaptureDetected event.
func NewCaptureDetected(path, contentHash string, size int64, modTime time.Time) Event {
	return NewEvent(CaptureDetected, &CaptureFileEvent{
		Path:        path,
		ContentHash: contentHash,
		Size:        size,
		ModTime:     modTime,
	})
}

// NewCaptureArchived creates a CaptureArchived event.
func NewCaptureArchived(sessionID, source, destination, status string) Event {
	return NewEvent(CaptureArchived, &CaptureResultEvent{
		SessionID:   sessionID,
		Source:      source,
		Destination: destination,
		Status:      status,
	})
}

// NewCaptureFailed creates a CaptureFailed event.
func NewCaptureFailed(sessionID, source string, err error) Event {
	return NewEvent(CaptureFailed, &CaptureResultEvent{
		SessionID: sessionID,
		Source:    source,
		Error:     err.Error(),
	})
}

// NewSessionOpened creates a SessionOpened event.
func NewSessionOpened(sessionID, sessionKey, archiveDir string) Event {
	return NewEvent(SessionOpened, &SessionEvent{
		SessionID:  sessionID,
		SessionKey: sessionKey,
		ArchiveDir: archiveDir,
	})
}

// NewSessionClosed creates a SessionClosed event.
func NewSessionClosed(sessionID, sessionKey string) Event {
	return NewEvent(SessionClosed, &SessionEvent{
		SessionID:  sessionID,
		SessionKey: sessionKey,
	})
}
