// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventMotorStateChanged   EventType = "MOTOR_STATE_CHANGED"
	EventMotorTriggered      EventType = "MOTOR_TRIGGERED"
	EventHeadsetStateChanged EventType = "HEADSET_STATE_CHANGED"
	EventDiscoveryStarted    EventType = "DISCOVERY_STARTED"
	EventDiscoveryCompleted  EventType = "DISCOVERY_COMPLETED"
	EventRecordingStarted    EventType = "RECORDING_STARTED"
	EventRecordingStopped    EventType = "RECORDING_STOPPED"
	EventRecordingProgress   EventType = "RECORDING_PROGRESS"
)

// Event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// Event represents an event in the system
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      EventType  `json:"type"`
	Source    string     `json:"source"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Severity  string     `json:"severity"`
}

// NewEvent creates an info event stamped now
func NewEvent(eventType EventType, source string, data JSONObject) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  SeverityInfo,
	}
}

// WithSeverity returns a copy of the event with severity set
func (e Event) WithSeverity(severity string) Event {
	e.Severity = severity
	return e
}
