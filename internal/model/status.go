// internal/model/status.go
package model

import (
	"fmt"
	"time"
)

// ComponentState is the lifecycle state of the motor link or the headset link
type ComponentState int32

const (
	StateIdle ComponentState = iota
	StateScanning
	StateConnected
)

func (s ComponentState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state by name in JSON
func (s ComponentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText
func (s *ComponentState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = StateIdle
	case "SCANNING":
		*s = StateScanning
	case "CONNECTED":
		*s = StateConnected
	default:
		return fmt.Errorf("unknown component state %q", text)
	}
	return nil
}

// DiscoveryTrigger tells an automatic pass from a user-requested one
type DiscoveryTrigger string

const (
	TriggerAuto   DiscoveryTrigger = "AUTO"
	TriggerManual DiscoveryTrigger = "MANUAL"
)

// MotorStatus describes the serial link to the vibration motor controller
type MotorStatus struct {
	State        ComponentState `json:"state"`
	Port         string         `json:"port,omitempty"`
	Label        string         `json:"label,omitempty"`
	LineSettings string         `json:"line_settings,omitempty"`
	ConnectedAt  *time.Time     `json:"connected_at,omitempty"`
	BytesWritten int64          `json:"bytes_written"`
	Triggers     int64          `json:"triggers"`
	LastError    string         `json:"last_error,omitempty"`
	LastErrorAt  *time.Time     `json:"last_error_at,omitempty"`
}

// HeadsetStatus describes the stream link to the VR headset
type HeadsetStatus struct {
	State           ComponentState `json:"state"`
	Peer            string         `json:"peer,omitempty"`
	ConnectedAt     *time.Time     `json:"connected_at,omitempty"`
	BytesReceived   int64          `json:"bytes_received"`
	RecordsReceived int64          `json:"records_received"`
	QueueDepth      int            `json:"queue_depth"`
	LastError       string         `json:"last_error,omitempty"`
	LastErrorAt     *time.Time     `json:"last_error_at,omitempty"`
}

// RecordingStatus describes the open recording session, if any
type RecordingStatus struct {
	Active    bool       `json:"active"`
	SessionID string     `json:"session_id,omitempty"`
	File      string     `json:"file,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Elapsed   string     `json:"elapsed,omitempty"`
	Received  int64      `json:"received"`
	Processed int64      `json:"processed"`
	Written   int64      `json:"written"`
	Malformed int64      `json:"malformed"`
	LastError string     `json:"last_error,omitempty"`
}

// DiscoveryStatus describes the orchestrator pass, if one is running
type DiscoveryStatus struct {
	Running          bool             `json:"running"`
	Trigger          DiscoveryTrigger `json:"trigger,omitempty"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	TimeoutSeconds   float64          `json:"timeout_seconds,omitempty"`
	RemainingSeconds float64          `json:"remaining_seconds"`
	LastResult       *DiscoveryResult `json:"last_result,omitempty"`
}

// DiscoveryResult is the outcome of one orchestrator pass
type DiscoveryResult struct {
	Trigger        DiscoveryTrigger `json:"trigger"`
	MotorFound     bool             `json:"motor_found"`
	MotorSkipped   bool             `json:"motor_skipped"`
	MotorError     string           `json:"motor_error,omitempty"`
	HeadsetFound   bool             `json:"headset_found"`
	HeadsetSkipped bool             `json:"headset_skipped"`
	HeadsetError   string           `json:"headset_error,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	Duration       string           `json:"duration"`
}

// Status is the snapshot the control surface renders
type Status struct {
	ProtocolVersion int             `json:"protocol_version"`
	Motor           MotorStatus     `json:"motor"`
	Headset         HeadsetStatus   `json:"headset"`
	Recording       RecordingStatus `json:"recording"`
	Discovery       DiscoveryStatus `json:"discovery"`
	Timestamp       time.Time       `json:"timestamp"`
}
