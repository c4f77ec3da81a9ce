// internal/model/recording.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// RecordingSession is the catalog entry of one recording file
type RecordingSession struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	BaseName         string     `json:"base_name" db:"base_name"`
	FilePath         string     `json:"file_path" db:"file_path"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	StoppedAt        *time.Time `json:"stopped_at,omitempty" db:"stopped_at"`
	RecordsReceived  int64      `json:"records_received" db:"records_received"`
	RecordsWritten   int64      `json:"records_written" db:"records_written"`
	RecordsMalformed int64      `json:"records_malformed" db:"records_malformed"`
	MotorPort        *string    `json:"motor_port,omitempty" db:"motor_port"`
	HeadsetPeer      *string    `json:"headset_peer,omitempty" db:"headset_peer"`
	Metadata         JSONObject `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the session has not been stopped yet
func (r *RecordingSession) IsActive() bool {
	return r.StoppedAt == nil
}

// Duration returns the recorded time span, up to now for open sessions
func (r *RecordingSession) Duration() time.Duration {
	if r.StoppedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// RecordingFilter narrows catalog listings
type RecordingFilter struct {
	BaseName   string
	ActiveOnly bool
	Limit      int
	Offset     int
}
