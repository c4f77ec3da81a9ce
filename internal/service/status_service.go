package service

import (
	"time"

	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
)

// StatusService assembles the snapshot shown by the control surface
type StatusService struct {
	motor     *MotorService
	headset   *HeadsetService
	recording *RecordingService
	discovery *DiscoveryService
}

// NewStatusService creates a status aggregator
func NewStatusService(motor *MotorService, headset *HeadsetService, recording *RecordingService, discovery *DiscoveryService) *StatusService {
	return &StatusService{
		motor:     motor,
		headset:   headset,
		recording: recording,
		discovery: discovery,
	}
}

// Snapshot returns the current status of every component
func (s *StatusService) Snapshot() model.Status {
	return model.Status{
		ProtocolVersion: protocol.ProtocolVersion,
		Motor:           s.motor.Status(),
		Headset:         s.headset.Status(),
		Recording:       s.recording.Status(),
		Discovery:       s.discovery.Status(),
		Timestamp:       time.Now(),
	}
}
