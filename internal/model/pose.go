// internal/model/pose.go
package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PoseFieldCount is the number of numeric fields in one streamed record:
// head, left hand and right hand, each position XYZ plus rotation XYZW.
const PoseFieldCount = 21

// ErrFieldCount is returned for records that do not carry 21 fields
var ErrFieldCount = errors.New("pose record must have 21 fields")

// Tracker names a tracked point, in stream column order
type Tracker string

const (
	TrackerHead      Tracker = "Head"
	TrackerLeftHand  Tracker = "LeftHand"
	TrackerRightHand Tracker = "RightHand"
)

// Trackers lists the tracked points in stream column order
var Trackers = []Tracker{TrackerHead, TrackerLeftHand, TrackerRightHand}

// Vec3 is a position in metres
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Distance returns the euclidean distance to o
func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Quat is a rotation quaternion
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// TrackedPose is one tracked point: position XYZ then rotation XYZW
type TrackedPose struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
}

// PoseRecord is a parsed stream record
type PoseRecord struct {
	Head      TrackedPose `json:"head"`
	LeftHand  TrackedPose `json:"left_hand"`
	RightHand TrackedPose `json:"right_hand"`
}

// Pose returns the pose of tracker t
func (p *PoseRecord) Pose(t Tracker) TrackedPose {
	switch t {
	case TrackerLeftHand:
		return p.LeftHand
	case TrackerRightHand:
		return p.RightHand
	default:
		return p.Head
	}
}

// ParsePoseRecord parses a comma separated stream record
func ParsePoseRecord(record string) (PoseRecord, error) {
	return ParsePoseFields(strings.Split(record, ","))
}

// ParsePoseFields parses 21 numeric fields in stream column order
func ParsePoseFields(fields []string) (PoseRecord, error) {
	if len(fields) != PoseFieldCount {
		return PoseRecord{}, fmt.Errorf("%w, got %d", ErrFieldCount, len(fields))
	}

	values := make([]float64, PoseFieldCount)
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return PoseRecord{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	pose := func(offset int) TrackedPose {
		v := values[offset : offset+7]
		return TrackedPose{
			Position: Vec3{X: v[0], Y: v[1], Z: v[2]},
			Rotation: Quat{X: v[3], Y: v[4], Z: v[5], W: v[6]},
		}
	}

	return PoseRecord{
		Head:      pose(0),
		LeftHand:  pose(7),
		RightHand: pose(14),
	}, nil
}
