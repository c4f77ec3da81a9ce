// Package analysis computes movement statistics for recorded sessions.
package analysis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"vr-datastreamer/internal/model"
)

// maxLineSize bounds one recording line
const maxLineSize = 1 << 20

// ErrNoSamples is returned when a recording holds no usable row
var ErrNoSamples = errors.New("recording contains no pose samples")

// TrackerStats is the movement summary of one tracked point
type TrackerStats struct {
	Tracker    model.Tracker `json:"tracker"`
	PathLength float64       `json:"path_length_m"`
	MeanSpeed  float64       `json:"mean_speed_mps"`
	MaxSpeed   float64       `json:"max_speed_mps"`
}

// Report summarizes one recording file
type Report struct {
	File            string         `json:"file,omitempty"`
	Samples         int            `json:"samples"`
	Skipped         int            `json:"skipped"`
	DurationSeconds float64        `json:"duration_seconds"`
	SampleRate      float64        `json:"sample_rate_hz"`
	Trackers        []TrackerStats `json:"trackers"`
}

// Tracker returns the stats of t, or false when it is not in the report
func (r *Report) Tracker(t model.Tracker) (TrackerStats, bool) {
	for _, stats := range r.Trackers {
		if stats.Tracker == t {
			return stats, true
		}
	}
	return TrackerStats{}, false
}

type sample struct {
	millis int64
	pose   model.PoseRecord
}

type accumulator struct {
	path      float64
	speedSum  float64
	speedSegs int
	maxSpeed  float64
}

// AnalyzeFile reads a recording CSV from disk
func AnalyzeFile(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer file.Close()

	report, err := Analyze(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	report.File = path
	return report, nil
}

// Analyze reads a recording: a header row, then `<elapsed_ms>,<21 fields>`
// lines. Records are stored verbatim, so lines are split on commas without
// CSV quoting. Lines that do not parse are counted as skipped.
func Analyze(r io.Reader) (*Report, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	report := &Report{}
	accumulators := make([]accumulator, len(model.Trackers))

	var (
		previous *sample
		maxTime  int64
	)

	first := true
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		row := strings.Split(text, ",")
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "Timestamp") {
				continue
			}
		}

		current, ok := parseRow(row)
		if !ok {
			report.Skipped++
			continue
		}
		report.Samples++
		if current.millis > maxTime {
			maxTime = current.millis
		}

		if previous != nil {
			dt := float64(current.millis-previous.millis) / 1000.0
			for i, tracker := range model.Trackers {
				distance := current.pose.Pose(tracker).Position.Distance(previous.pose.Pose(tracker).Position)
				acc := &accumulators[i]
				acc.path += distance
				if dt > 0 {
					speed := distance / dt
					acc.speedSum += speed
					acc.speedSegs++
					acc.maxSpeed = math.Max(acc.maxSpeed, speed)
				}
			}
		}
		previous = &current
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	if report.Samples == 0 {
		return nil, ErrNoSamples
	}

	report.DurationSeconds = float64(maxTime) / 1000.0
	if report.DurationSeconds > 0 {
		report.SampleRate = float64(report.Samples) / report.DurationSeconds
	}

	report.Trackers = make([]TrackerStats, len(model.Trackers))
	for i, tracker := range model.Trackers {
		acc := accumulators[i]
		stats := TrackerStats{
			Tracker:    tracker,
			PathLength: acc.path,
			MaxSpeed:   acc.maxSpeed,
		}
		if acc.speedSegs > 0 {
			stats.MeanSpeed = acc.speedSum / float64(acc.speedSegs)
		}
		report.Trackers[i] = stats
	}
	return report, nil
}

func parseRow(row []string) (sample, bool) {
	if len(row) != model.PoseFieldCount+1 {
		return sample{}, false
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil {
		return sample{}, false
	}

	pose, err := model.ParsePoseFields(row[1:])
	if err != nil {
		return sample{}, false
	}
	return sample{millis: millis, pose: pose}, true
}
