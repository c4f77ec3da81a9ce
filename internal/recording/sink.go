package recording

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vr-datastreamer/internal/model"
)

// ErrNotActive is returned when no recording session is open
var ErrNotActive = errors.New("recording not active")

// Header is the fixed CSV header row
var Header = []string{
	"Timestamp",
	"HeadPosX", "HeadPosY", "HeadPosZ", "HeadRotX", "HeadRotY", "HeadRotZ", "HeadRotW",
	"LeftHandPosX", "LeftHandPosY", "LeftHandPosZ", "LeftHandRotX", "LeftHandRotY", "LeftHandRotZ", "LeftHandRotW",
	"RightHandPosX", "RightHandPosY", "RightHandPosZ", "RightHandRotX", "RightHandRotY", "RightHandRotZ", "RightHandRotW",
}

// Counters are the per-session record counters
type Counters struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Written   int64 `json:"written"`
	Malformed int64 `json:"malformed"`
}

// Session describes one recording file
type Session struct {
	ID        string     `json:"id"`
	BaseName  string     `json:"base_name"`
	Path      string     `json:"path"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Counters  Counters   `json:"counters"`
}

// Options configures a Sink
type Options struct {
	OutputDir string
	MaxSuffix int
}

// Sink writes queued records to a CSV file, one session at a time
type Sink struct {
	mu        sync.Mutex
	queue     *Queue
	options   Options
	logger    *zap.Logger
	now       func() time.Time
	file      *os.File
	writer    *bufio.Writer
	origin    time.Time
	session   *Session
	processed int64
	written   int64
	malformed int64
}

// NewSink creates a sink draining queue
func NewSink(queue *Queue, options Options, logger *zap.Logger) *Sink {
	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if options.MaxSuffix < 1 {
		options.MaxSuffix = 999
	}

	return &Sink{
		queue:   queue,
		options: options,
		logger:  logger.With(zap.String("component", "recording")),
		now:     time.Now,
	}
}

// Start opens a collision-free file for base, writes the header, resets the
// counters and clears the queue. A session that is already open is stopped
// once the new file is ready; a rejected start leaves it running. On failure
// no new file handle stays open.
func (s *Sink) Start(base string) (*Session, *Session, error) {
	name, err := NormalizeBaseName(base)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.options.OutputDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	started := s.now()
	path, err := UniqueFilename(s.options.OutputDir, name, s.options.MaxSuffix, started)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	writer := bufio.NewWriter(file)
	writer.WriteString(strings.Join(Header, ",") + "\n")
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, nil, fmt.Errorf("failed to write header: %w", err)
	}

	var previous *Session
	if s.session != nil {
		prev, err := s.stopLocked()
		if err != nil {
			s.logger.Warn("Previous recording closed with error", zap.Error(err))
		}
		previous = prev
	}

	// Clearing under the sink lock keeps drain and reset serialized.
	if dropped := s.queue.Clear(); dropped > 0 {
		s.logger.Debug("Discarded stale records", zap.Int("count", dropped))
	}

	s.file = file
	s.writer = writer
	s.origin = started
	s.processed, s.written, s.malformed = 0, 0, 0
	s.session = &Session{
		ID:        uuid.NewString(),
		BaseName:  name,
		Path:      path,
		StartedAt: started,
	}

	s.logger.Info("Recording started", zap.String("file", path), zap.String("session_id", s.session.ID))
	return previous, s.snapshotLocked(), nil
}

// Drain writes every queued record verbatim as `<elapsed_ms>,<record>` and
// flushes. It returns how many records were written.
func (s *Sink) Drain() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainLocked()
}

func (s *Sink) drainLocked() (int, error) {
	if s.session == nil {
		return 0, nil
	}

	count := 0
	for {
		record, ok := s.queue.Pop()
		if !ok {
			break
		}
		s.processed++

		if _, err := model.ParsePoseRecord(record); err != nil {
			s.malformed++
		}

		elapsed := s.now().Sub(s.origin).Milliseconds()
		line := strconv.FormatInt(elapsed, 10) + "," + record + "\n"
		if _, err := s.writer.WriteString(line); err != nil {
			return count, fmt.Errorf("failed to write record: %w", err)
		}
		s.written++
		count++
	}

	if count > 0 {
		if err := s.writer.Flush(); err != nil {
			return count, fmt.Errorf("failed to flush %s: %w", s.session.Path, err)
		}
	}
	return count, nil
}

// Stop drains what is left, flushes and closes the file. It returns the
// finished session, or nil when nothing was recording.
func (s *Sink) Stop() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Sink) stopLocked() (*Session, error) {
	if s.session == nil {
		return nil, nil
	}

	_, drainErr := s.drainLocked()

	flushErr := s.writer.Flush()
	closeErr := s.file.Close()

	stopped := s.now()
	s.session.StoppedAt = &stopped
	finished := s.snapshotLocked()

	s.logger.Info("Recording stopped",
		zap.String("file", finished.Path),
		zap.Int64("written", finished.Counters.Written),
		zap.Int64("malformed", finished.Counters.Malformed),
	)

	s.file = nil
	s.writer = nil
	s.session = nil

	return finished, errors.Join(drainErr, flushErr, closeErr)
}

// Active reports whether a session is open
func (s *Sink) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Current returns a copy of the open session, or nil
func (s *Sink) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	return s.snapshotLocked()
}

// QueueDepth returns the number of records waiting to be written
func (s *Sink) QueueDepth() int {
	return s.queue.Len()
}

func (s *Sink) snapshotLocked() *Session {
	copied := *s.session
	copied.Counters = Counters{
		Received:  s.queue.Pushed(),
		Processed: s.processed,
		Written:   s.written,
		Malformed: s.malformed,
	}
	return &copied
}
