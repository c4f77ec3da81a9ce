// internal/service/recording_service.go
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vr-datastreamer/internal/analysis"
	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/recording"
	"vr-datastreamer/internal/repository"
	"vr-datastreamer/internal/utils"
)

const (
	recordingComponent = "recording"
	progressInterval   = time.Second
)

// Endpointer reports the address of a connected peer, or "" when disconnected
type Endpointer interface {
	Endpoint() string
}

// RecordingService owns the recording sink, its drain loop and the catalog entries
type RecordingService struct {
	sink          *recording.Sink
	repo          repository.RecordingRepository
	motor         Endpointer
	headset       Endpointer
	publisher     events.Publisher
	defaultBase   string
	drainInterval time.Duration
	logger        *utils.ComponentLogger

	lastErr lastError

	// catalog is the entry of the open session
	mu      sync.Mutex
	catalog *model.RecordingSession

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRecordingService creates a recording service over sink. motor and
// headset may be nil; they only annotate catalog entries.
func NewRecordingService(
	sink *recording.Sink,
	repo repository.RecordingRepository,
	motor Endpointer,
	headset Endpointer,
	cfg *config.RecordingConfig,
	publisher events.Publisher,
	logger *zap.Logger,
) *RecordingService {
	drainInterval := cfg.DrainInterval
	if drainInterval <= 0 {
		drainInterval = 16 * time.Millisecond
	}
	defaultBase := cfg.DefaultBaseName
	if defaultBase == "" {
		defaultBase = "experiment_data"
	}

	return &RecordingService{
		sink:          sink,
		repo:          repo,
		motor:         motor,
		headset:       headset,
		publisher:     publisher,
		defaultBase:   defaultBase,
		drainInterval: drainInterval,
		logger:        utils.NewComponentLogger(logger, recordingComponent),
	}
}

// RunDrainLoop starts the periodic drain in the background
func (s *RecordingService) RunDrainLoop() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.drainLoop(ctx, s.done)

	s.logger.Info("Drain loop started", zap.Duration("interval", s.drainInterval))
}

func (s *RecordingService) drainLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	drain := time.NewTicker(s.drainInterval)
	defer drain.Stop()
	progress := time.NewTicker(progressInterval)
	defer progress.Stop()

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-drain.C:
			_, err := s.sink.Drain()
			if err != nil && !failing {
				s.logger.Error("Failed to write records", zap.Error(err))
				s.lastErr.set(err)
			}
			failing = err != nil
		case <-progress.C:
			if session := s.sink.Current(); session != nil {
				s.publish(model.NewEvent(model.EventRecordingProgress, recordingComponent, sessionData(session)))
			}
		}
	}
}

// Start opens a new recording file. An open session is stopped first.
func (s *RecordingService) Start(ctx context.Context, baseName string) (*model.RecordingSession, error) {
	if baseName == "" {
		baseName = s.defaultBase
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, current, err := s.sink.Start(baseName)
	if previous != nil {
		s.finishLocked(ctx, previous)
	}
	if err != nil {
		s.lastErr.set(err)
		s.logger.Warn("Failed to start recording", zap.String("base_name", baseName), zap.Error(err))
		return nil, err
	}
	s.lastErr.set(nil)

	entry := &model.RecordingSession{
		ID:          parseSessionID(current.ID),
		BaseName:    current.BaseName,
		FilePath:    current.Path,
		StartedAt:   current.StartedAt,
		MotorPort:   endpointOf(s.motor),
		HeadsetPeer: endpointOf(s.headset),
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("Failed to catalog recording", zap.String("file", current.Path), zap.Error(err))
	}
	s.catalog = entry

	s.publish(model.NewEvent(model.EventRecordingStarted, recordingComponent, sessionData(current)))
	copied := *entry
	return &copied, nil
}

// Stop closes the open recording. It returns nil when nothing was recording.
func (s *RecordingService) Stop(ctx context.Context) (*model.RecordingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished, err := s.sink.Stop()
	if finished == nil {
		return nil, err
	}
	if err != nil {
		s.lastErr.set(err)
		s.logger.Warn("Recording closed with error", zap.String("file", finished.Path), zap.Error(err))
	}
	entry := s.finishLocked(ctx, finished)
	return entry, err
}

func (s *RecordingService) finishLocked(ctx context.Context, finished *recording.Session) *model.RecordingSession {
	entry := s.catalog
	if entry == nil || entry.ID.String() != finished.ID {
		entry = &model.RecordingSession{
			ID:        parseSessionID(finished.ID),
			BaseName:  finished.BaseName,
			FilePath:  finished.Path,
			StartedAt: finished.StartedAt,
		}
	}
	s.catalog = nil

	entry.StoppedAt = finished.StoppedAt
	entry.RecordsReceived = finished.Counters.Received
	entry.RecordsWritten = finished.Counters.Written
	entry.RecordsMalformed = finished.Counters.Malformed

	if err := s.repo.Finish(ctx, entry); err != nil {
		s.logger.Warn("Failed to update recording catalog", zap.String("file", finished.Path), zap.Error(err))
	}

	s.publish(model.NewEvent(model.EventRecordingStopped, recordingComponent, sessionData(finished)))
	copied := *entry
	return &copied
}

// Current returns the open session
func (s *RecordingService) Current() (*recording.Session, error) {
	session := s.sink.Current()
	if session == nil {
		return nil, ErrRecordingNotActive
	}
	return session, nil
}

// List returns catalog entries, newest first
func (s *RecordingService) List(ctx context.Context, filter *model.RecordingFilter) ([]*model.RecordingSession, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one catalog entry
func (s *RecordingService) Get(ctx context.Context, id uuid.UUID) (*model.RecordingSession, error) {
	return s.repo.GetByID(ctx, id)
}

// Stats analyzes the recording file of a catalog entry
func (s *RecordingService) Stats(ctx context.Context, id uuid.UUID) (*analysis.Report, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry.IsActive() {
		if _, err := s.sink.Drain(); err != nil {
			return nil, fmt.Errorf("failed to flush open recording: %w", err)
		}
	}
	return analysis.AnalyzeFile(entry.FilePath)
}

// Status returns the recording part of the status snapshot
func (s *RecordingService) Status() model.RecordingStatus {
	status := model.RecordingStatus{}
	status.LastError, _ = s.lastErr.get()

	session := s.sink.Current()
	if session == nil {
		return status
	}

	status.Active = true
	status.SessionID = session.ID
	status.File = session.Path
	status.StartedAt = timePtr(session.StartedAt)
	status.Elapsed = time.Since(session.StartedAt).Truncate(time.Millisecond).String()
	status.Received = session.Counters.Received
	status.Processed = session.Counters.Processed
	status.Written = session.Counters.Written
	status.Malformed = session.Counters.Malformed
	return status
}

// Shutdown stops the drain loop and closes any open recording with a final drain
func (s *RecordingService) Shutdown(ctx context.Context) error {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := s.Stop(ctx)
	return err
}

func (s *RecordingService) publish(event model.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func sessionData(session *recording.Session) model.JSONObject {
	return model.JSONObject{
		"session_id": session.ID,
		"file":       session.Path,
		"received":   session.Counters.Received,
		"written":    session.Counters.Written,
		"malformed":  session.Counters.Malformed,
	}
}

func endpointOf(source Endpointer) *string {
	if source == nil {
		return nil
	}
	if endpoint := source.Endpoint(); endpoint != "" {
		return &endpoint
	}
	return nil
}

func parseSessionID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.New()
	}
	return parsed
}
