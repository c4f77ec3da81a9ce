// internal/service/motor_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/discovery"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/utils"
)

const motorComponent = "motor"

// CandidateLister lists serial ports that may host the motor controller
type CandidateLister interface {
	ListCandidates(ctx context.Context) ([]discovery.Candidate, error)
}

// MotorService owns the serial link to the vibration motor controller
type MotorService struct {
	locator   CandidateLister
	opener    protocol.Opener
	settings  protocol.SerialSettings
	publisher events.Publisher
	logger    *utils.ComponentLogger

	state    componentState
	lastErr  lastError
	triggers atomic.Int64

	// ctx bounds background attempts; Close cancels it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	conn *protocol.DeviceConnection
}

// NewMotorService creates a motor service. A nil opener uses the real serial driver.
func NewMotorService(
	locator CandidateLister,
	opener protocol.Opener,
	settings protocol.SerialSettings,
	publisher events.Publisher,
	logger *zap.Logger,
) *MotorService {
	if opener == nil {
		opener = protocol.OpenSerial
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MotorService{
		ctx:       ctx,
		cancel:    cancel,
		locator:   locator,
		opener:    opener,
		settings:  settings,
		publisher: publisher,
		logger:    utils.NewComponentLogger(logger, motorComponent),
	}
}

// Connect tries every candidate in order and keeps the first one that
// answers the greeting. Later candidates are not touched after a success.
func (s *MotorService) Connect(ctx context.Context) (*protocol.DeviceConnection, error) {
	if err := s.state.begin(); err != nil {
		return nil, err
	}
	return s.attempt(ctx)
}

func (s *MotorService) attempt(ctx context.Context) (*protocol.DeviceConnection, error) {
	s.publishState()

	conn, err := s.connect(ctx)
	if err != nil {
		s.lastErr.set(err)
		s.state.finish(false)
		s.publishState()
		return nil, err
	}

	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		conn.Close()
		s.lastErr.set(err)
		s.state.finish(false)
		s.publishState()
		return nil, err
	}
	s.lastErr.set(nil)
	s.conn = conn
	s.state.finish(true)
	s.mu.Unlock()
	s.publishState()
	return conn, nil
}

func (s *MotorService) connect(ctx context.Context) (*protocol.DeviceConnection, error) {
	candidates, err := s.locator.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(candidates) == 0 {
		s.logger.Info("No serial ports available")
		return nil, fmt.Errorf("%w: no serial ports available", ErrNoDevice)
	}

	s.logger.Info("Scanning serial ports", zap.Int("candidates", len(candidates)))

	var lastFailure error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		started := time.Now()
		conn, err := protocol.Handshake(ctx, s.opener, candidate.Path, s.settings, s.logger.Logger)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.LogHandshake(candidate.Path, "", time.Since(started), err)
			lastFailure = err
			continue
		}

		s.logger.LogHandshake(candidate.Path, protocol.DeviceReady, time.Since(started), nil)
		s.logger.LogConnection("connect", conn.Label(), nil)
		return conn, nil
	}

	return nil, fmt.Errorf("%w: tried %d ports, last: %v", ErrNoDevice, len(candidates), lastFailure)
}

// ConnectAsync runs Connect in the background. The component is claimed
// before returning so a busy or connected component is reported at once.
func (s *MotorService) ConnectAsync() (<-chan AttemptResult, error) {
	if err := s.state.begin(); err != nil {
		return nil, err
	}

	results := make(chan AttemptResult, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(results)

		result := AttemptResult{Component: motorComponent}
		conn, err := s.attempt(s.ctx)
		if err == nil {
			result.Endpoint = conn.Path()
		}
		result.Err = err
		results <- result
	}()
	return results, nil
}

// Disconnect closes the serial link
func (s *MotorService) Disconnect() error {
	s.mu.Lock()
	if !s.state.release() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	err := conn.Close()
	s.logger.LogConnection("disconnect", conn.Label(), err)
	s.publishState()
	return err
}

// Close cancels a running attempt, waits for background attempts and closes the serial link
func (s *MotorService) Close() error {
	s.cancel()
	s.wg.Wait()
	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// SendTestCommand fires the vibration trigger. A write failure is kept as
// the component's last error.
func (s *MotorService) SendTestCommand() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil || s.state.Load() != model.StateConnected {
		return ErrNotConnected
	}

	if err := conn.SendTestCommand(); err != nil {
		s.lastErr.set(err)
		s.logger.Warn("Trigger command failed", zap.String("port", conn.Label()), zap.Error(err))
		return err
	}

	count := s.triggers.Add(1)
	s.logger.Debug("Trigger command sent", zap.String("port", conn.Label()))
	s.publish(model.NewEvent(model.EventMotorTriggered, motorComponent, model.JSONObject{
		"port":     conn.Label(),
		"triggers": count,
	}))
	return nil
}

// Candidates lists the ports a connect attempt would try
func (s *MotorService) Candidates(ctx context.Context) ([]discovery.Candidate, error) {
	return s.locator.ListCandidates(ctx)
}

// Connected reports whether the motor link is up
func (s *MotorService) Connected() bool {
	return s.state.Load() == model.StateConnected
}

// Endpoint returns the connected port path, or "" when disconnected
func (s *MotorService) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ""
	}
	return s.conn.Path()
}

// Status returns the motor part of the status snapshot
func (s *MotorService) Status() model.MotorStatus {
	status := model.MotorStatus{
		State:    s.state.Load(),
		Triggers: s.triggers.Load(),
	}
	status.LastError, status.LastErrorAt = s.lastErr.get()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		status.Port = conn.Path()
		status.Label = conn.Label()
		status.LineSettings = s.settings.String()
		status.ConnectedAt = timePtr(conn.ConnectedAt())
		status.BytesWritten = conn.Stats().BytesWritten
	}
	return status
}

func (s *MotorService) publishState() {
	status := s.Status()
	data := model.JSONObject{
		"state": status.State.String(),
	}
	if status.Port != "" {
		data["port"] = status.Label
	}
	if status.LastError != "" {
		data["last_error"] = status.LastError
	}

	event := model.NewEvent(model.EventMotorStateChanged, motorComponent, data)
	if status.State == model.StateIdle && status.LastError != "" {
		event = event.WithSeverity(model.SeverityWarning)
	}
	s.publish(event)
}

func (s *MotorService) publish(event model.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// isAbsence reports whether err only says that nothing was found
func isAbsence(err error) bool {
	return errors.Is(err, ErrNoDevice) || errors.Is(err, ErrNoPeer)
}
