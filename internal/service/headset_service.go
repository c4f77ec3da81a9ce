// internal/service/headset_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/discovery/udp"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/utils"
)

const headsetComponent = "headset"

// RecordQueue receives framed records from the stream
type RecordQueue interface {
	protocol.RecordSink
	Len() int
}

// BeaconFunc waits up to timeout for a discovery beacon and returns its sender
type BeaconFunc func(ctx context.Context, settings udp.Settings, timeout time.Duration, logger *zap.Logger) (netip.AddrPort, error)

// HeadsetService owns the discovery listener and the stream connection to the headset
type HeadsetService struct {
	listen    udp.Settings
	stream    protocol.StreamSettings
	queue     RecordQueue
	beacon    BeaconFunc
	publisher events.Publisher
	logger    *utils.ComponentLogger

	state   componentState
	lastErr lastError

	// ctx bounds background attempts; Close cancels it
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	conn       *protocol.StreamConnection
	generation uint64
}

// NewHeadsetService creates a headset service that pushes records into queue
func NewHeadsetService(
	listen udp.Settings,
	stream protocol.StreamSettings,
	queue RecordQueue,
	publisher events.Publisher,
	logger *zap.Logger,
) *HeadsetService {
	ctx, cancel := context.WithCancel(context.Background())
	return &HeadsetService{
		ctx:       ctx,
		cancel:    cancel,
		listen:    listen,
		stream:    stream,
		queue:     queue,
		beacon:    udp.Discover,
		publisher: publisher,
		logger:    utils.NewComponentLogger(logger, headsetComponent),
	}
}

// Discover waits for a beacon, then connects the stream to the sender's address
func (s *HeadsetService) Discover(ctx context.Context, timeout time.Duration) (*protocol.StreamConnection, error) {
	if err := s.state.begin(); err != nil {
		return nil, err
	}
	return s.discover(ctx, timeout)
}

func (s *HeadsetService) discover(ctx context.Context, timeout time.Duration) (*protocol.StreamConnection, error) {
	s.publishState()

	s.logger.Info("Listening for headset beacon",
		zap.Int("port", s.listen.Port),
		zap.Duration("timeout", timeout),
	)

	peer, err := s.beacon(ctx, s.listen, timeout, s.logger.Logger)
	if err != nil {
		if errors.Is(err, udp.ErrNoBeacon) {
			err = fmt.Errorf("%w: no beacon within %s", ErrNoPeer, timeout)
			s.logger.Info("No headset beacon received", zap.Duration("timeout", timeout))
		}
		return nil, s.fail(err)
	}

	s.logger.Info("Headset beacon received", zap.String("from", peer.String()))
	return s.establish(ctx, peer.Addr())
}

// Connect skips the beacon and connects the stream to a known address
func (s *HeadsetService) Connect(ctx context.Context, host netip.Addr) (*protocol.StreamConnection, error) {
	if err := s.state.begin(); err != nil {
		return nil, err
	}
	s.publishState()

	return s.establish(ctx, host)
}

// DiscoverAsync runs Discover in the background. The component is claimed
// before returning so a busy or connected component is reported at once.
func (s *HeadsetService) DiscoverAsync(timeout time.Duration) (<-chan AttemptResult, error) {
	if err := s.state.begin(); err != nil {
		return nil, err
	}

	results := make(chan AttemptResult, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(results)

		result := AttemptResult{Component: headsetComponent}
		conn, err := s.discover(s.ctx, timeout)
		if err == nil {
			result.Endpoint = conn.Peer().String()
		}
		result.Err = err
		results <- result
	}()
	return results, nil
}

func (s *HeadsetService) establish(ctx context.Context, host netip.Addr) (*protocol.StreamConnection, error) {
	s.mu.Lock()
	previous := s.conn
	s.conn = nil
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	onExit := func(err error) {
		s.streamExited(generation, err)
	}

	conn, err := protocol.ConnectStream(ctx, host, s.stream, s.queue, s.logger.Logger, onExit)
	if err != nil {
		s.logger.LogConnection("connect", host.String(), err)
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if err := s.abandoned(ctx); err != nil {
		s.mu.Unlock()
		conn.Close()
		s.logger.LogConnection("connect", conn.Peer().String(), err)
		return nil, s.fail(err)
	}
	if conn.ReceiverExited() {
		s.mu.Unlock()
		conn.Close()
		s.logger.LogConnection("connect", conn.Peer().String(), protocol.ErrStreamEnded)
		return nil, s.fail(protocol.ErrStreamEnded)
	}
	s.conn = conn
	s.lastErr.set(nil)
	s.state.finish(true)
	s.mu.Unlock()

	s.logger.LogConnection("connect", conn.Peer().String(), nil)
	s.publishState()
	return conn, nil
}

// abandoned reports why a freshly opened stream must not be kept
func (s *HeadsetService) abandoned(ctx context.Context) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *HeadsetService) fail(err error) error {
	s.lastErr.set(err)
	s.state.finish(false)
	s.publishState()
	return err
}

// streamExited moves the component to Idle when the receiver stopped on its own
func (s *HeadsetService) streamExited(generation uint64, err error) {
	s.mu.Lock()
	if generation != s.generation || s.conn == nil {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.state.release()
	s.lastErr.set(err)
	s.mu.Unlock()

	conn.Close()
	s.logger.LogConnection("stream-ended", conn.Peer().String(), err)
	s.publishState()
}

// Disconnect stops the receiver and closes the stream socket
func (s *HeadsetService) Disconnect() error {
	s.mu.Lock()
	if !s.state.release() {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.conn = nil
	s.generation++
	s.mu.Unlock()

	err := conn.Close()
	s.logger.LogConnection("disconnect", conn.Peer().String(), err)
	s.publishState()
	return err
}

// Close cancels a running attempt, waits for background attempts and closes the stream
func (s *HeadsetService) Close() error {
	s.cancel()
	s.wg.Wait()
	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	return nil
}

// Connected reports whether the stream is up
func (s *HeadsetService) Connected() bool {
	return s.state.Load() == model.StateConnected
}

// Endpoint returns the connected peer address, or "" when disconnected
func (s *HeadsetService) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ""
	}
	return s.conn.Peer().String()
}

// Status returns the headset part of the status snapshot
func (s *HeadsetService) Status() model.HeadsetStatus {
	status := model.HeadsetStatus{
		State:      s.state.Load(),
		QueueDepth: s.queue.Len(),
	}
	status.LastError, status.LastErrorAt = s.lastErr.get()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		stats := conn.Stats()
		status.Peer = conn.Peer().String()
		status.ConnectedAt = timePtr(conn.ConnectedAt())
		status.BytesReceived = stats.BytesRead
		status.RecordsReceived = stats.RecordsReceived
	}
	return status
}

func (s *HeadsetService) publishState() {
	status := s.Status()
	data := model.JSONObject{
		"state": status.State.String(),
	}
	if status.Peer != "" {
		data["peer"] = status.Peer
	}
	if status.LastError != "" {
		data["last_error"] = status.LastError
	}

	event := model.NewEvent(model.EventHeadsetStateChanged, headsetComponent, data)
	if status.State == model.StateIdle && status.LastError != "" {
		event = event.WithSeverity(model.SeverityWarning)
	}
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}
