package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/recording"
)

// callLog records the order of component attempts across fakes
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeMotor struct {
	log       *callLog
	connected bool
	err       error
	delay     time.Duration
}

func (m *fakeMotor) Connected() bool { return m.connected }

func (m *fakeMotor) Connect(ctx context.Context) (*protocol.DeviceConnection, error) {
	m.log.add("motor")
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	m.connected = true
	return nil, nil
}

type fakeHeadset struct {
	log       *callLog
	connected bool
	err       error
	block     chan struct{}
	timeout   time.Duration
}

func (h *fakeHeadset) Connected() bool { return h.connected }

func (h *fakeHeadset) Discover(ctx context.Context, timeout time.Duration) (*protocol.StreamConnection, error) {
	h.timeout = timeout
	h.log.add("headset")
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	h.connected = true
	return nil, nil
}

func discoveryConfig() *config.DiscoveryConfig {
	return &config.DiscoveryConfig{
		AutoOnStart:   true,
		AutoTimeout:   20 * time.Second,
		ManualTimeout: 30 * time.Second,
	}
}

func TestDiscoveryRunsMotorThenHeadset(t *testing.T) {
	log := &callLog{}
	motor := &fakeMotor{log: log}
	headset := &fakeHeadset{log: log}
	events := &eventRecorder{}

	ds := NewDiscoveryService(motor, headset, discoveryConfig(), events, zaptest.NewLogger(t))

	result, err := ds.Run(context.Background(), model.TriggerAuto)
	require.NoError(t, err)

	assert.Equal(t, []string{"motor", "headset"}, log.list())
	assert.True(t, result.MotorFound)
	assert.True(t, result.HeadsetFound)
	assert.False(t, result.MotorSkipped)
	assert.Equal(t, 20*time.Second, headset.timeout)
	assert.Equal(t, []model.EventType{model.EventDiscoveryStarted, model.EventDiscoveryCompleted}, events.types())

	status := ds.Status()
	assert.False(t, status.Running)
	assert.Zero(t, status.RemainingSeconds)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, model.TriggerAuto, status.LastResult.Trigger)
	assert.Zero(t, ds.TimeRemaining())
}

func TestDiscoverySkipsConnectedComponents(t *testing.T) {
	log := &callLog{}
	motor := &fakeMotor{log: log, connected: true}
	headset := &fakeHeadset{log: log}

	ds := NewDiscoveryService(motor, headset, discoveryConfig(), nil, zaptest.NewLogger(t))

	result, err := ds.Run(context.Background(), model.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []string{"headset"}, log.list())
	assert.True(t, result.MotorSkipped)
	assert.True(t, result.MotorFound)
	assert.Equal(t, 30*time.Second, headset.timeout)

	result, err = ds.Run(context.Background(), model.TriggerManual)
	require.NoError(t, err)
	assert.True(t, result.HeadsetSkipped)
	assert.Equal(t, []string{"headset"}, log.list())
}

func TestDiscoveryReportsFailuresAndContinues(t *testing.T) {
	log := &callLog{}
	motor := &fakeMotor{log: log, err: fmt.Errorf("%w: tried 3 ports", ErrNoDevice)}
	headset := &fakeHeadset{log: log, err: ErrNoPeer}

	ds := NewDiscoveryService(motor, headset, discoveryConfig(), nil, zaptest.NewLogger(t))

	result, err := ds.Run(context.Background(), model.TriggerAuto)
	require.NoError(t, err)

	assert.Equal(t, []string{"motor", "headset"}, log.list())
	assert.False(t, result.MotorFound)
	assert.Contains(t, result.MotorError, "tried 3 ports")
	assert.False(t, result.HeadsetFound)
	assert.Equal(t, ErrNoPeer.Error(), result.HeadsetError)
}

func TestDiscoveryRejectsOverlappingPass(t *testing.T) {
	log := &callLog{}
	headset := &fakeHeadset{log: log, block: make(chan struct{})}

	cfg := discoveryConfig()
	cfg.AutoTimeout = 2 * time.Second
	ds := NewDiscoveryService(&fakeMotor{log: log, connected: true}, headset, cfg, nil, zaptest.NewLogger(t))

	results, err := ds.RunAsync(model.TriggerAuto)
	require.NoError(t, err)

	require.Eventually(t, ds.Running, time.Second, 5*time.Millisecond)

	_, err = ds.RunAsync(model.TriggerManual)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = ds.Run(context.Background(), model.TriggerManual)
	assert.ErrorIs(t, err, ErrBusy)

	remaining := ds.TimeRemaining()
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 2*time.Second)

	status := ds.Status()
	assert.True(t, status.Running)
	assert.Equal(t, model.TriggerAuto, status.Trigger)
	assert.Equal(t, 2.0, status.TimeoutSeconds)

	close(headset.block)
	result := <-results
	require.NotNil(t, result)
	assert.True(t, result.HeadsetFound)
	assert.False(t, ds.Running())
}

func TestDiscoveryCloseAbortsPass(t *testing.T) {
	log := &callLog{}
	headset := &fakeHeadset{log: log, block: make(chan struct{})}
	ds := NewDiscoveryService(&fakeMotor{log: log, connected: true}, headset, discoveryConfig(), nil, zaptest.NewLogger(t))

	results, err := ds.RunAsync(model.TriggerAuto)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(log.list()) == 1 }, time.Second, 5*time.Millisecond)

	ds.Close()

	select {
	case result := <-results:
		assert.False(t, result.HeadsetFound)
		assert.Contains(t, result.HeadsetError, context.Canceled.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not stop after Close")
	}
}

func TestDiscoveryCloseWaitsForHeadsetHandshake(t *testing.T) {
	headset := newTestHeadsetService(t, startSlowHeadset(t, 400*time.Millisecond), recording.NewQueue(), &eventRecorder{})
	headset.beacon = beaconFrom("127.0.0.1:40000")

	ds := NewDiscoveryService(&fakeMotor{log: &callLog{}, connected: true}, headset, discoveryConfig(), nil, zaptest.NewLogger(t))

	results, err := ds.RunAsync(model.TriggerAuto)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return headset.Status().State == model.StateScanning
	}, time.Second, 5*time.Millisecond)

	ds.Close()
	assert.False(t, ds.Running(), "Close returns only after the pass ended")
	require.NoError(t, headset.Close())

	result := <-results
	require.NotNil(t, result)
	assert.False(t, result.HeadsetFound)

	time.Sleep(500 * time.Millisecond)
	assert.False(t, headset.Connected())
	assert.Empty(t, headset.Endpoint())
}

func TestDiscoveryCountdownRestartsForHeadset(t *testing.T) {
	log := &callLog{}
	headset := &fakeHeadset{log: log, block: make(chan struct{})}
	cfg := discoveryConfig()
	cfg.AutoTimeout = 400 * time.Millisecond
	ds := NewDiscoveryService(&fakeMotor{log: log, err: ErrNoDevice, delay: 300 * time.Millisecond}, headset, cfg, nil, zaptest.NewLogger(t))
	defer ds.Close()

	results, err := ds.RunAsync(model.TriggerAuto)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(log.list()) == 2 }, time.Second, 5*time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	assert.Greater(t, ds.TimeRemaining(), 150*time.Millisecond)
	assert.Equal(t, 400*time.Millisecond, headset.timeout)

	close(headset.block)
	<-results
	assert.Zero(t, ds.TimeRemaining())
}

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Zero(t, remaining(time.Time{}, 20*time.Second, start))
	assert.Equal(t, 15*time.Second, remaining(start, 20*time.Second, start.Add(5*time.Second)))
	assert.Zero(t, remaining(start, 20*time.Second, start.Add(25*time.Second)))
}
