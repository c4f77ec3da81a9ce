// internal/service/discovery_service.go
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/utils"
)

// MotorLink is the part of MotorService the orchestrator drives
type MotorLink interface {
	Connected() bool
	Connect(ctx context.Context) (*protocol.DeviceConnection, error)
}

// HeadsetLink is the part of HeadsetService the orchestrator drives
type HeadsetLink interface {
	Connected() bool
	Discover(ctx context.Context, timeout time.Duration) (*protocol.StreamConnection, error)
}

// DiscoveryService runs discovery passes: motor controller first, then headset.
// Components that are already connected are skipped.
type DiscoveryService struct {
	motor         MotorLink
	headset       HeadsetLink
	autoTimeout   time.Duration
	manualTimeout time.Duration
	publisher     events.Publisher
	logger        *utils.ServiceLogger

	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	trigger    model.DiscoveryTrigger
	startedAt  time.Time
	phaseStart time.Time
	timeout    time.Duration
	runCancel  context.CancelFunc
	passDone   chan struct{}
	lastResult *model.DiscoveryResult
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(
	motor MotorLink,
	headset HeadsetLink,
	cfg *config.DiscoveryConfig,
	publisher events.Publisher,
	logger *zap.Logger,
) *DiscoveryService {
	ctx, cancel := context.WithCancel(context.Background())

	return &DiscoveryService{
		motor:         motor,
		headset:       headset,
		autoTimeout:   cfg.AutoTimeout,
		manualTimeout: cfg.ManualTimeout,
		publisher:     publisher,
		logger:        utils.NewServiceLogger(logger, "discovery-service"),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Run performs one discovery pass and blocks until it completes
func (ds *DiscoveryService) Run(ctx context.Context, trigger model.DiscoveryTrigger) (*model.DiscoveryResult, error) {
	if !ds.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	done := ds.beginPass()
	return ds.run(ctx, trigger, done), nil
}

// RunAsync starts a discovery pass in the background. The pass outlives the
// caller and is bounded by Close.
func (ds *DiscoveryService) RunAsync(trigger model.DiscoveryTrigger) (<-chan *model.DiscoveryResult, error) {
	if !ds.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	done := ds.beginPass()
	results := make(chan *model.DiscoveryResult, 1)
	go func() {
		defer close(results)
		results <- ds.run(ds.ctx, trigger, done)
	}()
	return results, nil
}

// beginPass registers the pass that just won the running flag so Close can wait for it
func (ds *DiscoveryService) beginPass() chan struct{} {
	done := make(chan struct{})
	ds.mu.Lock()
	ds.passDone = done
	ds.mu.Unlock()
	return done
}

func (ds *DiscoveryService) run(parent context.Context, trigger model.DiscoveryTrigger, done chan struct{}) *model.DiscoveryResult {
	defer close(done)
	defer ds.running.Store(false)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(ds.ctx, cancel)
	defer stop()

	timeout := ds.timeoutFor(trigger)
	started := time.Now()

	ds.mu.Lock()
	ds.trigger = trigger
	ds.startedAt = started
	ds.phaseStart = started
	ds.timeout = timeout
	ds.runCancel = cancel
	ds.mu.Unlock()

	defer func() {
		ds.mu.Lock()
		ds.startedAt = time.Time{}
		ds.phaseStart = time.Time{}
		ds.timeout = 0
		ds.runCancel = nil
		ds.mu.Unlock()
	}()

	op := utils.NewOperationLogger(ds.logger.Logger, "discovery", uuid.NewString())
	op.Start(zap.String("trigger", string(trigger)), zap.Duration("timeout", timeout))
	ds.publish(model.NewEvent(model.EventDiscoveryStarted, "discovery", model.JSONObject{
		"trigger":         string(trigger),
		"timeout_seconds": timeout.Seconds(),
	}))

	result := &model.DiscoveryResult{
		Trigger:   trigger,
		StartedAt: started,
	}

	if ds.motor.Connected() {
		result.MotorFound = true
		result.MotorSkipped = true
		op.Step("Motor controller already connected")
	} else {
		op.Step("Searching for motor controller")
		if _, err := ds.motor.Connect(ctx); err != nil {
			result.MotorError = err.Error()
			ds.logAttempt(op, "motor", err)
		} else {
			result.MotorFound = true
			op.Step("Motor controller found")
		}
	}

	if ds.headset.Connected() {
		result.HeadsetFound = true
		result.HeadsetSkipped = true
		op.Step("Headset already connected")
	} else {
		op.Step("Searching for headset")
		// The beacon wait gets the whole budget, so the countdown restarts with it.
		ds.mu.Lock()
		ds.phaseStart = time.Now()
		ds.mu.Unlock()
		if _, err := ds.headset.Discover(ctx, timeout); err != nil {
			result.HeadsetError = err.Error()
			ds.logAttempt(op, "headset", err)
		} else {
			result.HeadsetFound = true
			op.Step("Headset found")
		}
	}

	result.Duration = time.Since(started).Truncate(time.Millisecond).String()
	op.Success(
		zap.Bool("motor_found", result.MotorFound),
		zap.Bool("headset_found", result.HeadsetFound),
	)

	ds.mu.Lock()
	ds.lastResult = result
	ds.mu.Unlock()

	ds.publish(model.NewEvent(model.EventDiscoveryCompleted, "discovery", model.JSONObject{
		"trigger":       string(trigger),
		"motor_found":   result.MotorFound,
		"headset_found": result.HeadsetFound,
		"duration":      result.Duration,
	}))
	return result
}

// logAttempt keeps "nothing found" at info level; anything else is a failure
func (ds *DiscoveryService) logAttempt(op *utils.OperationLogger, component string, err error) {
	if isAbsence(err) {
		op.Step("Component not found", zap.String("target", component), zap.String("reason", err.Error()))
		return
	}
	op.Step("Component attempt failed", zap.String("target", component), zap.Error(err))
}

func (ds *DiscoveryService) timeoutFor(trigger model.DiscoveryTrigger) time.Duration {
	if trigger == model.TriggerManual {
		return ds.manualTimeout
	}
	return ds.autoTimeout
}

// Running reports whether a pass is in progress
func (ds *DiscoveryService) Running() bool {
	return ds.running.Load()
}

// TimeRemaining returns the budget left in the current phase of the running
// pass, or zero when idle. The headset phase restarts the countdown.
func (ds *DiscoveryService) TimeRemaining() time.Duration {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return remaining(ds.phaseStart, ds.timeout, time.Now())
}

func remaining(startedAt time.Time, timeout time.Duration, now time.Time) time.Duration {
	if startedAt.IsZero() {
		return 0
	}
	left := timeout - now.Sub(startedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Cancel aborts the running pass, if any
func (ds *DiscoveryService) Cancel() {
	ds.mu.RLock()
	cancel := ds.runCancel
	ds.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
}

// Close aborts the running pass and waits for it to return. Background
// passes started afterwards end at once.
func (ds *DiscoveryService) Close() {
	ds.cancel()
	ds.Cancel()

	ds.mu.RLock()
	done := ds.passDone
	ds.mu.RUnlock()

	if done != nil {
		<-done
	}
}

// Status returns the discovery part of the status snapshot
func (ds *DiscoveryService) Status() model.DiscoveryStatus {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	status := model.DiscoveryStatus{
		Running:    ds.running.Load(),
		LastResult: ds.lastResult,
	}
	if !ds.startedAt.IsZero() {
		status.Trigger = ds.trigger
		status.StartedAt = timePtr(ds.startedAt)
		status.TimeoutSeconds = ds.timeout.Seconds()
		status.RemainingSeconds = remaining(ds.phaseStart, ds.timeout, time.Now()).Seconds()
	}
	return status
}

func (ds *DiscoveryService) publish(event model.Event) {
	if ds.publisher != nil {
		ds.publisher.Publish(event)
	}
}
