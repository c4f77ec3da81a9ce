package service

import (
	"sync"
	"sync/atomic"
	"time"

	"vr-datastreamer/internal/model"
)

// componentState is the Idle -> Scanning -> Connected lifecycle shared by
// the motor and headset services.
type componentState struct {
	value atomic.Int32
}

func (s *componentState) Load() model.ComponentState {
	return model.ComponentState(s.value.Load())
}

// begin moves Idle to Scanning. It reports ErrBusy or ErrAlreadyConnected
// when another attempt owns the component.
func (s *componentState) begin() error {
	if s.value.CompareAndSwap(int32(model.StateIdle), int32(model.StateScanning)) {
		return nil
	}
	if s.Load() == model.StateConnected {
		return ErrAlreadyConnected
	}
	return ErrBusy
}

// finish ends an attempt started with begin
func (s *componentState) finish(connected bool) {
	next := model.StateIdle
	if connected {
		next = model.StateConnected
	}
	s.value.CompareAndSwap(int32(model.StateScanning), int32(next))
}

// release moves Connected to Idle and reports whether it did
func (s *componentState) release() bool {
	return s.value.CompareAndSwap(int32(model.StateConnected), int32(model.StateIdle))
}

// AttemptResult is delivered on the channel returned by the async entry points
type AttemptResult struct {
	Component string
	Endpoint  string
	Err       error
}

// Success reports whether the attempt connected
func (r AttemptResult) Success() bool {
	return r.Err == nil
}

// lastError keeps the most recent failure reason of a component
type lastError struct {
	mu      sync.RWMutex
	message string
	at      time.Time
}

func (l *lastError) set(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err == nil {
		l.message = ""
		l.at = time.Time{}
		return
	}
	l.message = err.Error()
	l.at = time.Now()
}

func (l *lastError) get() (string, *time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.message == "" {
		return "", nil
	}
	at := l.at
	return l.message, &at
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
