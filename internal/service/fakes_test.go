package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"vr-datastreamer/internal/discovery"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
)

// scriptedPort answers the greeting with a fixed reply
type scriptedPort struct {
	mu          sync.Mutex
	reply       string
	rx          bytes.Buffer
	written     bytes.Buffer
	readTimeout time.Duration
	closed      bool
	writeErr    error
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if p.rx.Len() > 0 {
		n, _ := p.rx.Read(b)
		p.mu.Unlock()
		return n, nil
	}
	timeout := p.readTimeout
	p.mu.Unlock()

	time.Sleep(timeout)
	return 0, nil
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	if strings.Contains(string(b), protocol.Greeting) {
		p.rx.WriteString(p.reply)
	}
	return len(b), nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptedPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *scriptedPort) SetDTR(bool) error        { return nil }
func (p *scriptedPort) SetRTS(bool) error        { return nil }
func (p *scriptedPort) ResetInputBuffer() error  { return nil }
func (p *scriptedPort) ResetOutputBuffer() error { return nil }
func (p *scriptedPort) Drain() error             { return nil }

func (p *scriptedPort) reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = false
	p.rx.Reset()
}

func (p *scriptedPort) setWriteErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *scriptedPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *scriptedPort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// portBench maps device paths to scripted ports and records open order
type portBench struct {
	mu     sync.Mutex
	ports  map[string]*scriptedPort
	opened []string
	gate   chan struct{}
}

func newPortBench() *portBench {
	return &portBench{ports: make(map[string]*scriptedPort)}
}

func (b *portBench) add(path, reply string) *scriptedPort {
	port := &scriptedPort{reply: reply}
	b.ports[path] = port
	return port
}

func (b *portBench) open(path string, _ *serial.Mode) (protocol.Port, error) {
	if b.gate != nil {
		<-b.gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened = append(b.opened, path)
	port, ok := b.ports[path]
	if !ok {
		return nil, errors.New("no such device")
	}
	port.reopen()
	return port, nil
}

func (b *portBench) openedPaths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

func (b *portBench) lister(paths ...string) CandidateLister {
	return staticLister(paths)
}

type staticLister []string

func (l staticLister) ListCandidates(ctx context.Context) ([]discovery.Candidate, error) {
	candidates := make([]discovery.Candidate, 0, len(l))
	for i, path := range l {
		candidates = append(candidates, discovery.Candidate{Path: path, Label: protocol.PortLabel(path), Index: i, Source: "static"})
	}
	return candidates, nil
}

func fastSerialSettings() protocol.SerialSettings {
	settings := protocol.DefaultSerialSettings()
	settings.ReadInterval = 5 * time.Millisecond
	settings.HandshakeTimeout = 100 * time.Millisecond
	settings.ResetPulse = 0
	settings.SettleDelay = 0
	return settings
}

// eventRecorder collects published events
type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) Publish(event model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]model.EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func (r *eventRecorder) last(eventType model.EventType) (model.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i], true
		}
	}
	return model.Event{}, false
}

// fixedEndpoint satisfies Endpointer
type fixedEndpoint string

func (f fixedEndpoint) Endpoint() string { return string(f) }
