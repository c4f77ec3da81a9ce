package protocol

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// fakePort plays the controller side of a serial line in memory
type fakePort struct {
	mu          sync.Mutex
	boot        string
	reply       string
	rx          bytes.Buffer
	written     bytes.Buffer
	readTimeout time.Duration
	dtr         []bool
	purged      bool
	closed      bool
	writeErr    error
}

func newFakePort(boot, reply string) *fakePort {
	p := &fakePort{boot: boot, reply: reply}
	p.rx.WriteString(boot)
	return p
}

func (p *fakePort) opener(openErr error) Opener {
	return func(path string, mode *serial.Mode) (Port, error) {
		if openErr != nil {
			return nil, openErr
		}
		return p, nil
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
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

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	if strings.Contains(string(b), Greeting) {
		p.rx.WriteString(p.reply)
	}
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *fakePort) SetDTR(dtr bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dtr = append(p.dtr, dtr)
	return nil
}

func (p *fakePort) SetRTS(bool) error { return errors.New("not supported") }

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.Reset()
	p.purged = true
	return nil
}

func (p *fakePort) ResetOutputBuffer() error { return nil }

func (p *fakePort) Drain() error { return nil }

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}
