package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
)

// ErrStreamEnded reports that the headset closed the stream
var ErrStreamEnded = errors.New("stream closed by peer")

// RecordSink receives records in arrival order
type RecordSink interface {
	Push(record string)
}

// StreamSettings holds the session socket parameters
type StreamSettings struct {
	Port           int
	ConnectTimeout time.Duration
	PollInterval   time.Duration
	BufferSize     int
}

// DefaultStreamSettings returns the stream port with a 5s connect phase
func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		Port:           DefaultStreamPort,
		ConnectTimeout: 5 * time.Second,
		PollInterval:   10 * time.Millisecond,
		BufferSize:     1024,
	}
}

// StreamSettingsFromConfig maps the network config section
func StreamSettingsFromConfig(cfg *config.NetworkConfig) StreamSettings {
	return StreamSettings{
		Port:           cfg.StreamPort,
		ConnectTimeout: cfg.ConnectTimeout,
		PollInterval:   cfg.ReceivePollInterval,
		BufferSize:     cfg.ReceiveBufferSize,
	}
}

// StreamConnection is an established session with the headset plus its
// background receiver.
type StreamConnection struct {
	peer        netip.AddrPort
	conn        net.Conn
	settings    StreamSettings
	sink        RecordSink
	logger      *zap.Logger
	onExit      func(error)
	cancel      context.CancelFunc
	done        chan struct{}
	closeOnce   sync.Once
	closeErr    error
	active      atomic.Bool
	exited      atomic.Bool
	connectedAt time.Time
	stats       counters
}

// ConnectStream dials the headset at host, performs the readiness exchange and
// starts the receiver. onExit, if set, runs once when the peer ends the
// stream or the socket fails; it is not called for Close.
func ConnectStream(ctx context.Context, host netip.Addr, settings StreamSettings, sink RecordSink, logger *zap.Logger, onExit func(error)) (*StreamConnection, error) {
	peer := netip.AddrPortFrom(host.Unmap(), uint16(settings.Port))
	address := net.JoinHostPort(peer.Addr().String(), strconv.Itoa(int(peer.Port())))
	log := logger.With(zap.String("peer", address))

	dialer := &net.Dialer{Timeout: settings.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	initial, err := exchangeReady(ctx, conn, settings)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to clear deadline: %w", err)
	}

	receiveCtx, cancel := context.WithCancel(context.Background())
	sc := &StreamConnection{
		peer:        peer,
		conn:        conn,
		settings:    settings,
		sink:        sink,
		logger:      log,
		onExit:      onExit,
		cancel:      cancel,
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
	sc.stats.wrote(len(ReceiverReady))
	sc.active.Store(true)

	go sc.receive(receiveCtx, initial)

	log.Info("Headset stream established")
	return sc, nil
}

// exchangeReady sends the readiness string and waits for the headset's
// answer. Bytes that follow the answer line are returned for the receiver.
// Cancelling ctx interrupts the wait.
func exchangeReady(ctx context.Context, conn net.Conn, settings StreamSettings) ([]byte, error) {
	if err := conn.SetDeadline(time.Now().Add(settings.ConnectTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set connect deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, ReceiverReady); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to send receiver ready: %w", err)
	}

	buf := make([]byte, settings.BufferSize)
	n, err := conn.Read(buf)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if n == 0 {
		if err == nil || isTimeout(err) {
			return nil, ErrHandshakeTimeout
		}
		return nil, fmt.Errorf("failed to read headset reply: %w", err)
	}

	reply := buf[:n]
	if !IsHeadsetReady(string(reply)) {
		return nil, fmt.Errorf("%w: %q", ErrHandshakeMismatch, string(bytes.TrimSpace(reply)))
	}

	if idx := bytes.IndexByte(reply, '\n'); idx >= 0 && idx+1 < len(reply) {
		rest := make([]byte, len(reply)-idx-1)
		copy(rest, reply[idx+1:])
		return rest, nil
	}
	return nil, nil
}

func (sc *StreamConnection) receive(ctx context.Context, initial []byte) {
	var framer lineFramer
	var exitErr error

	defer func() {
		if rest := framer.Flush(); rest != "" {
			sc.deliver(rest)
		}
		sc.active.Store(false)
		sc.exited.Store(true)
		close(sc.done)

		if ctx.Err() == nil && sc.onExit != nil {
			sc.onExit(exitErr)
		}
	}()

	for _, record := range framer.Feed(initial) {
		sc.deliver(record)
	}

	buf := make([]byte, sc.settings.BufferSize)
	for ctx.Err() == nil {
		if err := sc.conn.SetReadDeadline(time.Now().Add(sc.settings.PollInterval)); err != nil {
			exitErr = fmt.Errorf("failed to set read deadline: %w", err)
			return
		}

		n, err := sc.conn.Read(buf)
		if n > 0 {
			sc.stats.read(n)
			for _, record := range framer.Feed(buf[:n]) {
				sc.deliver(record)
			}
		}

		if err != nil {
			switch {
			case isTimeout(err):
				continue
			case ctx.Err() != nil:
				return
			case errors.Is(err, io.EOF):
				sc.logger.Info("Headset closed the stream")
				exitErr = ErrStreamEnded
			default:
				sc.stats.errorCount.Add(1)
				sc.logger.Warn("Stream receive failed", zap.Error(err))
				exitErr = fmt.Errorf("stream receive failed: %w", err)
			}
			return
		}
	}
}

func (sc *StreamConnection) deliver(record string) {
	sc.stats.recordsReceived.Add(1)
	sc.sink.Push(record)
}

// Peer returns the headset stream endpoint
func (sc *StreamConnection) Peer() netip.AddrPort {
	return sc.peer
}

// ConnectedAt returns the time the readiness exchange completed
func (sc *StreamConnection) ConnectedAt() time.Time {
	return sc.connectedAt
}

// Active reports whether the receiver is still reading
func (sc *StreamConnection) Active() bool {
	return sc.active.Load()
}

// ReceiverExited reports whether the receiver goroutine has returned
func (sc *StreamConnection) ReceiverExited() bool {
	return sc.exited.Load()
}

// Done is closed when the receiver goroutine returns
func (sc *StreamConnection) Done() <-chan struct{} {
	return sc.done
}

// Stats returns a copy of the stream counters
func (sc *StreamConnection) Stats() Stats {
	return sc.stats.snapshot()
}

// Close stops the receiver, waits for it to return and only then closes the
// socket. Safe to call more than once and from onExit.
func (sc *StreamConnection) Close() error {
	sc.closeOnce.Do(func() {
		sc.cancel()
		// Wake a pending Read instead of waiting out the poll interval.
		_ = sc.conn.SetReadDeadline(time.Now())
		<-sc.done

		if err := sc.conn.Close(); err != nil {
			sc.closeErr = fmt.Errorf("failed to close stream: %w", err)
		}
		sc.logger.Info("Headset stream closed")
	})
	return sc.closeErr
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
