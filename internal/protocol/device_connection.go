package protocol

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DeviceConnection is an open, handshaken serial line to the motor controller
type DeviceConnection struct {
	path        string
	label       string
	settings    SerialSettings
	port        Port
	logger      *zap.Logger
	mutex       sync.Mutex
	closed      bool
	connectedAt time.Time
	stats       counters
}

// PortLabel derives a display label from a device path: `\\.\COM7` becomes
// "COM7" and "/dev/ttyACM0" becomes "ttyACM0".
func PortLabel(path string) string {
	if strings.HasPrefix(path, `\\.\`) {
		return strings.TrimPrefix(path, `\\.\`)
	}
	if strings.HasPrefix(strings.ToUpper(path), "COM") {
		return path
	}
	return filepath.Base(path)
}

// Handshake opens path, resets the controller and exchanges the greeting.
// On any failure the port is closed before returning.
func Handshake(ctx context.Context, open Opener, path string, settings SerialSettings, logger *zap.Logger) (*DeviceConnection, error) {
	log := logger.With(zap.String("port", path))

	port, err := open(path, settings.Mode())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	reply, err := greet(ctx, port, settings, log)
	if err != nil {
		port.Close()
		return nil, err
	}

	if !IsDeviceReady(reply) {
		port.Close()
		return nil, fmt.Errorf("%w on %s: %q", ErrHandshakeMismatch, path, reply)
	}

	dc := &DeviceConnection{
		path:        path,
		label:       PortLabel(path),
		settings:    settings,
		port:        port,
		logger:      log,
		connectedAt: time.Now(),
	}
	dc.stats.wrote(len(Greeting))
	dc.stats.read(len(reply))

	log.Info("Motor controller handshake completed",
		zap.String("label", dc.label),
		zap.String("line", settings.String()),
	)
	return dc, nil
}

// greet runs the reset pulse, purge, greeting write and reply read.
func greet(ctx context.Context, port Port, settings SerialSettings, log *zap.Logger) (string, error) {
	// Modem lines are best effort: USB CDC bridges and ptys may refuse them.
	if err := port.SetDTR(settings.DTR); err != nil {
		log.Debug("Failed to set DTR", zap.Error(err))
	}
	if err := port.SetRTS(settings.RTS); err != nil {
		log.Debug("Failed to set RTS", zap.Error(err))
	}

	// A zero timeout would make reads non-blocking and miss the delayed boot reply.
	if err := port.SetReadTimeout(settings.ReadInterval); err != nil {
		return "", fmt.Errorf("failed to set read timeout: %w", err)
	}

	if err := port.SetDTR(false); err != nil {
		log.Debug("Failed to clear DTR for reset pulse", zap.Error(err))
	}
	if err := sleepContext(ctx, settings.ResetPulse); err != nil {
		return "", err
	}
	if err := port.SetDTR(true); err != nil {
		log.Debug("Failed to raise DTR after reset pulse", zap.Error(err))
	}

	if err := sleepContext(ctx, settings.SettleDelay); err != nil {
		return "", err
	}

	if err := port.ResetInputBuffer(); err != nil {
		log.Debug("Failed to purge boot output", zap.Error(err))
	}

	if err := writeAll(port, []byte(Greeting)); err != nil {
		return "", fmt.Errorf("failed to send greeting: %w", err)
	}
	if err := port.Drain(); err != nil {
		log.Debug("Failed to drain greeting", zap.Error(err))
	}

	return readLine(ctx, port, settings.HandshakeTimeout)
}

// readLine reads byte by byte until a newline, dropping carriage returns and
// blank lines. A partial line that is pending when the timeout expires is
// returned as is.
func readLine(ctx context.Context, port Port, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	line := make([]byte, 0, 64)
	buf := make([]byte, 1)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read handshake reply: %w", err)
		}
		if n == 0 {
			continue
		}

		switch buf[0] {
		case '\n':
			if len(line) > 0 {
				return string(line), nil
			}
		case '\r':
		default:
			line = append(line, buf[0])
		}
	}

	if len(line) > 0 {
		return string(line), nil
	}
	return "", ErrHandshakeTimeout
}

// Path returns the device path
func (dc *DeviceConnection) Path() string {
	return dc.path
}

// Label returns the display label
func (dc *DeviceConnection) Label() string {
	return dc.label
}

// ConnectedAt returns the handshake completion time
func (dc *DeviceConnection) ConnectedAt() time.Time {
	return dc.connectedAt
}

// Stats returns a copy of the line counters
func (dc *DeviceConnection) Stats() Stats {
	return dc.stats.snapshot()
}

// SendTestCommand writes the trigger command. The controller never acknowledges it.
func (dc *DeviceConnection) SendTestCommand() error {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	if dc.closed {
		return ErrConnectionClosed
	}

	if err := writeAll(dc.port, []byte(TriggerCommand)); err != nil {
		dc.stats.errorCount.Add(1)
		return fmt.Errorf("failed to send trigger to %s: %w", dc.label, err)
	}
	dc.stats.wrote(len(TriggerCommand))

	if err := dc.port.Drain(); err != nil {
		dc.logger.Debug("Failed to drain trigger", zap.Error(err))
	}
	return nil
}

// Close releases the serial handle. Safe to call more than once.
func (dc *DeviceConnection) Close() error {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true

	if err := dc.port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dc.label, err)
	}

	dc.logger.Info("Serial port closed")
	return nil
}

func writeAll(port Port, data []byte) error {
	n, err := port.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("%w: wrote %d of %d bytes", errShortWrite, n, len(data))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
