// internal/discovery/udp/listener.go - headset beacon listener
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/protocol"
)

// ErrNoBeacon is returned when the listening window closes without a beacon
var ErrNoBeacon = errors.New("no discovery beacon received")

const maxDatagramSize = 1500

// Settings holds the listener parameters
type Settings struct {
	Port         int
	PollInterval time.Duration
}

// DefaultSettings listens on the well-known discovery port
func DefaultSettings() Settings {
	return Settings{
		Port:         protocol.DefaultDiscoveryPort,
		PollInterval: 50 * time.Millisecond,
	}
}

// SettingsFromConfig maps the network config section
func SettingsFromConfig(cfg *config.NetworkConfig) Settings {
	return Settings{
		Port:         cfg.DiscoveryPort,
		PollInterval: cfg.DiscoveryPollInterval,
	}
}

// Listener is a bound beacon socket
type Listener struct {
	conn     *net.UDPConn
	settings Settings
	logger   *zap.Logger
}

// Bind opens the datagram socket with broadcast reception and address reuse
func Bind(ctx context.Context, settings Settings, logger *zap.Logger) (*Listener, error) {
	lc := net.ListenConfig{Control: setSocketOptions}

	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", settings.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery port %d: %w", settings.Port, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn %T", pc)
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultSettings().PollInterval
	}

	return &Listener{
		conn:     conn,
		settings: settings,
		logger:   logger.With(zap.String("component", "beacon"), zap.Stringer("addr", conn.LocalAddr())),
	}, nil
}

// LocalAddr returns the bound address
func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Await waits up to timeout for the beacon and returns its sender. The
// remaining time is recomputed every poll so cancellation is seen promptly.
func (l *Listener) Await(ctx context.Context, timeout time.Duration) (netip.AddrPort, error) {
	start := time.Now()
	buf := make([]byte, maxDatagramSize)

	for {
		if err := ctx.Err(); err != nil {
			return netip.AddrPort{}, err
		}

		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			return netip.AddrPort{}, ErrNoBeacon
		}
		wait := min(l.settings.PollInterval, remaining)

		if err := l.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return netip.AddrPort{}, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, sender, err := l.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
			case errors.Is(err, net.ErrClosed):
				return netip.AddrPort{}, err
			default:
				// Windows reports ICMP port unreachable on the next read.
				l.logger.Debug("Beacon read failed", zap.Error(err))
				time.Sleep(wait)
			}
			continue
		}

		if !protocol.IsBeacon(buf[:n]) {
			l.logger.Debug("Ignoring datagram",
				zap.Stringer("from", sender),
				zap.Int("bytes", n),
			)
			continue
		}

		peer := netip.AddrPortFrom(sender.Addr().Unmap(), sender.Port())
		l.logger.Info("Discovery beacon received",
			zap.Stringer("from", peer),
			zap.Duration("waited", time.Since(start)),
		)
		return peer, nil
	}
}

// Close releases the socket
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Discover binds, waits for one beacon and closes the socket again
func Discover(ctx context.Context, settings Settings, timeout time.Duration, logger *zap.Logger) (netip.AddrPort, error) {
	listener, err := Bind(ctx, settings, logger)
	if err != nil {
		return netip.AddrPort{}, err
	}
	defer listener.Close()

	return listener.Await(ctx, timeout)
}
