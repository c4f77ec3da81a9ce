package simulator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
)

// Headset announces itself over UDP and streams pose records to every host
// that completes the readiness exchange.
type Headset struct {
	scenario HeadsetScenario
	logger   *zap.Logger

	open     atomic.Int64
	sessions atomic.Int64
	sent     atomic.Int64
}

// NewHeadset creates a simulated headset
func NewHeadset(scenario HeadsetScenario, logger *zap.Logger) *Headset {
	return &Headset{
		scenario: scenario,
		logger:   logger.With(zap.String("component", "headset-sim")),
	}
}

// Sessions returns the number of sessions accepted so far
func (h *Headset) Sessions() int64 { return h.sessions.Load() }

// Sent returns the number of records written across sessions
func (h *Headset) Sent() int64 { return h.sent.Load() }

// Run binds the stream listener and the beacon socket and serves until ctx ends
func (h *Headset) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.scenario.StreamListen)
	if err != nil {
		return fmt.Errorf("failed to listen for sessions: %w", err)
	}
	defer ln.Close()

	target, err := net.ResolveUDPAddr("udp4", h.scenario.BeaconTarget)
	if err != nil {
		return fmt.Errorf("invalid beacon target: %w", err)
	}
	beacon, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("failed to open beacon socket: %w", err)
	}
	defer beacon.Close()

	h.logger.Info("Simulated headset running",
		zap.String("stream", ln.Addr().String()),
		zap.String("beacon_target", target.String()),
		zap.Float64("rate_hz", h.scenario.RateHz),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Beacon(ctx, beacon, target)
	}()

	err = h.Serve(ctx, ln)
	wg.Wait()
	return err
}

// Beacon sends the discovery datagram every interval until ctx ends. It
// pauses while a session is open unless the scenario keeps beaconing.
func (h *Headset) Beacon(ctx context.Context, conn net.PacketConn, target net.Addr) {
	ticker := time.NewTicker(h.scenario.BeaconInterval)
	defer ticker.Stop()

	for {
		if h.scenario.KeepBeaconing || h.open.Load() == 0 {
			if _, err := conn.WriteTo([]byte(protocol.DiscoveryBeacon), target); err != nil {
				h.logger.Warn("Failed to send beacon", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve accepts sessions on ln until ctx ends
func (h *Headset) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			h.handle(ctx, conn)
		}()
	}
}

func (h *Headset) handle(ctx context.Context, conn net.Conn) {
	log := h.logger.With(zap.String("host", conn.RemoteAddr().String()))

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		log.Warn("Host did not send readiness", zap.Error(err))
		return
	}
	if strings.TrimSpace(line) != strings.TrimSpace(protocol.ReceiverReady) {
		log.Warn("Unexpected readiness string", zap.String("line", strings.TrimSpace(line)))
		return
	}
	conn.SetReadDeadline(time.Time{})

	if _, err := io.WriteString(conn, h.scenario.Reply+"\n"); err != nil {
		log.Warn("Failed to answer readiness", zap.Error(err))
		return
	}

	h.open.Add(1)
	defer h.open.Add(-1)
	session := h.sessions.Add(1)
	log.Info("Session started", zap.Int64("session", session))

	sent, err := h.stream(ctx, conn)
	switch {
	case err == nil:
		log.Info("Session finished", zap.Int("records", sent))
	case errors.Is(err, net.ErrClosed), ctx.Err() != nil:
		log.Info("Session stopped", zap.Int("records", sent))
	default:
		log.Info("Host left", zap.Int("records", sent), zap.Error(err))
	}
}

// stream writes records at the scenario rate until the record budget, the
// hang-up time or ctx ends it
func (h *Headset) stream(ctx context.Context, w io.Writer) (int, error) {
	interval := time.Duration(float64(time.Second) / h.scenario.RateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var hangUp <-chan time.Time
	if h.scenario.HangUpAfter > 0 {
		timer := time.NewTimer(h.scenario.HangUpAfter)
		defer timer.Stop()
		hangUp = timer.C
	}

	start := time.Now()
	sent := 0
	for h.scenario.Records == 0 || sent < h.scenario.Records {
		record := PoseLine(h.scenario, time.Since(start))
		if h.scenario.MalformedEvery > 0 && (sent+1)%h.scenario.MalformedEvery == 0 {
			record = record[:strings.LastIndexByte(record, ',')]
		}

		if _, err := io.WriteString(w, record+"\n"); err != nil {
			return sent, err
		}
		sent++
		h.sent.Add(1)

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case <-hangUp:
			return sent, nil
		case <-ticker.C:
		}
	}
	return sent, nil
}

// PoseLine renders the pose of all trackers at elapsed time t as one stream
// record: the head bobs in place while the hands circle around it.
func PoseLine(scenario HeadsetScenario, t time.Duration) string {
	phase := 2 * math.Pi * t.Seconds() / scenario.Period.Seconds()
	r := scenario.Radius

	poses := [3]model.TrackedPose{
		{
			Position: model.Vec3{X: 0, Y: 1.6 + 0.02*math.Sin(phase), Z: 0},
			Rotation: yaw(phase / 4),
		},
		{
			Position: model.Vec3{X: -0.2 + r*math.Cos(phase), Y: 1.2, Z: 0.3 + r*math.Sin(phase)},
			Rotation: yaw(phase),
		},
		{
			Position: model.Vec3{X: 0.2 + r*math.Cos(phase+math.Pi), Y: 1.2, Z: 0.3 + r*math.Sin(phase+math.Pi)},
			Rotation: yaw(phase + math.Pi),
		},
	}

	fields := make([]string, 0, model.PoseFieldCount)
	for _, p := range poses {
		for _, v := range []float64{
			p.Position.X, p.Position.Y, p.Position.Z,
			p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Rotation.W,
		} {
			fields = append(fields, strconv.FormatFloat(v, 'f', 5, 64))
		}
	}
	return strings.Join(fields, ",")
}

func yaw(angle float64) model.Quat {
	return model.Quat{Y: math.Sin(angle / 2), W: math.Cos(angle / 2)}
}
