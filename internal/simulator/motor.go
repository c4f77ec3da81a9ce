package simulator

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vr-datastreamer/internal/protocol"
)

// Motor answers the controller greeting and counts vibration triggers
type Motor struct {
	scenario MotorScenario
	logger   *zap.Logger

	greetings atomic.Int64
	triggers  atomic.Int64
}

// NewMotor creates a simulated motor controller
func NewMotor(scenario MotorScenario, logger *zap.Logger) *Motor {
	return &Motor{
		scenario: scenario,
		logger:   logger.With(zap.String("component", "motor-sim")),
	}
}

// Greetings returns the number of greetings received
func (m *Motor) Greetings() int64 { return m.greetings.Load() }

// Triggers returns the number of trigger commands received
func (m *Motor) Triggers() int64 { return m.triggers.Load() }

// Serve reads host lines from rw until it fails or ctx ends. rw is closed
// on cancellation when it implements io.Closer.
func (m *Motor) Serve(ctx context.Context, rw io.ReadWriter) error {
	if closer, ok := rw.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	greeting := strings.TrimSpace(protocol.Greeting)
	trigger := strings.TrimSpace(protocol.TriggerCommand)

	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case greeting:
			m.greetings.Add(1)
			if m.scenario.Silent {
				m.logger.Info("Greeting ignored")
				continue
			}
			if !sleep(ctx, m.scenario.BootDelay) {
				return ctx.Err()
			}
			if _, err := io.WriteString(rw, m.scenario.ReadyLine+"\r\n"); err != nil {
				return err
			}
			m.logger.Info("Greeting answered")
		case trigger:
			count := m.triggers.Add(1)
			m.logger.Info("Vibration triggered", zap.Int64("count", count))
		default:
			m.logger.Debug("Unknown command", zap.String("line", line))
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
