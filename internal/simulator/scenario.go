// Package simulator plays the headset and motor controller side of the wire
// protocols for bench testing without hardware.
package simulator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vr-datastreamer/internal/protocol"
)

// HeadsetScenario configures the simulated headset
type HeadsetScenario struct {
	// BeaconTarget receives the discovery datagrams, usually the broadcast address
	BeaconTarget   string        `yaml:"beacon_target"`
	BeaconInterval time.Duration `yaml:"beacon_interval"`
	// KeepBeaconing continues announcing while a session is open
	KeepBeaconing bool   `yaml:"keep_beaconing"`
	StreamListen  string `yaml:"stream_listen"`
	// Reply answers the receiver readiness string. Anything else makes the host reject the session.
	Reply          string        `yaml:"reply"`
	RateHz         float64       `yaml:"rate_hz"`
	Records        int           `yaml:"records"`
	MalformedEvery int           `yaml:"malformed_every"`
	Radius         float64       `yaml:"radius"`
	Period         time.Duration `yaml:"period"`
	// HangUpAfter closes each session after the given time; zero streams until the host leaves
	HangUpAfter time.Duration `yaml:"hang_up_after"`
}

// MotorScenario configures the simulated motor controller
type MotorScenario struct {
	ReadyLine string        `yaml:"ready_line"`
	BootDelay time.Duration `yaml:"boot_delay"`
	Silent    bool          `yaml:"silent"`
}

// Scenario is the simulator file format
type Scenario struct {
	Headset HeadsetScenario `yaml:"headset"`
	Motor   MotorScenario   `yaml:"motor"`
}

// DefaultScenario streams at 90 Hz to a host on the default ports
func DefaultScenario() Scenario {
	return Scenario{
		Headset: HeadsetScenario{
			BeaconTarget:   fmt.Sprintf("255.255.255.255:%d", protocol.DefaultDiscoveryPort),
			BeaconInterval: time.Second,
			StreamListen:   fmt.Sprintf(":%d", protocol.DefaultStreamPort),
			Reply:          protocol.HeadsetReady,
			RateHz:         90,
			Radius:         0.5,
			Period:         4 * time.Second,
		},
		Motor: MotorScenario{
			ReadyLine: protocol.DeviceReady,
			BootDelay: 1500 * time.Millisecond,
		},
	}
}

// LoadScenario reads a yaml scenario. Missing keys keep their defaults and
// an empty path returns the defaults.
func LoadScenario(path string) (Scenario, error) {
	scenario := DefaultScenario()
	if path == "" {
		return scenario, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	if err := yaml.Unmarshal(b, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := scenario.validate(); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

func (s *Scenario) validate() error {
	if s.Headset.RateHz <= 0 {
		return fmt.Errorf("headset.rate_hz must be positive")
	}
	if s.Headset.BeaconInterval <= 0 {
		return fmt.Errorf("headset.beacon_interval must be positive")
	}
	if s.Headset.Records < 0 || s.Headset.MalformedEvery < 0 {
		return fmt.Errorf("headset.records and headset.malformed_every must not be negative")
	}
	if s.Headset.Period <= 0 {
		return fmt.Errorf("headset.period must be positive")
	}
	if s.Motor.BootDelay < 0 {
		return fmt.Errorf("motor.boot_delay must not be negative")
	}
	return nil
}
