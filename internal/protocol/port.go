package protocol

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"vr-datastreamer/internal/config"
)

// Port is the part of a serial line the handshake and command channel use.
// go.bug.st/serial ports satisfy it; tests substitute in-memory fakes.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Drain() error
}

// Opener opens a serial device path with the given line settings
type Opener func(path string, mode *serial.Mode) (Port, error)

// OpenSerial opens a real serial device
func OpenSerial(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialSettings holds the line parameters and handshake timing
type SerialSettings struct {
	BaudRate         int
	DataBits         int
	StopBits         int
	Parity           string
	DTR              bool
	RTS              bool
	ReadInterval     time.Duration
	HandshakeTimeout time.Duration
	ResetPulse       time.Duration
	SettleDelay      time.Duration
}

// DefaultSerialSettings returns 9600 8N1 with the controller boot timings
func DefaultSerialSettings() SerialSettings {
	return SerialSettings{
		BaudRate:         9600,
		DataBits:         8,
		StopBits:         1,
		Parity:           "none",
		DTR:              true,
		RTS:              true,
		ReadInterval:     50 * time.Millisecond,
		HandshakeTimeout: 4 * time.Second,
		ResetPulse:       250 * time.Millisecond,
		SettleDelay:      2 * time.Second,
	}
}

// SerialSettingsFromConfig maps the serial config section
func SerialSettingsFromConfig(cfg *config.SerialConfig) SerialSettings {
	return SerialSettings{
		BaudRate:         cfg.BaudRate,
		DataBits:         cfg.DataBits,
		StopBits:         cfg.StopBits,
		Parity:           cfg.Parity,
		DTR:              cfg.DTR,
		RTS:              cfg.RTS,
		ReadInterval:     cfg.ReadInterval,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ResetPulse:       cfg.ResetPulse,
		SettleDelay:      cfg.SettleDelay,
	}
}

// Mode converts the settings into a go.bug.st/serial mode.
// Modem lines are driven after open; setting them in the mode fails on ptys.
func (s SerialSettings) Mode() *serial.Mode {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
	}

	switch s.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch s.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode
}

// String renders the line format, e.g. "9600 8N1"
func (s SerialSettings) String() string {
	parity := "N"
	switch s.Parity {
	case "odd":
		parity = "O"
	case "even":
		parity = "E"
	case "mark":
		parity = "M"
	case "space":
		parity = "S"
	}
	return fmt.Sprintf("%d %d%s%d", s.BaudRate, s.DataBits, parity, s.StopBits)
}
