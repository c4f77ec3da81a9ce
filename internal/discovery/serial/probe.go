package serial

import (
	goserial "go.bug.st/serial"
)

// OpenProbe opens path at 9600 8N1 and closes it at once. Opening a board
// with auto-reset wiring reboots it; the handshake pulses reset anyway.
func OpenProbe(path string) error {
	port, err := goserial.Open(path, &goserial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		StopBits: goserial.OneStopBit,
		Parity:   goserial.NoParity,
	})
	if err != nil {
		return err
	}
	return port.Close()
}
