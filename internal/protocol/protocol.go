// internal/protocol/protocol.go
package protocol

import (
	"bytes"
	"strings"
	"sync/atomic"
	"time"
)

// ProtocolVersion is reserved for future negotiation. It is never put on
// the wire: deployed controllers and headsets only accept the strings below.
const ProtocolVersion = 1

// Serial wire protocol (host <-> motor controller)
const (
	Greeting       = "HELLO\r\n"
	DeviceReady    = "Vibration Motor Controller Ready"
	TriggerCommand = "1\n"
)

// Network protocol (host <-> headset)
const (
	DiscoveryBeacon = "VR_HEADSET_DISCOVERY"
	ReceiverReady   = "DATA_RECEIVER_READY\n"
	HeadsetReady    = "VR_HEADSET_READY"

	DefaultStreamPort    = 55000
	DefaultDiscoveryPort = 55001
)

// IsBeacon reports whether a datagram payload is the discovery beacon.
// Trailing whitespace and NUL padding are ignored.
func IsBeacon(payload []byte) bool {
	trimmed := bytes.TrimRight(payload, "\x00")
	return string(bytes.TrimSpace(trimmed)) == DiscoveryBeacon
}

// IsDeviceReady reports whether a handshake reply announces the controller
func IsDeviceReady(line string) bool {
	return strings.Contains(line, DeviceReady)
}

// IsHeadsetReady reports whether a session reply announces the headset
func IsHeadsetReady(reply string) bool {
	return strings.Contains(reply, HeadsetReady)
}

// Stats is a point-in-time copy of connection counters
type Stats struct {
	BytesWritten    int64     `json:"bytes_written"`
	BytesRead       int64     `json:"bytes_read"`
	RecordsReceived int64     `json:"records_received"`
	ErrorCount      int64     `json:"error_count"`
	LastActivity    time.Time `json:"last_activity"`
}

type counters struct {
	bytesWritten    atomic.Int64
	bytesRead       atomic.Int64
	recordsReceived atomic.Int64
	errorCount      atomic.Int64
	lastActivity    atomic.Int64
}

func (c *counters) wrote(n int) {
	c.bytesWritten.Add(int64(n))
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *counters) read(n int) {
	c.bytesRead.Add(int64(n))
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *counters) snapshot() Stats {
	s := Stats{
		BytesWritten:    c.bytesWritten.Load(),
		BytesRead:       c.bytesRead.Load(),
		RecordsReceived: c.recordsReceived.Load(),
		ErrorCount:      c.errorCount.Load(),
	}
	if ts := c.lastActivity.Load(); ts != 0 {
		s.LastActivity = time.Unix(0, ts)
	}
	return s
}
