package protocol

import "errors"

var (
	// ErrHandshakeTimeout is returned when a peer stays silent for the whole handshake window
	ErrHandshakeTimeout = errors.New("handshake timed out")
	// ErrHandshakeMismatch is returned when a peer answers without the expected announcement
	ErrHandshakeMismatch = errors.New("unexpected handshake reply")
	// ErrConnectionClosed is returned by operations on a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	errShortWrite       = errors.New("short write")
)
