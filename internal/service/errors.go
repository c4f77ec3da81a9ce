package service

import "errors"

var (
	// ErrNoDevice is returned when no candidate port answered the greeting
	ErrNoDevice = errors.New("no motor controller found")
	// ErrNoPeer is returned when no headset announced itself before the timeout
	ErrNoPeer = errors.New("no headset found")
	// ErrBusy is returned when an attempt for the same component is already running
	ErrBusy = errors.New("operation already in progress")
	// ErrAlreadyConnected is returned when connecting a component that is connected
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned by operations that need a live connection
	ErrNotConnected = errors.New("not connected")
	// ErrRecordingNotActive is returned when no recording session is open
	ErrRecordingNotActive = errors.New("recording not active")
)
