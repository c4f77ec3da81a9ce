// internal/discovery/serial/enumerator.go - OS port enumeration
package serial

import (
	"context"
	"fmt"
	"strings"

	goserial "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"vr-datastreamer/internal/discovery"
	"vr-datastreamer/internal/protocol"
)

// EnumeratorSource lists the ports the OS reports, with USB identity where known
type EnumeratorSource struct {
	boards *BoardDatabase
	list   func() ([]*enumerator.PortDetails, error)
	logger *zap.Logger
}

// NewEnumeratorSource creates an enumerator-backed source
func NewEnumeratorSource(boards *BoardDatabase, logger *zap.Logger) *EnumeratorSource {
	return &EnumeratorSource{
		boards: boards,
		list:   listPorts,
		logger: logger.With(zap.String("source", "enumerator")),
	}
}

// listPorts prefers detailed enumeration and falls back to plain names
func listPorts() ([]*enumerator.PortDetails, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		return details, nil
	}

	names, plainErr := goserial.GetPortsList()
	if plainErr != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	details = make([]*enumerator.PortDetails, 0, len(names))
	for _, name := range names {
		details = append(details, &enumerator.PortDetails{Name: name})
	}
	return details, nil
}

// GetSourceType returns source type
func (s *EnumeratorSource) GetSourceType() string {
	return "enumerator"
}

// IsAvailable checks if port enumeration is available
func (s *EnumeratorSource) IsAvailable() bool {
	return true
}

// Candidates returns known boards first, then the remaining ports in OS order
func (s *EnumeratorSource) Candidates(ctx context.Context) ([]discovery.Candidate, error) {
	ports, err := s.list()
	if err != nil {
		return nil, err
	}

	known := make([]discovery.Candidate, 0, len(ports))
	other := make([]discovery.Candidate, 0, len(ports))

	for _, port := range ports {
		candidate := discovery.Candidate{
			Path:   port.Name,
			Label:  protocol.PortLabel(port.Name),
			Index:  -1,
			Source: s.GetSourceType(),
		}

		if port.IsUSB {
			candidate.VendorID = strings.ToUpper(port.VID)
			candidate.ProductID = strings.ToUpper(port.PID)
			candidate.SerialNumber = port.SerialNumber
			if board, ok := s.boards.Lookup(candidate.VendorID, candidate.ProductID); ok {
				candidate.Board = board
				known = append(known, candidate)
				continue
			}
			candidate.Board = port.Product
		}
		other = append(other, candidate)
	}

	s.logger.Debug("Enumerated serial ports",
		zap.Int("known_boards", len(known)),
		zap.Int("other", len(other)),
	)
	return append(known, other...), ctx.Err()
}
