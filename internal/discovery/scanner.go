// internal/discovery/scanner.go - serial candidate locator
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CandidateSource produces possible motor controller device paths
type CandidateSource interface {
	Candidates(ctx context.Context) ([]Candidate, error)
	GetSourceType() string
	IsAvailable() bool
}

// Candidate is a serial device that might be the motor controller.
// Candidates are rebuilt on every scan.
type Candidate struct {
	Path         string `json:"path"`
	Label        string `json:"label"`
	Index        int    `json:"index"`
	Source       string `json:"source"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Board        string `json:"board,omitempty"`
}

// Prober checks that a path can be opened for read and write, closing it again
type Prober func(path string) error

// Locator merges candidate sources and keeps the paths that open
type Locator struct {
	sources []CandidateSource
	probe   Prober
	logger  *zap.Logger
}

// NewLocator creates a locator; probe may be nil to skip the open test
func NewLocator(probe Prober, logger *zap.Logger) *Locator {
	return &Locator{
		probe:  probe,
		logger: logger.With(zap.String("component", "locator")),
	}
}

// RegisterSource appends a candidate source. Earlier sources win on duplicate paths.
func (l *Locator) RegisterSource(source CandidateSource) {
	l.sources = append(l.sources, source)
	l.logger.Debug("Candidate source registered", zap.String("type", source.GetSourceType()))
}

// ListCandidates enumerates every source and returns the candidates that
// could be opened. Absent ports are not errors; they are left out.
func (l *Locator) ListCandidates(ctx context.Context) ([]Candidate, error) {
	merged := make([]Candidate, 0, 8)
	index := make(map[string]int)

	for _, source := range l.sources {
		if !source.IsAvailable() {
			l.logger.Debug("Candidate source not available, skipping", zap.String("type", source.GetSourceType()))
			continue
		}

		candidates, err := source.Candidates(ctx)
		if err != nil {
			l.logger.Warn("Candidate source failed", zap.String("type", source.GetSourceType()), zap.Error(err))
			continue
		}

		for _, c := range candidates {
			if i, seen := index[c.Path]; seen {
				merged[i] = mergeCandidate(merged[i], c)
				continue
			}
			index[c.Path] = len(merged)
			merged = append(merged, c)
		}
	}

	if l.probe == nil {
		return merged, nil
	}

	available := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		if err := ctx.Err(); err != nil {
			return available, fmt.Errorf("candidate scan interrupted: %w", err)
		}
		if err := l.probe(c.Path); err != nil {
			continue
		}
		available = append(available, c)
	}

	l.logger.Debug("Candidate scan completed",
		zap.Int("probed", len(merged)),
		zap.Int("available", len(available)),
	)
	return available, nil
}

// mergeCandidate fills USB identity gaps of a from b
func mergeCandidate(a, b Candidate) Candidate {
	if a.VendorID == "" {
		a.VendorID = b.VendorID
		a.ProductID = b.ProductID
	}
	if a.SerialNumber == "" {
		a.SerialNumber = b.SerialNumber
	}
	if a.Board == "" {
		a.Board = b.Board
	}
	return a
}
