// internal/discovery/serial/range.go - fixed serial address space
package serial

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/discovery"
	"vr-datastreamer/internal/protocol"
)

// RangeSource maps a bounded index range onto platform device paths,
// e.g. `\\.\COM%d` for 1..40 on Windows or /dev/ttyACM%d for 0..19 on Linux.
type RangeSource struct {
	patterns []string
	first    int
	last     int
	logger   *zap.Logger
}

// NewRangeSource creates a range source
func NewRangeSource(patterns []string, first, last int, logger *zap.Logger) *RangeSource {
	return &RangeSource{
		patterns: patterns,
		first:    first,
		last:     last,
		logger:   logger.With(zap.String("source", "range")),
	}
}

// NewRangeSourceFromConfig builds the range from the serial config section
func NewRangeSourceFromConfig(cfg *config.SerialConfig, logger *zap.Logger) *RangeSource {
	return NewRangeSource(cfg.PortPatterns, cfg.FirstIndex, cfg.LastIndex, logger)
}

// GetSourceType returns source type
func (s *RangeSource) GetSourceType() string {
	return "range"
}

// IsAvailable reports whether any pattern is configured
func (s *RangeSource) IsAvailable() bool {
	return len(s.patterns) > 0
}

// Candidates returns one candidate per index, in index order
func (s *RangeSource) Candidates(ctx context.Context) ([]discovery.Candidate, error) {
	candidates := make([]discovery.Candidate, 0, (s.last-s.first+1)*len(s.patterns))

	for i := s.first; i <= s.last; i++ {
		for _, pattern := range s.patterns {
			path := fmt.Sprintf(pattern, i)
			candidates = append(candidates, discovery.Candidate{
				Path:   path,
				Label:  protocol.PortLabel(path),
				Index:  i,
				Source: s.GetSourceType(),
			})
		}
	}

	return candidates, ctx.Err()
}
