// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"vr-datastreamer/internal/model"
)

// ErrNotFound is returned when a catalog entry does not exist
var ErrNotFound = errors.New("recording session not found")

// RecordingRepository defines recording catalog operations
type RecordingRepository interface {
	Create(ctx context.Context, session *model.RecordingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecordingSession, error)
	Finish(ctx context.Context, session *model.RecordingSession) error
	List(ctx context.Context, filter *model.RecordingFilter) ([]*model.RecordingSession, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
