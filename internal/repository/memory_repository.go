// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vr-datastreamer/internal/model"
)

// memoryRepository keeps the catalog for the lifetime of the process.
// It backs the API when the catalog database is disabled.
type memoryRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*model.RecordingSession
}

// NewMemoryRecordingRepository creates an in-process catalog
func NewMemoryRecordingRepository() RecordingRepository {
	return &memoryRepository{sessions: make(map[uuid.UUID]*model.RecordingSession)}
}

func (r *memoryRepository) Create(_ context.Context, session *model.RecordingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID]; exists {
		return fmt.Errorf("recording session %s already exists", session.ID)
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.RecordingSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	copied := *session
	return &copied, nil
}

func (r *memoryRepository) Finish(_ context.Context, session *model.RecordingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, session.ID)
	}

	session.UpdatedAt = time.Now().UTC()
	stored.StoppedAt = session.StoppedAt
	stored.RecordsReceived = session.RecordsReceived
	stored.RecordsWritten = session.RecordsWritten
	stored.RecordsMalformed = session.RecordsMalformed
	stored.Metadata = session.Metadata
	stored.UpdatedAt = session.UpdatedAt
	return nil
}

func (r *memoryRepository) List(_ context.Context, filter *model.RecordingFilter) ([]*model.RecordingSession, int, error) {
	if filter == nil {
		filter = &model.RecordingFilter{}
	}

	r.mu.RLock()
	matched := make([]*model.RecordingSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		if filter.BaseName != "" && session.BaseName != filter.BaseName {
			continue
		}
		if filter.ActiveOnly && !session.IsActive() {
			continue
		}
		copied := *session
		matched = append(matched, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := min(max(filter.Offset, 0), total)
	end := min(offset+limit, total)

	return matched[offset:end], total, nil
}

func (r *memoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}
