// internal/repository/recording_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vr-datastreamer/internal/database"
	"vr-datastreamer/internal/model"
)

const recordingColumns = `id, base_name, file_path, started_at, stopped_at,
	records_received, records_written, records_malformed,
	motor_port, headset_peer, metadata, created_at, updated_at`

// recordingRepository implements RecordingRepository on SQLite or PostgreSQL
type recordingRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRecordingRepository creates a new recording repository
func NewRecordingRepository(db *database.DB, logger *zap.Logger) RecordingRepository {
	return &recordingRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new session
func (r *recordingRepository) Create(ctx context.Context, session *model.RecordingSession) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO recording_sessions (` + recordingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		session.ID.String(), session.BaseName, session.FilePath,
		session.StartedAt.UTC(), utcOrNil(session.StoppedAt),
		session.RecordsReceived, session.RecordsWritten, session.RecordsMalformed,
		session.MotorPort, session.HeadsetPeer, session.Metadata,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create recording session", zap.Error(err))
		return fmt.Errorf("failed to create recording session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *recordingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecordingSession, error) {
	query := r.db.Rebind(`SELECT ` + recordingColumns + ` FROM recording_sessions WHERE id = ?`)

	session, err := scanRecording(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get recording session: %w", err)
	}

	return session, nil
}

// Finish stores the final counters and stop time
func (r *recordingRepository) Finish(ctx context.Context, session *model.RecordingSession) error {
	session.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE recording_sessions SET
			stopped_at = ?, records_received = ?, records_written = ?,
			records_malformed = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		utcOrNil(session.StoppedAt), session.RecordsReceived, session.RecordsWritten,
		session.RecordsMalformed, session.Metadata, session.UpdatedAt,
		session.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish recording session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, session.ID)
	}

	return nil
}

// List returns sessions newest first, with the total count before paging
func (r *recordingRepository) List(ctx context.Context, filter *model.RecordingFilter) ([]*model.RecordingSession, int, error) {
	if filter == nil {
		filter = &model.RecordingFilter{}
	}

	var conditions []string
	var args []interface{}

	if filter.BaseName != "" {
		conditions = append(conditions, "base_name = ?")
		args = append(args, filter.BaseName)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "stopped_at IS NULL")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := r.db.Rebind("SELECT COUNT(*) FROM recording_sessions" + where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recording sessions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := r.db.Rebind(`SELECT ` + recordingColumns + ` FROM recording_sessions` + where +
		` ORDER BY started_at DESC LIMIT ? OFFSET ?`)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recording sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*model.RecordingSession{}
	for rows.Next() {
		session, err := scanRecording(rows)
		if err != nil {
			r.logger.Error("Failed to scan recording session", zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate recording sessions: %w", err)
	}

	return sessions, total, nil
}

// Delete removes a catalog entry; the CSV file is left in place
func (r *recordingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := r.db.Rebind(`DELETE FROM recording_sessions WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete recording session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row rowScanner) (*model.RecordingSession, error) {
	session := &model.RecordingSession{}
	var stoppedAt sql.NullTime
	var motorPort, headsetPeer sql.NullString

	err := row.Scan(
		&session.ID, &session.BaseName, &session.FilePath,
		&session.StartedAt, &stoppedAt,
		&session.RecordsReceived, &session.RecordsWritten, &session.RecordsMalformed,
		&motorPort, &headsetPeer, &session.Metadata,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if stoppedAt.Valid {
		t := stoppedAt.Time
		session.StoppedAt = &t
	}
	if motorPort.Valid {
		session.MotorPort = &motorPort.String
	}
	if headsetPeer.Valid {
		session.HeadsetPeer = &headsetPeer.String
	}

	return session, nil
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
