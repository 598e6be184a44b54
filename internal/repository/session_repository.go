package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codecampus-id/academy-api/internal/models"
)

// SessionRepository handles persistence of class sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, class_id, starts_at, status, substitute_coach_id, meeting_url_snapshot, created_at, updated_at`

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByClass returns every session of a class ordered by start time.
func (r *SessionRepository) ListByClass(ctx context.Context, classID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE class_id = $1 ORDER BY starts_at", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListActiveByClass returns the non-cancelled sessions of a class ordered by
// start time. The assignment engine only ever sees this set.
func (r *SessionRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE class_id = $1 AND status <> $2 ORDER BY starts_at", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, classID, models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// LastStartTime returns the latest session start for a class, or nil when the
// class has no sessions yet.
func (r *SessionRepository) LastStartTime(ctx context.Context, classID string) (*time.Time, error) {
	const query = `SELECT MAX(starts_at) FROM sessions WHERE class_id = $1`
	var last *time.Time
	if err := r.db.GetContext(ctx, &last, query, classID); err != nil {
		return nil, fmt.Errorf("last session start: %w", err)
	}
	return last, nil
}

// ExistsAt reports whether the class already has a session at the exact
// start time. Generation dedupes on this.
func (r *SessionRepository) ExistsAt(ctx context.Context, classID string, startsAt time.Time) (bool, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE class_id = $1 AND starts_at = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, startsAt); err != nil {
		return false, fmt.Errorf("check session exists: %w", err)
	}
	return count > 0, nil
}

// BulkCreate inserts the given sessions one by one inside the provided
// executor, typically a transaction.
func (r *SessionRepository) BulkCreate(ctx context.Context, ext sqlx.ExtContext, sessions []models.Session) error {
	const query = `INSERT INTO sessions (id, class_id, starts_at, status, substitute_coach_id, meeting_url_snapshot, created_at, updated_at)
        VALUES (:id, :class_id, :starts_at, :status, :substitute_coach_id, :meeting_url_snapshot, :created_at, :updated_at)`
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = uuid.NewString()
		}
		if _, err := sqlx.NamedExecContext(ctx, ext, query, sessions[i]); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
	}
	return nil
}

// UpdateStatus moves a session to the target status.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	const query = `UPDATE sessions SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// UpdateStartTime reschedules a single session.
func (r *SessionRepository) UpdateStartTime(ctx context.Context, id string, startsAt time.Time) error {
	const query = `UPDATE sessions SET starts_at = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, startsAt); err != nil {
		return fmt.Errorf("update session time: %w", err)
	}
	return nil
}

// UpdateSubstitute records a substitute coach on a session.
func (r *SessionRepository) UpdateSubstitute(ctx context.Context, id string, coachID *string) error {
	const query = `UPDATE sessions SET substitute_coach_id = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, coachID); err != nil {
		return fmt.Errorf("update session substitute: %w", err)
	}
	return nil
}

// Beginx opens a transaction on the underlying database.
func (r *SessionRepository) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
