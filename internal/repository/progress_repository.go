package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codecampus-id/academy-api/internal/models"
)

// ProgressRepository handles persistence of coder journey rows.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `id, coder_id, level_id, block_id, journey_order, status, completed_at, created_at`

// ListByCoderAndLevel returns a coder's journey rows in journey order.
func (r *ProgressRepository) ListByCoderAndLevel(ctx context.Context, coderID, levelID string) ([]models.CoderBlockProgress, error) {
	query := fmt.Sprintf("SELECT %s FROM coder_block_progress WHERE coder_id = $1 AND level_id = $2 ORDER BY journey_order", progressColumns)
	var rows []models.CoderBlockProgress
	if err := r.db.SelectContext(ctx, &rows, query, coderID, levelID); err != nil {
		return nil, fmt.Errorf("list journey rows: %w", err)
	}
	return rows, nil
}

// BulkCreate inserts journey rows inside the provided executor.
func (r *ProgressRepository) BulkCreate(ctx context.Context, ext sqlx.ExtContext, rows []models.CoderBlockProgress) error {
	const query = `INSERT INTO coder_block_progress (id, coder_id, level_id, block_id, journey_order, status, completed_at, created_at)
        VALUES (:id, :coder_id, :level_id, :block_id, :journey_order, :status, :completed_at, :created_at)`
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		rows[i].CreatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, ext, query, rows[i]); err != nil {
			return fmt.Errorf("insert journey row: %w", err)
		}
	}
	return nil
}

// UpdateStatus moves a journey row to the target status, stamping or
// clearing completed_at to match.
func (r *ProgressRepository) UpdateStatus(ctx context.Context, id string, status models.ProgressStatus, completedAt *time.Time) error {
	const query = `UPDATE coder_block_progress SET status = $2, completed_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completedAt); err != nil {
		return fmt.Errorf("update journey row: %w", err)
	}
	return nil
}

// DeleteByCoderAndLevel wipes a coder's journey for a level. Seeding rebuilds
// it when the stored rows no longer match the catalog.
func (r *ProgressRepository) DeleteByCoderAndLevel(ctx context.Context, coderID, levelID string) error {
	const query = `DELETE FROM coder_block_progress WHERE coder_id = $1 AND level_id = $2`
	if _, err := r.db.ExecContext(ctx, query, coderID, levelID); err != nil {
		return fmt.Errorf("delete journey rows: %w", err)
	}
	return nil
}

// Beginx opens a transaction on the underlying database.
func (r *ProgressRepository) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
