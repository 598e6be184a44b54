package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codecampus-id/academy-api/internal/models"
)

// ClassBlockRepository handles persistence of block instances.
type ClassBlockRepository struct {
	db *sqlx.DB
}

// NewClassBlockRepository constructs the repository.
func NewClassBlockRepository(db *sqlx.DB) *ClassBlockRepository {
	return &ClassBlockRepository{db: db}
}

const classBlockColumns = `id, class_id, block_id, start_date, end_date, showcase_date, status, created_at, updated_at`

// FindByID returns a block instance by its ID.
func (r *ClassBlockRepository) FindByID(ctx context.Context, id string) (*models.ClassBlock, error) {
	query := fmt.Sprintf("SELECT %s FROM class_blocks WHERE id = $1", classBlockColumns)
	var block models.ClassBlock
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// ListByClass returns the block instances of a class ordered by start date.
func (r *ClassBlockRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassBlock, error) {
	query := fmt.Sprintf("SELECT %s FROM class_blocks WHERE class_id = $1 ORDER BY start_date", classBlockColumns)
	var blocks []models.ClassBlock
	if err := r.db.SelectContext(ctx, &blocks, query, classID); err != nil {
		return nil, fmt.Errorf("list class blocks: %w", err)
	}
	return blocks, nil
}

// Create persists a new block instance.
func (r *ClassBlockRepository) Create(ctx context.Context, block *models.ClassBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.Status == "" {
		block.Status = models.BlockStatusUpcoming
	}
	now := time.Now().UTC()
	block.CreatedAt = now
	block.UpdatedAt = now
	const query = `INSERT INTO class_blocks (id, class_id, block_id, start_date, end_date, showcase_date, status, created_at, updated_at)
        VALUES (:id, :class_id, :block_id, :start_date, :end_date, :showcase_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create class block: %w", err)
	}
	return nil
}

// UpdateDates rewrites the instance-level date fields of a block.
func (r *ClassBlockRepository) UpdateDates(ctx context.Context, id string, startDate, endDate time.Time, showcaseDate *time.Time) error {
	const query = `UPDATE class_blocks SET start_date = $2, end_date = $3, showcase_date = $4, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, startDate, endDate, showcaseDate); err != nil {
		return fmt.Errorf("update class block dates: %w", err)
	}
	return nil
}

// UpdateStatus moves a block instance to the target status.
func (r *ClassBlockRepository) UpdateStatus(ctx context.Context, id string, status models.BlockStatus) error {
	const query = `UPDATE class_blocks SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update class block status: %w", err)
	}
	return nil
}

// Delete removes a block instance. Lessons under it cascade at the schema
// level.
func (r *ClassBlockRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM class_blocks WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class block: %w", err)
	}
	return nil
}
