package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/codecampus-id/academy-api/internal/models"
)

// CurriculumRepository reads the immutable curriculum catalog: levels, block
// templates and lesson templates. The engine never writes to these tables.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// FindLevel returns a level by its ID.
func (r *CurriculumRepository) FindLevel(ctx context.Context, id string) (*models.Level, error) {
	const query = `SELECT id, name, order_index FROM levels WHERE id = $1`
	var level models.Level
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// ListBlockTemplates returns the block templates of a level in catalog order.
func (r *CurriculumRepository) ListBlockTemplates(ctx context.Context, levelID string) ([]models.BlockTemplate, error) {
	const query = `SELECT id, level_id, name, order_index, estimated_sessions FROM block_templates WHERE level_id = $1 ORDER BY order_index`
	var blocks []models.BlockTemplate
	if err := r.db.SelectContext(ctx, &blocks, query, levelID); err != nil {
		return nil, fmt.Errorf("list block templates: %w", err)
	}
	return blocks, nil
}

// FindBlockTemplate returns a block template by its ID.
func (r *CurriculumRepository) FindBlockTemplate(ctx context.Context, id string) (*models.BlockTemplate, error) {
	const query = `SELECT id, level_id, name, order_index, estimated_sessions FROM block_templates WHERE id = $1`
	var block models.BlockTemplate
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// ListLessonTemplates returns the lesson templates of a block template in
// catalog order.
func (r *CurriculumRepository) ListLessonTemplates(ctx context.Context, blockTemplateID string) ([]models.LessonTemplate, error) {
	const query = `SELECT id, block_id, title, summary, order_index, estimated_meetings, slide_url, makeup_instructions
        FROM lesson_templates WHERE block_id = $1 ORDER BY order_index`
	var lessons []models.LessonTemplate
	if err := r.db.SelectContext(ctx, &lessons, query, blockTemplateID); err != nil {
		return nil, fmt.Errorf("list lesson templates: %w", err)
	}
	return lessons, nil
}

// ListLessonTemplatesByLevel returns every lesson template under a level,
// ordered by block order then lesson order. The cyclic scheduler walks this
// flattened list.
func (r *CurriculumRepository) ListLessonTemplatesByLevel(ctx context.Context, levelID string) ([]models.LessonTemplate, error) {
	const query = `SELECT lt.id, lt.block_id, lt.title, lt.summary, lt.order_index, lt.estimated_meetings, lt.slide_url, lt.makeup_instructions
        FROM lesson_templates lt
        JOIN block_templates bt ON bt.id = lt.block_id
        WHERE bt.level_id = $1
        ORDER BY bt.order_index, lt.order_index`
	var lessons []models.LessonTemplate
	if err := r.db.SelectContext(ctx, &lessons, query, levelID); err != nil {
		return nil, fmt.Errorf("list level lesson templates: %w", err)
	}
	return lessons, nil
}
