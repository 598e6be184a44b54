package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/codecampus-id/academy-api/internal/models"
)

// ClassLessonRepository handles persistence of lesson instances.
type ClassLessonRepository struct {
	db *sqlx.DB
}

// NewClassLessonRepository constructs the repository.
func NewClassLessonRepository(db *sqlx.DB) *ClassLessonRepository {
	return &ClassLessonRepository{db: db}
}

const classLessonColumns = `id, class_block_id, lesson_template_id, title, summary, order_index, session_id, unlock_at, slide_url, created_at, updated_at`

// ListByBlock returns the lesson instances of a block ordered by position.
func (r *ClassLessonRepository) ListByBlock(ctx context.Context, classBlockID string) ([]models.ClassLesson, error) {
	query := fmt.Sprintf("SELECT %s FROM class_lessons WHERE class_block_id = $1 ORDER BY order_index", classLessonColumns)
	var lessons []models.ClassLesson
	if err := r.db.SelectContext(ctx, &lessons, query, classBlockID); err != nil {
		return nil, fmt.Errorf("list block lessons: %w", err)
	}
	return lessons, nil
}

// ListByClass returns every lesson instance of a class, ordered by the owning
// block's start date and then by position inside the block.
func (r *ClassLessonRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassLesson, error) {
	const query = `SELECT cl.id, cl.class_block_id, cl.lesson_template_id, cl.title, cl.summary, cl.order_index, cl.session_id, cl.unlock_at, cl.slide_url, cl.created_at, cl.updated_at
        FROM class_lessons cl
        JOIN class_blocks cb ON cb.id = cl.class_block_id
        WHERE cb.class_id = $1
        ORDER BY cb.start_date, cl.order_index`
	var lessons []models.ClassLesson
	if err := r.db.SelectContext(ctx, &lessons, query, classID); err != nil {
		return nil, fmt.Errorf("list class lessons: %w", err)
	}
	return lessons, nil
}

// BulkCreate inserts the given lesson instances inside the provided executor.
func (r *ClassLessonRepository) BulkCreate(ctx context.Context, ext sqlx.ExtContext, lessons []models.ClassLesson) error {
	const query = `INSERT INTO class_lessons (id, class_block_id, lesson_template_id, title, summary, order_index, session_id, unlock_at, slide_url, created_at, updated_at)
        VALUES (:id, :class_block_id, :lesson_template_id, :title, :summary, :order_index, :session_id, :unlock_at, :slide_url, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range lessons {
		if lessons[i].ID == "" {
			lessons[i].ID = uuid.NewString()
		}
		lessons[i].CreatedAt = now
		lessons[i].UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, ext, query, lessons[i]); err != nil {
			return fmt.Errorf("insert class lesson: %w", err)
		}
	}
	return nil
}

// Link attaches a lesson to a session and mirrors the unlock time.
func (r *ClassLessonRepository) Link(ctx context.Context, lessonID, sessionID string, unlockAt time.Time) error {
	const query = `UPDATE class_lessons SET session_id = $2, unlock_at = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, lessonID, sessionID, unlockAt); err != nil {
		return fmt.Errorf("link class lesson: %w", err)
	}
	return nil
}

// Unlink detaches a lesson from its session and clears the unlock time.
func (r *ClassLessonRepository) Unlink(ctx context.Context, lessonID string) error {
	const query = `UPDATE class_lessons SET session_id = NULL, unlock_at = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, lessonID); err != nil {
		return fmt.Errorf("unlink class lesson: %w", err)
	}
	return nil
}

// UnlinkBySessions detaches every lesson linked to any of the given
// sessions. Used before re-assignment so future sessions can be rescheduled.
func (r *ClassLessonRepository) UnlinkBySessions(ctx context.Context, sessionIDs []string) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE class_lessons SET session_id = NULL, unlock_at = NULL, updated_at = NOW() WHERE session_id IN (?)`, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("build unlink query: %w", err)
	}
	query = r.db.Rebind(query)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("unlink lessons by sessions: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
