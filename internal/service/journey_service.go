package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type journeyProgressRepository interface {
	ListByCoderAndLevel(ctx context.Context, coderID, levelID string) ([]models.CoderBlockProgress, error)
	BulkCreate(ctx context.Context, ext sqlx.ExtContext, rows []models.CoderBlockProgress) error
	UpdateStatus(ctx context.Context, id string, status models.ProgressStatus, completedAt *time.Time) error
	DeleteByCoderAndLevel(ctx context.Context, coderID, levelID string) error
	Beginx(ctx context.Context) (*sqlx.Tx, error)
}

type journeyCurriculumRepository interface {
	ListBlockTemplates(ctx context.Context, levelID string) ([]models.BlockTemplate, error)
}

type journeyEnrollmentRepository interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
}

type journeyClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// JourneyService maintains the per-coder journey through a level: one row
// per catalog block, at most one IN_PROGRESS at a time, advancing as blocks
// complete.
type JourneyService struct {
	progress    journeyProgressRepository
	curriculum  journeyCurriculumRepository
	enrollments journeyEnrollmentRepository
	classes     journeyClassRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewJourneyService constructs JourneyService.
func NewJourneyService(progress journeyProgressRepository, curriculum journeyCurriculumRepository, enrollments journeyEnrollmentRepository, classes journeyClassRepository, logger *zap.Logger) *JourneyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JourneyService{
		progress:    progress,
		curriculum:  curriculum,
		enrollments: enrollments,
		classes:     classes,
		logger:      logger,
		now:         time.Now,
	}
}

// EnsureJourney seeds a coder's journey for a level. The catalog is rotated
// so the entry block comes first; blocks before it wrap to the end. An
// existing journey is left alone unless a different entry block is requested,
// in which case the rows are wiped and reseeded from the new entry.
// Idempotent.
func (s *JourneyService) EnsureJourney(ctx context.Context, coderID, levelID string, entryBlockID *string) error {
	templates, err := s.curriculum.ListBlockTemplates(ctx, levelID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block templates")
	}
	if len(templates) == 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "level has no blocks")
	}

	existing, err := s.progress.ListByCoderAndLevel(ctx, coderID, levelID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journey")
	}
	if len(existing) > 0 {
		if entryBlockID == nil || *entryBlockID == existing[0].BlockID {
			return nil
		}
		if !catalogHasBlock(templates, *entryBlockID) {
			// Unknown entry block; keep the journey the coder already has.
			return nil
		}
		s.logger.Warn("journey entry block changed, reseeding",
			zap.String("coder_id", coderID),
			zap.String("level_id", levelID),
			zap.String("entry_block_id", *entryBlockID))
		if err := s.progress.DeleteByCoderAndLevel(ctx, coderID, levelID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset journey")
		}
	}

	rotated := rotateTemplates(templates, entryBlockID)
	rows := make([]models.CoderBlockProgress, 0, len(rotated))
	for i, tpl := range rotated {
		status := models.ProgressStatusPending
		if i == 0 {
			status = models.ProgressStatusInProgress
		}
		rows = append(rows, models.CoderBlockProgress{
			CoderID:      coderID,
			LevelID:      levelID,
			BlockID:      tpl.ID,
			JourneyOrder: i + 1,
			Status:       status,
		})
	}

	tx, err := s.progress.Beginx(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	if err := s.progress.BulkCreate(ctx, tx, rows); err != nil {
		tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed journey")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit journey")
	}
	return nil
}

// MarkBlockCompletedForClass completes the given catalog block for every
// active coder in a class and advances each journey. Coders whose journeys
// have nothing left to do get their enrollment flipped to INACTIVE.
func (s *JourneyService) MarkBlockCompletedForClass(ctx context.Context, classID, blockTemplateID string) error {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return notFoundOrInternal(err, "class not found", "failed to load class")
	}
	if class.LevelID == nil {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no level")
	}

	enrollments, err := s.enrollments.ListActiveByClass(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	for _, enr := range enrollments {
		done, err := s.completeAndAdvance(ctx, enr.CoderID, *class.LevelID, blockTemplateID)
		if err != nil {
			return err
		}
		if done {
			now := s.now().UTC()
			if err := s.enrollments.UpdateStatus(ctx, enr.ID, models.EnrollmentStatusInactive, &now); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to retire enrollment")
			}
			s.logger.Info("journey finished, enrollment retired",
				zap.String("coder_id", enr.CoderID),
				zap.String("class_id", classID))
		}
	}
	return nil
}

// completeAndAdvance marks one block COMPLETED in a coder's journey and
// promotes the next unfinished row to IN_PROGRESS. Returns true when no
// unfinished row remains.
func (s *JourneyService) completeAndAdvance(ctx context.Context, coderID, levelID, blockTemplateID string) (bool, error) {
	rows, err := s.progress.ListByCoderAndLevel(ctx, coderID, levelID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journey")
	}
	if len(rows) == 0 {
		return false, nil
	}

	now := s.now().UTC()
	completedOrder := -1
	for _, row := range rows {
		if row.BlockID != blockTemplateID {
			continue
		}
		completedOrder = row.JourneyOrder
		if row.Status != models.ProgressStatusCompleted {
			if err := s.progress.UpdateStatus(ctx, row.ID, models.ProgressStatusCompleted, &now); err != nil {
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete journey row")
			}
		}
		break
	}
	if completedOrder == -1 {
		// Block is not part of this coder's journey; nothing to advance.
		return false, nil
	}

	// Demote any other row still IN_PROGRESS so the invariant holds before
	// promotion.
	for _, row := range rows {
		if row.Status == models.ProgressStatusInProgress && row.BlockID != blockTemplateID {
			if err := s.progress.UpdateStatus(ctx, row.ID, models.ProgressStatusPending, nil); err != nil {
				return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to demote journey row")
			}
		}
	}

	// Promote the next unfinished row after the completed one, wrapping to
	// the lowest unfinished order when nothing follows.
	var next *models.CoderBlockProgress
	for i := range rows {
		row := &rows[i]
		if row.Status == models.ProgressStatusCompleted || row.BlockID == blockTemplateID {
			continue
		}
		if row.JourneyOrder > completedOrder {
			next = row
			break
		}
	}
	if next == nil {
		for i := range rows {
			row := &rows[i]
			if row.Status == models.ProgressStatusCompleted || row.BlockID == blockTemplateID {
				continue
			}
			if next == nil || row.JourneyOrder < next.JourneyOrder {
				next = row
			}
		}
	}
	if next == nil {
		return true, nil
	}
	if err := s.progress.UpdateStatus(ctx, next.ID, models.ProgressStatusInProgress, nil); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote journey row")
	}
	return false, nil
}

// GetJourney returns a coder's journey rows with block names resolved.
func (s *JourneyService) GetJourney(ctx context.Context, coderID, levelID string) ([]dto.JourneyEntry, error) {
	rows, err := s.progress.ListByCoderAndLevel(ctx, coderID, levelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journey")
	}
	templates, err := s.curriculum.ListBlockTemplates(ctx, levelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block templates")
	}
	names := make(map[string]string, len(templates))
	for _, tpl := range templates {
		names[tpl.ID] = tpl.Name
	}

	entries := make([]dto.JourneyEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, dto.JourneyEntry{
			BlockID:      row.BlockID,
			BlockName:    names[row.BlockID],
			JourneyOrder: row.JourneyOrder,
			Status:       row.Status,
			CompletedAt:  row.CompletedAt,
		})
	}
	return entries, nil
}

// catalogHasBlock reports whether the catalog contains the given template.
func catalogHasBlock(templates []models.BlockTemplate, blockID string) bool {
	for _, tpl := range templates {
		if tpl.ID == blockID {
			return true
		}
	}
	return false
}

// rotateTemplates reorders the catalog so the entry block leads. A nil or
// unknown entry keeps the catalog order.
func rotateTemplates(templates []models.BlockTemplate, entryBlockID *string) []models.BlockTemplate {
	if entryBlockID == nil {
		return templates
	}
	start := -1
	for i, tpl := range templates {
		if tpl.ID == *entryBlockID {
			start = i
			break
		}
	}
	if start <= 0 {
		return templates
	}
	rotated := make([]models.BlockTemplate, 0, len(templates))
	rotated = append(rotated, templates[start:]...)
	rotated = append(rotated, templates[:start]...)
	return rotated
}
