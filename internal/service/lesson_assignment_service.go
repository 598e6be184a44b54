package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type assignmentSessionRepository interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.Session, error)
	Beginx(ctx context.Context) (*sqlx.Tx, error)
}

type assignmentBlockRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassBlock, error)
	Create(ctx context.Context, block *models.ClassBlock) error
	UpdateStatus(ctx context.Context, id string, status models.BlockStatus) error
}

type assignmentLessonRepository interface {
	ListByBlock(ctx context.Context, classBlockID string) ([]models.ClassLesson, error)
	BulkCreate(ctx context.Context, ext sqlx.ExtContext, lessons []models.ClassLesson) error
	Link(ctx context.Context, lessonID, sessionID string, unlockAt time.Time) error
	UnlinkBySessions(ctx context.Context, sessionIDs []string) (int, error)
}

type assignmentCurriculumRepository interface {
	ListBlockTemplates(ctx context.Context, levelID string) ([]models.BlockTemplate, error)
	ListLessonTemplates(ctx context.Context, blockTemplateID string) ([]models.LessonTemplate, error)
}

type assignmentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type assignmentJourneyAdvancer interface {
	MarkBlockCompletedForClass(ctx context.Context, classID, blockTemplateID string) error
}

// LessonAssignmentService links lessons to sessions in strict curriculum
// order. It lazily instantiates block lessons from templates, keeps at least
// one upcoming block ahead of the session supply, and synchronizes block
// statuses after every pass.
type LessonAssignmentService struct {
	classes    assignmentClassRepository
	sessions   assignmentSessionRepository
	blocks     assignmentBlockRepository
	lessons    assignmentLessonRepository
	curriculum assignmentCurriculumRepository
	journeys   assignmentJourneyAdvancer
	logger     *zap.Logger
	now        func() time.Time
}

// NewLessonAssignmentService constructs LessonAssignmentService. journeys may
// be nil; blocks completed by the status sync then advance no journeys.
func NewLessonAssignmentService(classes assignmentClassRepository, sessions assignmentSessionRepository, blocks assignmentBlockRepository, lessons assignmentLessonRepository, curriculum assignmentCurriculumRepository, journeys assignmentJourneyAdvancer, logger *zap.Logger) *LessonAssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonAssignmentService{
		classes:    classes,
		sessions:   sessions,
		blocks:     blocks,
		lessons:    lessons,
		curriculum: curriculum,
		journeys:   journeys,
		logger:     logger,
		now:        time.Now,
	}
}

// queuedLesson pairs a lesson instance with its owning block for ordering.
type queuedLesson struct {
	lesson models.ClassLesson
	block  models.ClassBlock
}

// AutoAssign runs one full assignment pass over a class. Future scheduled
// sessions are stripped of their existing links first so the whole future is
// recomputed from the current block layout.
func (s *LessonAssignmentService) AutoAssign(ctx context.Context, classID string) (*dto.AssignReport, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}

	now := s.now().UTC()
	report := &dto.AssignReport{ClassID: classID, RanAt: now}
	// Classes outside the materialized curriculum path are a zero-count
	// no-op, not an error.
	if !class.IsWeekly() || class.LevelID == nil {
		return report, nil
	}

	sessions, err := s.sessions.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	var future []models.Session
	var futureIDs []string
	for _, sess := range sessions {
		if sess.Status == models.SessionStatusScheduled && !sess.StartsAt.Before(now) {
			future = append(future, sess)
			futureIDs = append(futureIDs, sess.ID)
		}
	}
	report.SessionsCovered = len(future)

	unlinked, err := s.lessons.UnlinkBySessions(ctx, futureIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset future links")
	}
	report.LessonsUnlinked = unlinked

	blocks, err := s.blocks.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}

	for _, block := range blocks {
		if err := s.syncBlockLessons(ctx, block); err != nil {
			return nil, err
		}
	}

	queue, err := s.buildQueue(ctx, blocks)
	if err != nil {
		return nil, err
	}

	templates, err := s.curriculum.ListBlockTemplates(ctx, *class.LevelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block templates")
	}

	// Keep the supply ahead of demand: when the queue runs out before the
	// session horizon does, append the next block from the catalog, wrapping
	// back to the start once every template has been used. A full wrap that
	// adds no units means the catalog only holds empty blocks; stop there.
	stagnant := 0
	for len(queue) < len(future) && stagnant < len(templates) {
		created, err := s.appendNextBlock(ctx, class, templates, blocks, future, len(queue))
		if err != nil {
			return nil, err
		}
		if created == nil {
			break
		}
		report.BlocksCreated++
		if err := s.syncBlockLessons(ctx, *created); err != nil {
			return nil, err
		}
		blocks = append(blocks, *created)
		prev := len(queue)
		queue, err = s.buildQueue(ctx, blocks)
		if err != nil {
			return nil, err
		}
		if len(queue) == prev {
			stagnant++
		} else {
			stagnant = 0
		}
	}

	// Always hold one upcoming block ahead of the current one, even when
	// capacity already suffices, so the next cycle never starts from an
	// empty catalog.
	hasUpcoming := false
	for _, block := range blocks {
		if block.Status == models.BlockStatusUpcoming {
			hasUpcoming = true
			break
		}
	}
	if !hasUpcoming {
		created, err := s.appendNextBlock(ctx, class, templates, blocks, future, len(queue))
		if err != nil {
			return nil, err
		}
		if created != nil {
			report.BlocksCreated++
			if err := s.syncBlockLessons(ctx, *created); err != nil {
				return nil, err
			}
			blocks = append(blocks, *created)
			queue, err = s.buildQueue(ctx, blocks)
			if err != nil {
				return nil, err
			}
		}
	}

	for i, sess := range future {
		if i >= len(queue) {
			break
		}
		if err := s.lessons.Link(ctx, queue[i].lesson.ID, sess.ID, sess.StartsAt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link lesson")
		}
		report.LessonsAssigned++
	}

	restatused, err := s.syncBlockStatuses(ctx, classID)
	if err != nil {
		return nil, err
	}
	report.BlocksRestatused = restatused

	s.logger.Info("auto-assignment finished",
		zap.String("class_id", classID),
		zap.Int("sessions", report.SessionsCovered),
		zap.Int("assigned", report.LessonsAssigned),
		zap.Int("blocks_created", report.BlocksCreated))
	return report, nil
}

// Rebalance recomputes future links after an out-of-band session change
// (reschedule, cancellation, substitute). It is AutoAssign applied to the
// current block layout without growing it.
func (s *LessonAssignmentService) Rebalance(ctx context.Context, classID string) (*dto.AssignReport, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	if !class.IsWeekly() || class.LevelID == nil {
		return nil, nil
	}

	now := s.now().UTC()
	report := &dto.AssignReport{ClassID: classID, RanAt: now}

	sessions, err := s.sessions.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	var future []models.Session
	var futureIDs []string
	for _, sess := range sessions {
		if sess.Status == models.SessionStatusScheduled && !sess.StartsAt.Before(now) {
			future = append(future, sess)
			futureIDs = append(futureIDs, sess.ID)
		}
	}
	report.SessionsCovered = len(future)

	unlinked, err := s.lessons.UnlinkBySessions(ctx, futureIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset future links")
	}
	report.LessonsUnlinked = unlinked

	blocks, err := s.blocks.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	queue, err := s.buildQueue(ctx, blocks)
	if err != nil {
		return nil, err
	}
	for i, sess := range future {
		if i >= len(queue) {
			break
		}
		if err := s.lessons.Link(ctx, queue[i].lesson.ID, sess.ID, sess.StartsAt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link lesson")
		}
		report.LessonsAssigned++
	}

	restatused, err := s.syncBlockStatuses(ctx, classID)
	if err != nil {
		return nil, err
	}
	report.BlocksRestatused = restatused
	return report, nil
}

// syncBlockLessons materializes the lesson units of a template-backed block.
// A template estimated at N meetings expands into N parts with titles
// suffixed "(Part i)" when N > 1. Blocks instantiated before their template
// grew new parts are backfilled with the missing units only.
func (s *LessonAssignmentService) syncBlockLessons(ctx context.Context, block models.ClassBlock) error {
	if block.BlockID == nil {
		return nil
	}
	templates, err := s.curriculum.ListLessonTemplates(ctx, *block.BlockID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lesson templates")
	}
	if len(templates) == 0 {
		return nil
	}

	existing, err := s.lessons.ListByBlock(ctx, block.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block lessons")
	}
	have := make(map[int]bool, len(existing))
	for _, lesson := range existing {
		have[lesson.OrderIndex] = true
	}

	var missing []models.ClassLesson
	for _, unit := range ExpandLessonTemplates(block.ID, templates) {
		if !have[unit.OrderIndex] {
			missing = append(missing, unit)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	tx, err := s.sessions.Beginx(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	if err := s.lessons.BulkCreate(ctx, tx, missing); err != nil {
		tx.Rollback()
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to instantiate lessons")
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit lessons")
	}
	s.logger.Debug("instantiated block lessons",
		zap.String("class_block_id", block.ID),
		zap.Int("units", len(missing)))
	return nil
}

// ExpandLessonTemplates turns lesson templates into assignable units, one
// per estimated meeting.
func ExpandLessonTemplates(classBlockID string, templates []models.LessonTemplate) []models.ClassLesson {
	var units []models.ClassLesson
	for _, tpl := range templates {
		tpl := tpl
		meetings := tpl.MeetingCount()
		for part := 1; part <= meetings; part++ {
			title := tpl.Title
			if meetings > 1 {
				title = fmt.Sprintf("%s (Part %d)", tpl.Title, part)
			}
			units = append(units, models.ClassLesson{
				ClassBlockID:     classBlockID,
				LessonTemplateID: &tpl.ID,
				Title:            title,
				Summary:          tpl.Summary,
				OrderIndex:       models.PartOrderIndex(tpl.OrderIndex, part),
				SlideURL:         tpl.SlideURL,
			})
		}
	}
	return units
}

// buildQueue collects the unassigned lessons of every block, ordered by
// block start date then lesson position.
func (s *LessonAssignmentService) buildQueue(ctx context.Context, blocks []models.ClassBlock) ([]queuedLesson, error) {
	sorted := make([]models.ClassBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate.Before(sorted[j].StartDate)
	})

	var queue []queuedLesson
	for _, block := range sorted {
		lessons, err := s.lessons.ListByBlock(ctx, block.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block lessons")
		}
		for _, lesson := range lessons {
			if lesson.Assigned() {
				continue
			}
			queue = append(queue, queuedLesson{lesson: lesson, block: block})
		}
	}
	return queue, nil
}

// appendNextBlock creates the next catalog block after the last instantiated
// one, wrapping back to the start of the catalog once every template has a
// block. Its span is derived from the sessions it will absorb: the block
// starts at the first uncovered session and ends at the session its lessons
// run out on. Without a target session the span falls back to one week after
// the previous block.
func (s *LessonAssignmentService) appendNextBlock(ctx context.Context, class *models.Class, templates []models.BlockTemplate, blocks []models.ClassBlock, future []models.Session, covered int) (*models.ClassBlock, error) {
	counts := make(map[string]int, len(templates))
	for _, block := range blocks {
		if block.BlockID != nil {
			counts[*block.BlockID]++
		}
	}
	// Least-used template wins; curriculum order breaks ties, so an
	// exhausted catalog restarts from its first block.
	var next *models.BlockTemplate
	for i := range templates {
		if next == nil || counts[templates[i].ID] < counts[next.ID] {
			next = &templates[i]
		}
	}
	if next == nil {
		return nil, nil
	}
	if counts[next.ID] > 0 {
		s.logger.Debug("curriculum exhausted, repeating catalog",
			zap.String("class_id", class.ID),
			zap.String("block_template_id", next.ID),
			zap.Int("round", counts[next.ID]+1))
	}

	lessonTemplates, err := s.curriculum.ListLessonTemplates(ctx, next.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lesson templates")
	}
	unitCount := 0
	for _, tpl := range lessonTemplates {
		unitCount += tpl.MeetingCount()
	}
	if unitCount == 0 {
		unitCount = 1
	}

	var startDate, endDate time.Time
	if covered < len(future) {
		startDate = future[covered].StartsAt
		lastIdx := covered + unitCount - 1
		if lastIdx >= len(future) {
			lastIdx = len(future) - 1
		}
		endDate = future[lastIdx].StartsAt
	} else if len(blocks) > 0 {
		prev := blocks[len(blocks)-1]
		startDate = prev.EndDate.AddDate(0, 0, 7)
		endDate = startDate.AddDate(0, 0, 7*(unitCount-1))
	} else {
		startDate = class.StartDate
		endDate = startDate.AddDate(0, 0, 7*(unitCount-1))
	}

	block := &models.ClassBlock{
		ClassID:   class.ID,
		BlockID:   &next.ID,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    models.BlockStatusUpcoming,
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create block")
	}
	s.logger.Info("appended curriculum block",
		zap.String("class_id", class.ID),
		zap.String("block_template_id", next.ID),
		zap.Time("start_date", startDate))
	return block, nil
}

// syncBlockStatuses derives block statuses from link state. The first block
// still holding future work becomes CURRENT, everything before it COMPLETED
// and everything after UPCOMING. With no future work anywhere the last block
// stays CURRENT. Only rows whose status actually changes are written, and a
// block never moves backward. Every block the pass flips to COMPLETED
// advances the journeys of the class's active coders.
func (s *LessonAssignmentService) syncBlockStatuses(ctx context.Context, classID string) (int, error) {
	blocks, err := s.blocks.ListByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	if len(blocks) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	currentIdx := -1
	for i, block := range blocks {
		hasFuture, err := s.blockHasFutureWork(ctx, block, now)
		if err != nil {
			return 0, err
		}
		if hasFuture {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 {
		currentIdx = len(blocks) - 1
	}

	changed := 0
	for i, block := range blocks {
		target := models.BlockStatusUpcoming
		switch {
		case i < currentIdx:
			target = models.BlockStatusCompleted
		case i == currentIdx:
			target = models.BlockStatusCurrent
		}
		if block.Status == target || !block.Status.CanTransitionTo(target) {
			continue
		}
		if err := s.blocks.UpdateStatus(ctx, block.ID, target); err != nil {
			return changed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update block status")
		}
		changed++
		if target == models.BlockStatusCompleted && block.BlockID != nil && s.journeys != nil {
			if err := s.journeys.MarkBlockCompletedForClass(ctx, classID, *block.BlockID); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// blockHasFutureWork reports whether any lesson of the block is unassigned or
// linked to a session that has not started yet.
func (s *LessonAssignmentService) blockHasFutureWork(ctx context.Context, block models.ClassBlock, now time.Time) (bool, error) {
	lessons, err := s.lessons.ListByBlock(ctx, block.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block lessons")
	}
	for _, lesson := range lessons {
		if !lesson.Assigned() {
			return true, nil
		}
		if lesson.UnlockAt == nil || !lesson.UnlockAt.Before(now) {
			return true, nil
		}
	}
	return false, nil
}
