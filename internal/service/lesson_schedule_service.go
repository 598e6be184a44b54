package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type scheduleClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type scheduleSessionRepository interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.Session, error)
}

type scheduleCurriculumRepository interface {
	ListLessonTemplatesByLevel(ctx context.Context, levelID string) ([]models.LessonTemplate, error)
}

type scheduleCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LessonScheduleService computes the ad-hoc cyclic schedule used by classes
// without block instances: lesson templates expand into one slot per
// estimated meeting and session i shows slot i mod S of that flattened list.
// Results are cached.
type LessonScheduleService struct {
	classes    scheduleClassRepository
	sessions   scheduleSessionRepository
	curriculum scheduleCurriculumRepository
	cache      scheduleCache
	ttl        time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
	now        func() time.Time
}

// NewLessonScheduleService constructs LessonScheduleService.
func NewLessonScheduleService(classes scheduleClassRepository, sessions scheduleSessionRepository, curriculum scheduleCurriculumRepository, cache scheduleCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *LessonScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LessonScheduleService{
		classes:    classes,
		sessions:   sessions,
		curriculum: curriculum,
		cache:      cache,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

func scheduleCacheKey(classID string) string {
	return fmt.Sprintf("schedule:class:%s", classID)
}

// ComputeSchedule returns the cyclic schedule for the class's future
// sessions, serving from cache when fresh.
func (s *LessonScheduleService) ComputeSchedule(ctx context.Context, classID string) (*dto.ScheduleResponse, error) {
	if s.cache != nil {
		var cached dto.ScheduleResponse
		if err := s.cache.Get(ctx, scheduleCacheKey(classID), &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			cached.FromCache = true
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("schedule cache read failed", zap.String("class_id", classID), zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	resp, err := s.FullSchedule(ctx, classID, true)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, scheduleCacheKey(classID), resp, s.ttl); err != nil {
			s.logger.Warn("schedule cache write failed", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return resp, nil
}

// FullSchedule computes the cyclic schedule without touching the cache.
// futureOnly limits the slots to sessions that have not started yet while
// keeping the cycle position anchored at the first session of the class.
func (s *LessonScheduleService) FullSchedule(ctx context.Context, classID string, futureOnly bool) (*dto.ScheduleResponse, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	if class.LevelID == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no level to schedule from")
	}

	lessons, err := s.curriculum.ListLessonTemplatesByLevel(ctx, *class.LevelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list level lessons")
	}

	sessions, err := s.sessions.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	now := s.now().UTC()
	resp := &dto.ScheduleResponse{ClassID: classID, ComputedAt: now}
	slots := expandCycleSlots(lessons)
	if len(slots) == 0 {
		return resp, nil
	}
	for i, sess := range sessions {
		if futureOnly && sess.StartsAt.Before(now) {
			continue
		}
		idx := i % len(slots)
		wrapped := i >= len(slots)
		if wrapped {
			s.logger.Debug("schedule wrapped past slot list",
				zap.String("class_id", classID),
				zap.Int("session_index", i),
				zap.Int("cycle_index", idx))
		}
		slot := slots[idx]
		resp.Slots = append(resp.Slots, dto.LessonSlotView{
			SessionID:  sess.ID,
			StartsAt:   sess.StartsAt,
			LessonID:   slot.lessonID,
			Title:      FormatSlotTitle(slot.title, i, len(slots)),
			CycleIndex: idx,
			Wrapped:    wrapped,
		})
	}
	return resp, nil
}

// cycleSlot is one assignable position of the expanded lesson cycle.
type cycleSlot struct {
	lessonID string
	title    string
}

// expandCycleSlots flattens lesson templates into one slot per estimated
// meeting, mirroring how materialized blocks split multi-meeting lessons
// into parts.
func expandCycleSlots(lessons []models.LessonTemplate) []cycleSlot {
	var slots []cycleSlot
	for _, tpl := range lessons {
		parts := tpl.MeetingCount()
		for part := 1; part <= parts; part++ {
			title := tpl.Title
			if parts > 1 {
				title = fmt.Sprintf("%s (Part %d)", tpl.Title, part)
			}
			slots = append(slots, cycleSlot{lessonID: tpl.ID, title: title})
		}
	}
	return slots
}

// Invalidate drops any cached schedule for the class.
func (s *LessonScheduleService) Invalidate(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, scheduleCacheKey(classID)); err != nil {
		s.logger.Warn("schedule cache invalidation failed", zap.String("class_id", classID), zap.Error(err))
	}
}

// FormatSlotTitle decorates a lesson title with its repeat round once the
// cycle has wrapped.
func FormatSlotTitle(title string, sessionIndex, lessonCount int) string {
	if lessonCount <= 0 || sessionIndex < lessonCount {
		return title
	}
	round := sessionIndex/lessonCount + 1
	return fmt.Sprintf("%s (Round %d)", title, round)
}
