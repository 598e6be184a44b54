package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
}

type classBlockRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassBlock, error)
	ListByClass(ctx context.Context, classID string) ([]models.ClassBlock, error)
	Create(ctx context.Context, block *models.ClassBlock) error
	UpdateDates(ctx context.Context, id string, startDate, endDate time.Time, showcaseDate *time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.BlockStatus) error
	Delete(ctx context.Context, id string) error
}

type classLessonReader interface {
	ListByBlock(ctx context.Context, classBlockID string) ([]models.ClassLesson, error)
	ListByClass(ctx context.Context, classID string) ([]models.ClassLesson, error)
}

type classSessionReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.Session, error)
}

type classCurriculumReader interface {
	FindBlockTemplate(ctx context.Context, id string) (*models.BlockTemplate, error)
}

type sessionPlanner interface {
	EnsureFutureSessions(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error)
}

type lessonAssigner interface {
	AutoAssign(ctx context.Context, classID string) (*dto.AssignReport, error)
	Rebalance(ctx context.Context, classID string) (*dto.AssignReport, error)
}

type journeyAdvancer interface {
	MarkBlockCompletedForClass(ctx context.Context, classID, blockTemplateID string) error
	GetJourney(ctx context.Context, coderID, levelID string) ([]dto.JourneyEntry, error)
}

type scheduleInvalidator interface {
	Invalidate(ctx context.Context, classID string)
}

type classScheduleService interface {
	ComputeSchedule(ctx context.Context, classID string) (*dto.ScheduleResponse, error)
	Invalidate(ctx context.Context, classID string)
}

// classLocks serializes engine passes per class. Two concurrent passes over
// the same class would double-insert sessions and lessons.
type classLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newClassLocks() *classLocks {
	return &classLocks{locks: make(map[string]*sync.Mutex)}
}

func (c *classLocks) lock(classID string) func() {
	c.mu.Lock()
	l, ok := c.locks[classID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[classID] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// ClassService is the read-driven orchestrator. Loading a class detail runs
// the whole engine pass first: top up sessions, instantiate and assign
// lessons, sync block statuses, then return the merged view.
type ClassService struct {
	classes    classRepository
	blocks     classBlockRepository
	lessons    classLessonReader
	sessions   classSessionReader
	curriculum classCurriculumReader
	planner    sessionPlanner
	assigner   lessonAssigner
	journeys   journeyAdvancer
	schedules  classScheduleService
	locks      *classLocks
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(classes classRepository, blocks classBlockRepository, lessons classLessonReader, sessions classSessionReader, curriculum classCurriculumReader, planner sessionPlanner, assigner lessonAssigner, journeys journeyAdvancer, schedules classScheduleService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{
		classes:    classes,
		blocks:     blocks,
		lessons:    lessons,
		sessions:   sessions,
		curriculum: curriculum,
		planner:    planner,
		assigner:   assigner,
		journeys:   journeys,
		schedules:  schedules,
		locks:      newClassLocks(),
		validator:  validate,
		logger:     logger,
	}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create registers a class.
func (s *ClassService) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	var endDate *time.Time
	if req.EndDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
		}
		endDate = &parsed
	}

	class := &models.Class{
		Name:         req.Name,
		Type:         models.ClassType(req.Type),
		LevelID:      req.LevelID,
		CoachID:      req.CoachID,
		ScheduleDay:  req.ScheduleDay,
		ScheduleTime: req.ScheduleTime,
		StartDate:    startDate,
		EndDate:      endDate,
		MeetingURL:   req.MeetingURL,
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Detail runs an engine pass and returns the full curriculum view of the
// class. The pass is serialized per class. When coderID is given and the
// class has a level, the coder's journey for that level is included.
func (s *ClassService) Detail(ctx context.Context, classID, coderID string) (*dto.ClassDetailResponse, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}

	unlock := s.locks.lock(classID)
	if _, err := s.planner.EnsureFutureSessions(ctx, classID); err != nil {
		unlock()
		return nil, err
	}
	if class.IsWeekly() && class.LevelID != nil {
		if _, err := s.assigner.AutoAssign(ctx, classID); err != nil {
			unlock()
			return nil, err
		}
	}
	unlock()

	detail, err := s.buildDetail(ctx, class)
	if err != nil {
		return nil, err
	}

	if !class.IsWeekly() && class.LevelID != nil {
		sched, err := s.schedules.ComputeSchedule(ctx, classID)
		if err != nil {
			s.logger.Warn("failed to compute class schedule", zap.String("class_id", classID), zap.Error(err))
		} else {
			detail.Schedule = sched.Slots
		}
	}
	if coderID != "" && class.LevelID != nil {
		journey, err := s.journeys.GetJourney(ctx, coderID, *class.LevelID)
		if err != nil {
			s.logger.Warn("failed to load coder journey", zap.String("coder_id", coderID), zap.Error(err))
		} else {
			detail.Journey = journey
		}
	}
	return detail, nil
}

func (s *ClassService) buildDetail(ctx context.Context, class *models.Class) (*dto.ClassDetailResponse, error) {
	blocks, err := s.blocks.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}

	resp := &dto.ClassDetailResponse{Class: *class}
	for _, block := range blocks {
		var template *models.BlockTemplate
		if block.BlockID != nil {
			template, err = s.curriculum.FindBlockTemplate(ctx, *block.BlockID)
			if err != nil {
				template = nil
			}
		}
		lessons, err := s.lessons.ListByBlock(ctx, block.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list block lessons")
		}
		resp.Blocks = append(resp.Blocks, dto.BlockDetail{
			ClassBlockView: models.MergeBlockView(block, template),
			Lessons:        lessons,
		})
	}

	sessions, err := s.sessions.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	lessonBySession := make(map[string]models.ClassLesson)
	allLessons, err := s.lessons.ListByClass(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class lessons")
	}
	for _, lesson := range allLessons {
		if lesson.Assigned() {
			lessonBySession[*lesson.SessionID] = lesson
		}
	}
	for _, sess := range sessions {
		view := dto.SessionView{Session: sess}
		if lesson, ok := lessonBySession[sess.ID]; ok {
			l := lesson
			view.Lesson = &l
		}
		resp.Sessions = append(resp.Sessions, view)
	}
	return resp, nil
}

// MarkBlockComplete closes a block out: stamps the showcase date, forces the
// status to COMPLETED, advances every enrolled coder's journey and rebalances
// the remaining future links.
func (s *ClassService) MarkBlockComplete(ctx context.Context, classID, classBlockID string, req dto.MarkBlockCompleteRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	block, err := s.blocks.FindByID(ctx, classBlockID)
	if err != nil {
		return notFoundOrInternal(err, "block not found", "failed to load block")
	}
	if block.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "block not found in class")
	}
	if block.Status == models.BlockStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "block already completed")
	}

	unlock := s.locks.lock(classID)
	defer unlock()

	if req.ShowcaseDate != nil {
		showcase, err := time.Parse("2006-01-02", *req.ShowcaseDate)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid showcase date")
		}
		if err := s.blocks.UpdateDates(ctx, block.ID, block.StartDate, block.EndDate, &showcase); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp showcase date")
		}
	}
	if err := s.blocks.UpdateStatus(ctx, block.ID, models.BlockStatusCompleted); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete block")
	}

	if block.BlockID != nil {
		if err := s.journeys.MarkBlockCompletedForClass(ctx, classID, *block.BlockID); err != nil {
			return err
		}
	}
	if _, err := s.assigner.Rebalance(ctx, classID); err != nil {
		return err
	}
	s.schedules.Invalidate(ctx, classID)
	return nil
}

// PatchBlock edits instance-level block fields. Status changes must respect
// the forward-only lifecycle.
func (s *ClassService) PatchBlock(ctx context.Context, classID, classBlockID string, req dto.PatchBlockRequest) (*models.ClassBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid patch payload")
	}
	block, err := s.blocks.FindByID(ctx, classBlockID)
	if err != nil {
		return nil, notFoundOrInternal(err, "block not found", "failed to load block")
	}
	if block.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "block not found in class")
	}

	unlock := s.locks.lock(classID)
	defer unlock()

	startDate := block.StartDate
	endDate := block.EndDate
	showcaseDate := block.ShowcaseDate
	datesChanged := false
	if req.StartDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
		}
		startDate = parsed
		datesChanged = true
	}
	if req.EndDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
		}
		endDate = parsed
		datesChanged = true
	}
	if req.ShowcaseDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.ShowcaseDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid showcase date")
		}
		showcaseDate = &parsed
		datesChanged = true
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if datesChanged {
		if err := s.blocks.UpdateDates(ctx, block.ID, startDate, endDate, showcaseDate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update block dates")
		}
	}

	if req.Status != nil {
		target := models.BlockStatus(*req.Status)
		if !block.Status.CanTransitionTo(target) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "block status cannot move backwards")
		}
		if target != block.Status {
			if err := s.blocks.UpdateStatus(ctx, block.ID, target); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update block status")
			}
		}
	}

	if datesChanged {
		if _, err := s.assigner.Rebalance(ctx, classID); err != nil {
			return nil, err
		}
	}
	s.schedules.Invalidate(ctx, classID)

	updated, err := s.blocks.FindByID(ctx, classBlockID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload block")
	}
	return updated, nil
}

// CreateBlock appends a block instance to a class, optionally bound to a
// catalog template.
func (s *ClassService) CreateBlock(ctx context.Context, classID string, req dto.CreateBlockRequest) (*models.ClassBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}
	if req.BlockID != nil {
		if _, err := s.curriculum.FindBlockTemplate(ctx, *req.BlockID); err != nil {
			return nil, notFoundOrInternal(err, "block template not found", "failed to load block template")
		}
	}

	unlock := s.locks.lock(classID)
	defer unlock()

	block := &models.ClassBlock{
		ClassID:   classID,
		BlockID:   req.BlockID,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    models.BlockStatusUpcoming,
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create block")
	}
	if _, err := s.assigner.Rebalance(ctx, classID); err != nil {
		return nil, err
	}
	s.schedules.Invalidate(ctx, classID)
	return block, nil
}

// DeleteBlock removes a block instance and rebalances the remaining links.
// Completed blocks are protected.
func (s *ClassService) DeleteBlock(ctx context.Context, classID, classBlockID string) error {
	block, err := s.blocks.FindByID(ctx, classBlockID)
	if err != nil {
		return notFoundOrInternal(err, "block not found", "failed to load block")
	}
	if block.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "block not found in class")
	}
	if block.Status == models.BlockStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "completed blocks cannot be deleted")
	}

	unlock := s.locks.lock(classID)
	defer unlock()

	if err := s.blocks.Delete(ctx, block.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete block")
	}
	if _, err := s.assigner.Rebalance(ctx, classID); err != nil {
		return err
	}
	s.schedules.Invalidate(ctx, classID)
	return nil
}
