package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, coderID, classID string) (bool, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error
}

type enrollmentClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type enrollmentBlockReader interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassBlock, error)
}

type journeySeeder interface {
	EnsureJourney(ctx context.Context, coderID, levelID string, entryBlockID *string) error
}

// EnrollmentService joins coders to classes and seeds their journeys. The
// entry block of the journey is the class's current block, so late joiners
// start where the class is and wrap around.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   enrollmentClassReader
	blocks    enrollmentBlockReader
	journeys  journeySeeder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, classes enrollmentClassReader, blocks enrollmentBlockReader, journeys journeySeeder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, classes: classes, blocks: blocks, journeys: journeys, validator: validate, logger: logger}
}

// Enroll registers a coder to a class and seeds their journey when the class
// follows a level curriculum.
func (s *EnrollmentService) Enroll(ctx context.Context, classID string, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}

	exists, err := s.repo.ExistsActive(ctx, req.CoderID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "coder already enrolled in class")
	}

	enrollment := &models.Enrollment{
		CoderID: req.CoderID,
		ClassID: classID,
		Status:  models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if class.LevelID != nil {
		entry, err := s.currentEntryBlock(ctx, classID)
		if err != nil {
			return nil, err
		}
		if err := s.journeys.EnsureJourney(ctx, req.CoderID, *class.LevelID, entry); err != nil {
			return nil, err
		}
	}

	s.logger.Info("coder enrolled",
		zap.String("coder_id", req.CoderID),
		zap.String("class_id", classID))
	return enrollment, nil
}

// Withdraw retires an enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		return notFoundOrInternal(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status == models.EnrollmentStatusInactive {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment already inactive")
	}
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusInactive, &now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
	}
	return nil
}

// ListByClass returns the active roster of a class.
func (s *EnrollmentService) ListByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	enrollments, err := s.repo.ListActiveByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// currentEntryBlock finds the template behind the class's CURRENT block, or
// the first template-backed block when none is current yet.
func (s *EnrollmentService) currentEntryBlock(ctx context.Context, classID string) (*string, error) {
	blocks, err := s.blocks.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocks")
	}
	for _, block := range blocks {
		if block.Status == models.BlockStatusCurrent && block.BlockID != nil {
			return block.BlockID, nil
		}
	}
	for _, block := range blocks {
		if block.BlockID != nil {
			return block.BlockID, nil
		}
	}
	return nil, nil
}
