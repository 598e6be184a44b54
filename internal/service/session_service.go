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

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	UpdateStartTime(ctx context.Context, id string, startsAt time.Time) error
	UpdateSubstitute(ctx context.Context, id string, coachID *string) error
}

type sessionLessonUnlinker interface {
	UnlinkBySessions(ctx context.Context, sessionIDs []string) (int, error)
}

type sessionRebalancer interface {
	Rebalance(ctx context.Context, classID string) (*dto.AssignReport, error)
}

// SessionService applies out-of-band session edits and triggers a rebalance
// so future links stay consistent with the new session layout.
type SessionService struct {
	repo      sessionRepository
	lessons   sessionLessonUnlinker
	assigner  sessionRebalancer
	schedules scheduleInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, lessons sessionLessonUnlinker, assigner sessionRebalancer, schedules scheduleInvalidator, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, lessons: lessons, assigner: assigner, schedules: schedules, validator: validate, logger: logger}
}

// PatchStatus moves a session through its lifecycle. Cancelling a session
// frees its lesson and reflows the rest of the curriculum.
func (s *SessionService) PatchStatus(ctx context.Context, sessionID string, req dto.PatchSessionStatusRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOrInternal(err, "session not found", "failed to load session")
	}

	target := models.SessionStatus(req.Status)
	if session.Status == target {
		return session, nil
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled sessions cannot change status")
	}

	if err := s.repo.UpdateStatus(ctx, sessionID, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}

	if target == models.SessionStatusCancelled {
		if _, err := s.lessons.UnlinkBySessions(ctx, []string{sessionID}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to free cancelled session")
		}
		if _, err := s.assigner.Rebalance(ctx, session.ClassID); err != nil {
			return nil, err
		}
		s.schedules.Invalidate(ctx, session.ClassID)
	}

	session.Status = target
	return session, nil
}

// PatchTime reschedules a single session and reflows future links.
func (s *SessionService) PatchTime(ctx context.Context, sessionID string, req dto.PatchSessionTimeRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time payload")
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "starts_at must be RFC 3339")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOrInternal(err, "session not found", "failed to load session")
	}
	if session.Status == models.SessionStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled sessions cannot be rescheduled")
	}

	if err := s.repo.UpdateStartTime(ctx, sessionID, startsAt.UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}
	if _, err := s.assigner.Rebalance(ctx, session.ClassID); err != nil {
		return nil, err
	}
	s.schedules.Invalidate(ctx, session.ClassID)

	session.StartsAt = startsAt.UTC()
	return session, nil
}

// AssignSubstitute records a substitute coach on a session.
func (s *SessionService) AssignSubstitute(ctx context.Context, sessionID string, req dto.AssignSubstituteRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute payload")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFoundOrInternal(err, "session not found", "failed to load session")
	}
	if session.Status != models.SessionStatusScheduled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only scheduled sessions accept a substitute")
	}
	coachID := req.CoachID
	if err := s.repo.UpdateSubstitute(ctx, sessionID, &coachID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign substitute")
	}
	session.SubstituteCoachID = &coachID
	return session, nil
}
