package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type plannerClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type plannerSessionRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.Session, error)
	LastStartTime(ctx context.Context, classID string) (*time.Time, error)
	ExistsAt(ctx context.Context, classID string, startsAt time.Time) (bool, error)
	BulkCreate(ctx context.Context, ext sqlx.ExtContext, sessions []models.Session) error
	Beginx(ctx context.Context) (*sqlx.Tx, error)
}

// PlannerConfig tunes the rolling session generator.
type PlannerConfig struct {
	HorizonWeeks     int
	CivilOffsetHours int
}

// SessionPlannerService keeps each class supplied with future sessions. It
// generates weekly occurrences aligned to the class schedule day and time,
// expressed in the platform's civil zone and stored in UTC.
type SessionPlannerService struct {
	classes   plannerClassRepository
	sessions  plannerSessionRepository
	cfg       PlannerConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionPlannerService constructs SessionPlannerService.
func NewSessionPlannerService(classes plannerClassRepository, sessions plannerSessionRepository, cfg PlannerConfig, validate *validator.Validate, logger *zap.Logger) *SessionPlannerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HorizonWeeks < 1 {
		cfg.HorizonWeeks = 12
	}
	return &SessionPlannerService{
		classes:   classes,
		sessions:  sessions,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureFutureSessions tops a class up with weekly sessions until the rolling
// horizon. Existing sessions are never touched; generation resumes the day
// after the latest stored session, realigned to the schedule weekday. The
// call is idempotent.
func (s *SessionPlannerService) EnsureFutureSessions(ctx context.Context, classID string) (*dto.GenerateSessionsResponse, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}

	day, err := WeekdayFromCode(class.ScheduleDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status, "class has no usable schedule day")
	}
	hour, minute, err := ParseClockTime(class.ScheduleTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status, "class has no usable schedule time")
	}

	zone := CivilZone(s.cfg.CivilOffsetHours)
	now := s.now().UTC()
	horizon := now.AddDate(0, 0, s.cfg.HorizonWeeks*7)

	first := CombineCivil(AlignToWeekday(class.StartDate.In(zone), day), hour, minute, zone)
	if first.Before(now) {
		first = CombineCivil(AlignToWeekday(now.In(zone), day), hour, minute, zone)
		if first.Before(now) {
			first = first.AddDate(0, 0, 7)
		}
	}

	last, err := s.sessions.LastStartTime(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect existing sessions")
	}
	if last != nil {
		// Resume the day after the latest session and realign, so a stray
		// weekday left behind by an explicit range does not propagate.
		next := CombineCivil(AlignToWeekday(last.In(zone).AddDate(0, 0, 1), day), hour, minute, zone)
		if next.After(first) {
			first = next
		}
	}

	end := horizon
	if class.EndDate != nil && class.EndDate.Before(end) {
		end = *class.EndDate
	}

	created, skipped, err := s.generate(ctx, class, first, end, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	if created > 0 {
		s.logger.Info("generated sessions",
			zap.String("class_id", classID),
			zap.Int("created", created),
			zap.Time("horizon", horizon))
	}
	return &dto.GenerateSessionsResponse{ClassID: classID, SessionsCreated: created, SessionsSkipped: skipped}, nil
}

// GenerateRange materializes weekly sessions over an explicit date range
// with an explicit weekday and time, regardless of the class defaults.
func (s *SessionPlannerService) GenerateRange(ctx context.Context, classID string, req dto.GenerateSessionsRequest) (*dto.GenerateSessionsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation request")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}

	day, err := WeekdayFromCode(req.ByDay)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekday")
	}
	hour, minute, err := ParseClockTime(req.Time)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time")
	}
	zone := CivilZone(s.cfg.CivilOffsetHours)
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, zone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	endDate, err := time.ParseInLocation("2006-01-02", req.EndDate, zone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	first := CombineCivil(AlignToWeekday(startDate, day), hour, minute, zone)
	end := CombineCivil(endDate, 23, 59, zone)

	created, skipped, err := s.generate(ctx, class, first, end, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.GenerateSessionsResponse{ClassID: classID, SessionsCreated: created, SessionsSkipped: skipped}, nil
}

func (s *SessionPlannerService) generate(ctx context.Context, class *models.Class, first, end time.Time, step time.Duration) (created, skipped int, err error) {
	var batch []models.Session
	now := s.now().UTC()
	for at := first; !at.After(end); at = at.Add(step) {
		exists, err := s.sessions.ExistsAt(ctx, class.ID, at)
		if err != nil {
			return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check session slot")
		}
		if exists {
			skipped++
			continue
		}
		batch = append(batch, models.Session{
			ClassID:            class.ID,
			StartsAt:           at,
			Status:             models.SessionStatusScheduled,
			MeetingURLSnapshot: class.MeetingURL,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	if len(batch) == 0 {
		return 0, skipped, nil
	}

	tx, err := s.sessions.Beginx(ctx)
	if err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	if err := s.sessions.BulkCreate(ctx, tx, batch); err != nil {
		tx.Rollback()
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert sessions")
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sessions")
	}
	return len(batch), skipped, nil
}
