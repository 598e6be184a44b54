package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
)

type planClassRepo struct {
	classes map[string]models.Class
}

func (m *planClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type planSessionRepo struct {
	sessions []models.Session
	db       *sqlx.DB
}

func (m *planSessionRepo) ListByClass(ctx context.Context, classID string) ([]models.Session, error) {
	return m.sessions, nil
}

func (m *planSessionRepo) LastStartTime(ctx context.Context, classID string) (*time.Time, error) {
	var last *time.Time
	for _, s := range m.sessions {
		if s.ClassID != classID {
			continue
		}
		at := s.StartsAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last, nil
}

func (m *planSessionRepo) ExistsAt(ctx context.Context, classID string, startsAt time.Time) (bool, error) {
	for _, s := range m.sessions {
		if s.ClassID == classID && s.StartsAt.Equal(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (m *planSessionRepo) BulkCreate(ctx context.Context, ext sqlx.ExtContext, sessions []models.Session) error {
	m.sessions = append(m.sessions, sessions...)
	return nil
}

func (m *planSessionRepo) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

func TestEnsureFutureSessionsAlignsToScheduleDay(t *testing.T) {
	db, cleanup := newMockTxDB(t, 1)
	defer cleanup()

	// Class starts Wednesday 2026-01-07 but meets Mondays at 10:00 civil
	// time (UTC+7), so the first session lands on Monday 2026-01-12 at
	// 03:00 UTC.
	class := models.Class{
		ID:           "class-1",
		Type:         models.ClassTypeWeekly,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	classes := &planClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessions := &planSessionRepo{db: db}

	svc := NewSessionPlannerService(classes, sessions, PlannerConfig{HorizonWeeks: 12, CivilOffsetHours: 7}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.EnsureFutureSessions(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, resp.SessionsCreated)
	assert.Zero(t, resp.SessionsSkipped)

	first := sessions.sessions[0]
	assert.Equal(t, time.Date(2026, 1, 12, 3, 0, 0, 0, time.UTC), first.StartsAt)
	assert.Equal(t, time.Monday, first.StartsAt.Weekday())
	assert.Equal(t, models.SessionStatusScheduled, first.Status)

	// Every following session is exactly one week later.
	for i := 1; i < len(sessions.sessions); i++ {
		assert.Equal(t, sessions.sessions[i-1].StartsAt.AddDate(0, 0, 7), sessions.sessions[i].StartsAt)
	}
}

func TestEnsureFutureSessionsIsIdempotent(t *testing.T) {
	db, cleanup := newMockTxDB(t, 2)
	defer cleanup()

	class := models.Class{
		ID:           "class-1",
		Type:         models.ClassTypeWeekly,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	classes := &planClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessions := &planSessionRepo{db: db}

	svc := NewSessionPlannerService(classes, sessions, PlannerConfig{HorizonWeeks: 12, CivilOffsetHours: 7}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	first, err := svc.EnsureFutureSessions(context.Background(), class.ID)
	require.NoError(t, err)
	second, err := svc.EnsureFutureSessions(context.Background(), class.ID)
	require.NoError(t, err)

	assert.Equal(t, 11, first.SessionsCreated)
	assert.Zero(t, second.SessionsCreated)
	assert.Len(t, sessions.sessions, 11)
}

func TestEnsureFutureSessionsStopsAtClassEnd(t *testing.T) {
	db, cleanup := newMockTxDB(t, 1)
	defer cleanup()

	endDate := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	class := models.Class{
		ID:           "class-1",
		Type:         models.ClassTypeWeekly,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
		EndDate:      &endDate,
	}
	classes := &planClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessions := &planSessionRepo{db: db}

	svc := NewSessionPlannerService(classes, sessions, PlannerConfig{HorizonWeeks: 12, CivilOffsetHours: 7}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.EnsureFutureSessions(context.Background(), class.ID)
	require.NoError(t, err)

	// Jan 12, 19 and 26 fit before the end date.
	assert.Equal(t, 3, resp.SessionsCreated)
}

func TestGenerateRangeDedupesExistingSlots(t *testing.T) {
	db, cleanup := newMockTxDB(t, 1)
	defer cleanup()

	class := models.Class{
		ID:           "class-1",
		Type:         models.ClassTypeWeekly,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	classes := &planClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessions := &planSessionRepo{db: db, sessions: []models.Session{{
		ID:       "sess-existing",
		ClassID:  class.ID,
		StartsAt: time.Date(2026, 1, 12, 3, 0, 0, 0, time.UTC),
		Status:   models.SessionStatusScheduled,
	}}}

	svc := NewSessionPlannerService(classes, sessions, PlannerConfig{HorizonWeeks: 12, CivilOffsetHours: 7}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.GenerateRange(context.Background(), class.ID, dto.GenerateSessionsRequest{
		StartDate: "2026-01-12",
		EndDate:   "2026-01-26",
		ByDay:     "MO",
		Time:      "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.SessionsCreated)
	assert.Equal(t, 1, resp.SessionsSkipped)
}

func TestEnsureFutureSessionsRealignsAfterOffScheduleSession(t *testing.T) {
	db, cleanup := newMockTxDB(t, 1)
	defer cleanup()

	class := models.Class{
		ID:           "class-1",
		Type:         models.ClassTypeWeekly,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	classes := &planClassRepo{classes: map[string]models.Class{class.ID: class}}
	// An explicit range left the latest session on a Thursday.
	sessions := &planSessionRepo{db: db, sessions: []models.Session{{
		ID:       "sess-thu",
		ClassID:  class.ID,
		StartsAt: time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC),
		Status:   models.SessionStatusScheduled,
	}}}

	svc := NewSessionPlannerService(classes, sessions, PlannerConfig{HorizonWeeks: 12, CivilOffsetHours: 7}, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.EnsureFutureSessions(context.Background(), class.ID)
	require.NoError(t, err)
	require.Positive(t, resp.SessionsCreated)

	// Generation resumes on the Monday after the stray Thursday, not on
	// Thursdays forever.
	created := sessions.sessions[1:]
	assert.Equal(t, time.Date(2026, 1, 19, 3, 0, 0, 0, time.UTC), created[0].StartsAt)
	for _, s := range created {
		assert.Equal(t, time.Monday, s.StartsAt.Weekday())
	}
}

func TestWeekdayFromCodeAcceptsAliases(t *testing.T) {
	for _, code := range []string{"MO", "MON", "MONDAY", "monday"} {
		day, err := WeekdayFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, time.Monday, day)
	}
	thu, err := WeekdayFromCode("THURS")
	require.NoError(t, err)
	assert.Equal(t, time.Thursday, thu)
	_, err = WeekdayFromCode("MONTAG")
	require.Error(t, err)
}

func TestAlignToWeekdayKeepsMatchingDay(t *testing.T) {
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, AlignToWeekday(monday, time.Monday))
	assert.Equal(t, monday.AddDate(0, 0, 3), AlignToWeekday(monday, time.Thursday))
	assert.Equal(t, monday.AddDate(0, 0, 6), AlignToWeekday(monday, time.Sunday))
}
