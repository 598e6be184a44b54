package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus-id/academy-api/internal/models"
)

type jrnProgressRepo struct {
	rows    []models.CoderBlockProgress
	nextID  int
	db      *sqlx.DB
	deletes int
}

func (m *jrnProgressRepo) ListByCoderAndLevel(ctx context.Context, coderID, levelID string) ([]models.CoderBlockProgress, error) {
	var out []models.CoderBlockProgress
	for _, r := range m.rows {
		if r.CoderID == coderID && r.LevelID == levelID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JourneyOrder < out[j].JourneyOrder })
	return out, nil
}

func (m *jrnProgressRepo) BulkCreate(ctx context.Context, ext sqlx.ExtContext, rows []models.CoderBlockProgress) error {
	for _, r := range rows {
		m.nextID++
		r.ID = fmt.Sprintf("pr-%d", m.nextID)
		m.rows = append(m.rows, r)
	}
	return nil
}

func (m *jrnProgressRepo) UpdateStatus(ctx context.Context, id string, status models.ProgressStatus, completedAt *time.Time) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Status = status
			m.rows[i].CompletedAt = completedAt
		}
	}
	return nil
}

func (m *jrnProgressRepo) DeleteByCoderAndLevel(ctx context.Context, coderID, levelID string) error {
	m.deletes++
	var kept []models.CoderBlockProgress
	for _, r := range m.rows {
		if r.CoderID != coderID || r.LevelID != levelID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *jrnProgressRepo) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

type jrnCurriculumRepo struct {
	templates []models.BlockTemplate
}

func (m *jrnCurriculumRepo) ListBlockTemplates(ctx context.Context, levelID string) ([]models.BlockTemplate, error) {
	return m.templates, nil
}

type jrnEnrollmentRepo struct {
	enrollments []models.Enrollment
	retired     []string
}

func (m *jrnEnrollmentRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.ClassID == classID && e.Status == models.EnrollmentStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *jrnEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, leftAt *time.Time) error {
	for i := range m.enrollments {
		if m.enrollments[i].ID == id {
			m.enrollments[i].Status = status
			m.enrollments[i].LeftAt = leftAt
		}
	}
	if status == models.EnrollmentStatusInactive {
		m.retired = append(m.retired, id)
	}
	return nil
}

type jrnClassRepo struct {
	classes map[string]models.Class
}

func (m *jrnClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func journeyFixture(t *testing.T, txCount int) (*JourneyService, *jrnProgressRepo, *jrnEnrollmentRepo, func()) {
	db, cleanup := newMockTxDB(t, txCount)
	levelID := "level-1"
	progress := &jrnProgressRepo{db: db}
	curriculum := &jrnCurriculumRepo{templates: []models.BlockTemplate{
		{ID: "bt-a", LevelID: levelID, Name: "Block A", OrderIndex: 1},
		{ID: "bt-b", LevelID: levelID, Name: "Block B", OrderIndex: 2},
		{ID: "bt-c", LevelID: levelID, Name: "Block C", OrderIndex: 3},
	}}
	enrollments := &jrnEnrollmentRepo{enrollments: []models.Enrollment{
		{ID: "enr-1", CoderID: "coder-1", ClassID: "class-1", Status: models.EnrollmentStatusActive},
	}}
	classes := &jrnClassRepo{classes: map[string]models.Class{
		"class-1": {ID: "class-1", Type: models.ClassTypeWeekly, LevelID: &levelID},
	}}
	svc := NewJourneyService(progress, curriculum, enrollments, classes, nil)
	return svc, progress, enrollments, cleanup
}

func TestEnsureJourneySeedsRotatedFromEntryBlock(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 1)
	defer cleanup()

	entry := "bt-b"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	require.Len(t, rows, 3)
	// Entry block leads, earlier catalog blocks wrap to the end.
	assert.Equal(t, "bt-b", rows[0].BlockID)
	assert.Equal(t, "bt-c", rows[1].BlockID)
	assert.Equal(t, "bt-a", rows[2].BlockID)
	assert.Equal(t, models.ProgressStatusInProgress, rows[0].Status)
	assert.Equal(t, models.ProgressStatusPending, rows[1].Status)
	assert.Equal(t, models.ProgressStatusPending, rows[2].Status)
}

func TestEnsureJourneyIsIdempotent(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 2)
	defer cleanup()

	entry := "bt-a"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	assert.Len(t, rows, 3)
	assert.Zero(t, progress.deletes)
}

func TestEnsureJourneyReseedsOnNewEntryBlock(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 2)
	defer cleanup()

	entryA := "bt-a"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entryA))

	// Requesting a different entry block resets the journey around it.
	entryB := "bt-b"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entryB))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	require.Len(t, rows, 3)
	assert.Equal(t, 1, progress.deletes)
	assert.Equal(t, "bt-b", rows[0].BlockID)
	assert.Equal(t, models.ProgressStatusInProgress, rows[0].Status)
}

func TestEnsureJourneyKeepsHistoryWithoutEntryRequest(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 0)
	defer cleanup()

	// Rows referencing a block no longer in the catalog stay untouched; a
	// completed history is never wiped behind the coder's back.
	done := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	progress.rows = []models.CoderBlockProgress{
		{ID: "pr-1", CoderID: "coder-1", LevelID: "level-1", BlockID: "bt-a", JourneyOrder: 1, Status: models.ProgressStatusCompleted, CompletedAt: &done},
		{ID: "pr-2", CoderID: "coder-1", LevelID: "level-1", BlockID: "bt-gone", JourneyOrder: 2, Status: models.ProgressStatusInProgress},
	}

	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", nil))
	unknown := "bt-nowhere"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &unknown))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	require.Len(t, rows, 2)
	assert.Zero(t, progress.deletes)
	assert.Equal(t, models.ProgressStatusCompleted, rows[0].Status)
}

func TestMarkBlockCompletedAdvancesJourney(t *testing.T) {
	svc, progress, enrollments, cleanup := journeyFixture(t, 1)
	defer cleanup()

	entry := "bt-a"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-a"))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	byBlock := map[string]models.CoderBlockProgress{}
	for _, r := range rows {
		byBlock[r.BlockID] = r
	}
	assert.Equal(t, models.ProgressStatusCompleted, byBlock["bt-a"].Status)
	require.NotNil(t, byBlock["bt-a"].CompletedAt)
	assert.Equal(t, models.ProgressStatusInProgress, byBlock["bt-b"].Status)
	assert.Equal(t, models.ProgressStatusPending, byBlock["bt-c"].Status)
	assert.Empty(t, enrollments.retired)

	// At most one row is in progress.
	inProgress := 0
	for _, r := range rows {
		if r.Status == models.ProgressStatusInProgress {
			inProgress++
		}
	}
	assert.Equal(t, 1, inProgress)
}

func TestMarkBlockCompletedWrapsToLowestUnfinished(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 1)
	defer cleanup()

	// Entry at bt-c: journey order is C, A, B... rotation puts bt-c first
	// then bt-a, bt-b. Completing bt-b (the last order) wraps promotion to
	// the lowest unfinished order.
	entry := "bt-c"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-b"))

	rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
	assert.Equal(t, "bt-c", rows[0].BlockID)
	assert.Equal(t, models.ProgressStatusInProgress, rows[0].Status)
	assert.Equal(t, models.ProgressStatusCompleted, rows[2].Status)
}

func TestJourneyFinishRetiresEnrollment(t *testing.T) {
	svc, _, enrollments, cleanup := journeyFixture(t, 1)
	defer cleanup()

	entry := "bt-a"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-a"))
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-b"))
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-c"))

	require.Len(t, enrollments.retired, 1)
	assert.Equal(t, "enr-1", enrollments.retired[0])
	assert.Equal(t, models.EnrollmentStatusInactive, enrollments.enrollments[0].Status)
}

func TestJourneyStatusesAreMonotonic(t *testing.T) {
	svc, progress, _, cleanup := journeyFixture(t, 1)
	defer cleanup()

	entry := "bt-a"
	require.NoError(t, svc.EnsureJourney(context.Background(), "coder-1", "level-1", &entry))

	snapshot := func() map[string]models.ProgressStatus {
		rows, _ := progress.ListByCoderAndLevel(context.Background(), "coder-1", "level-1")
		out := map[string]models.ProgressStatus{}
		for _, r := range rows {
			out[r.BlockID] = r.Status
		}
		return out
	}

	before := snapshot()
	require.NoError(t, svc.MarkBlockCompletedForClass(context.Background(), "class-1", "bt-a"))
	after := snapshot()

	rank := map[models.ProgressStatus]int{
		models.ProgressStatusPending:    0,
		models.ProgressStatusInProgress: 1,
		models.ProgressStatusCompleted:  2,
	}
	// No completed row ever regresses.
	for block, prev := range before {
		if prev == models.ProgressStatusCompleted {
			assert.GreaterOrEqual(t, rank[after[block]], rank[prev], block)
		}
	}
	assert.Equal(t, models.ProgressStatusCompleted, after["bt-a"])
}
