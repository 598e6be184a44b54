package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus-id/academy-api/internal/models"
)

type asgClassRepo struct {
	classes map[string]models.Class
}

func (m *asgClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type asgSessionRepo struct {
	sessions []models.Session
	db       *sqlx.DB
}

func (m *asgSessionRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.ClassID == classID && s.Status != models.SessionStatusCancelled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (m *asgSessionRepo) Beginx(ctx context.Context) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, nil)
}

type asgBlockRepo struct {
	blocks  []models.ClassBlock
	created int
}

func (m *asgBlockRepo) ListByClass(ctx context.Context, classID string) ([]models.ClassBlock, error) {
	var out []models.ClassBlock
	for _, b := range m.blocks {
		if b.ClassID == classID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *asgBlockRepo) Create(ctx context.Context, block *models.ClassBlock) error {
	m.created++
	block.ID = fmt.Sprintf("cb-auto-%d", m.created)
	m.blocks = append(m.blocks, *block)
	return nil
}

func (m *asgBlockRepo) UpdateStatus(ctx context.Context, id string, status models.BlockStatus) error {
	for i := range m.blocks {
		if m.blocks[i].ID == id {
			m.blocks[i].Status = status
		}
	}
	return nil
}

type asgLessonRepo struct {
	lessons map[string][]models.ClassLesson
	nextID  int
	links   int
}

func (m *asgLessonRepo) ListByBlock(ctx context.Context, classBlockID string) ([]models.ClassLesson, error) {
	out := append([]models.ClassLesson(nil), m.lessons[classBlockID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *asgLessonRepo) BulkCreate(ctx context.Context, ext sqlx.ExtContext, lessons []models.ClassLesson) error {
	if m.lessons == nil {
		m.lessons = make(map[string][]models.ClassLesson)
	}
	for _, l := range lessons {
		m.nextID++
		l.ID = fmt.Sprintf("cl-%d", m.nextID)
		m.lessons[l.ClassBlockID] = append(m.lessons[l.ClassBlockID], l)
	}
	return nil
}

func (m *asgLessonRepo) Link(ctx context.Context, lessonID, sessionID string, unlockAt time.Time) error {
	for blockID := range m.lessons {
		for i := range m.lessons[blockID] {
			if m.lessons[blockID][i].ID == lessonID {
				sid := sessionID
				at := unlockAt
				m.lessons[blockID][i].SessionID = &sid
				m.lessons[blockID][i].UnlockAt = &at
				m.links++
			}
		}
	}
	return nil
}

func (m *asgLessonRepo) UnlinkBySessions(ctx context.Context, sessionIDs []string) (int, error) {
	ids := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		ids[id] = true
	}
	affected := 0
	for blockID := range m.lessons {
		for i := range m.lessons[blockID] {
			l := &m.lessons[blockID][i]
			if l.SessionID != nil && ids[*l.SessionID] {
				l.SessionID = nil
				l.UnlockAt = nil
				affected++
			}
		}
	}
	return affected, nil
}

type asgCurriculumRepo struct {
	blockTemplates  []models.BlockTemplate
	lessonTemplates map[string][]models.LessonTemplate
}

func (m *asgCurriculumRepo) ListBlockTemplates(ctx context.Context, levelID string) ([]models.BlockTemplate, error) {
	var out []models.BlockTemplate
	for _, b := range m.blockTemplates {
		if b.LevelID == levelID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *asgCurriculumRepo) FindBlockTemplate(ctx context.Context, id string) (*models.BlockTemplate, error) {
	for _, b := range m.blockTemplates {
		if b.ID == id {
			c := b
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *asgCurriculumRepo) ListLessonTemplates(ctx context.Context, blockTemplateID string) ([]models.LessonTemplate, error) {
	return m.lessonTemplates[blockTemplateID], nil
}

func strPtr(v string) *string { return &v }

func newMockTxDB(t *testing.T, n int) (*sqlx.DB, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	return sqlx.NewDb(db, "sqlmock"), func() { db.Close() }
}

func weeklyClassFixture() (models.Class, []models.Session) {
	levelID := "level-1"
	start := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC) // Monday 10:00 UTC+7
	class := models.Class{
		ID:           "class-1",
		Name:         "Go Rangers",
		Type:         models.ClassTypeWeekly,
		LevelID:      &levelID,
		ScheduleDay:  "MO",
		ScheduleTime: "10:00",
		StartDate:    start,
	}
	var sessions []models.Session
	for i := 0; i < 12; i++ {
		sessions = append(sessions, models.Session{
			ID:       fmt.Sprintf("sess-%02d", i+1),
			ClassID:  class.ID,
			StartsAt: start.AddDate(0, 0, 7*i),
			Status:   models.SessionStatusScheduled,
		})
	}
	return class, sessions
}

func curriculumFixture() *asgCurriculumRepo {
	return &asgCurriculumRepo{
		blockTemplates: []models.BlockTemplate{
			{ID: "bt-a", LevelID: "level-1", Name: "Block A", OrderIndex: 1},
			{ID: "bt-b", LevelID: "level-1", Name: "Block B", OrderIndex: 2},
		},
		lessonTemplates: map[string][]models.LessonTemplate{
			"bt-a": {
				{ID: "lt-1", BlockID: "bt-a", Title: "Variables", OrderIndex: 1, EstimatedMeetings: 1},
				{ID: "lt-2", BlockID: "bt-a", Title: "Loops", OrderIndex: 2, EstimatedMeetings: 2},
			},
			"bt-b": {
				{ID: "lt-3", BlockID: "bt-b", Title: "Functions", OrderIndex: 1, EstimatedMeetings: 1},
			},
		},
	}
}

func TestAutoAssignInstantiatesAndLinksInOrder(t *testing.T) {
	class, sessions := weeklyClassFixture()
	db, cleanup := newMockTxDB(t, 6)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions, db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusUpcoming,
	}}}
	lessonRepo := &asgLessonRepo{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }

	report, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	// Block A expands to three units: Variables, Loops (Part 1), Loops (Part 2).
	aLessons, _ := lessonRepo.ListByBlock(context.Background(), "cb-a")
	require.Len(t, aLessons, 3)
	assert.Equal(t, "Variables", aLessons[0].Title)
	assert.Equal(t, "Loops (Part 1)", aLessons[1].Title)
	assert.Equal(t, "Loops (Part 2)", aLessons[2].Title)

	// Supply ran short of the 12 sessions: the catalog grows B, A, B, A, B
	// to cover the horizon, wrapping once Block B runs out.
	assert.Equal(t, 5, blocks.created)
	assert.Equal(t, 5, report.BlocksCreated)

	// Every session receives a unit in strict order.
	assert.Equal(t, 12, report.LessonsAssigned)
	require.NotNil(t, aLessons[0].SessionID)
	assert.Equal(t, "sess-01", *aLessons[0].SessionID)
	assert.Equal(t, "sess-02", *aLessons[1].SessionID)
	assert.Equal(t, "sess-03", *aLessons[2].SessionID)
	bLessons, _ := lessonRepo.ListByBlock(context.Background(), "cb-auto-1")
	require.Len(t, bLessons, 1)
	require.NotNil(t, bLessons[0].SessionID)
	assert.Equal(t, "sess-04", *bLessons[0].SessionID)

	// The second copy of Block A starts its own lesson cycle.
	a2Lessons, _ := lessonRepo.ListByBlock(context.Background(), "cb-auto-2")
	require.Len(t, a2Lessons, 3)
	assert.Equal(t, "Variables", a2Lessons[0].Title)
	require.NotNil(t, a2Lessons[0].SessionID)
	assert.Equal(t, "sess-05", *a2Lessons[0].SessionID)

	// Unlock times mirror the linked session starts.
	assert.Equal(t, sessions[0].StartsAt, *aLessons[0].UnlockAt)

	// Block A holds the nearest future work and is CURRENT, the rest UPCOMING.
	synced, _ := blocks.ListByClass(context.Background(), class.ID)
	require.Len(t, synced, 6)
	assert.Equal(t, models.BlockStatusCurrent, synced[0].Status)
	for _, b := range synced[1:] {
		assert.Equal(t, models.BlockStatusUpcoming, b.Status)
	}
}

func TestAutoAssignIsIdempotent(t *testing.T) {
	class, sessions := weeklyClassFixture()
	db, cleanup := newMockTxDB(t, 6)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions, db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusUpcoming,
	}}}
	lessonRepo := &asgLessonRepo{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }

	first, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)
	second, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	// The second pass relinks the same units to the same sessions and adds
	// no new blocks or lessons.
	assert.Equal(t, first.LessonsAssigned, second.LessonsAssigned)
	assert.Equal(t, 0, second.BlocksCreated)
	assert.Equal(t, first.LessonsAssigned, second.LessonsUnlinked)

	aLessons, _ := lessonRepo.ListByBlock(context.Background(), "cb-a")
	assert.Equal(t, "sess-01", *aLessons[0].SessionID)
	assert.Equal(t, "sess-02", *aLessons[1].SessionID)
	assert.Equal(t, "sess-03", *aLessons[2].SessionID)
}

func TestAutoAssignSkipsCancelledSessions(t *testing.T) {
	class, sessions := weeklyClassFixture()
	sessions[1].Status = models.SessionStatusCancelled
	db, cleanup := newMockTxDB(t, 5)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions, db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusUpcoming,
	}}}
	lessonRepo := &asgLessonRepo{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }

	_, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	// The cancelled second session gets nothing; its lesson slides to the
	// third session.
	aLessons, _ := lessonRepo.ListByBlock(context.Background(), "cb-a")
	assert.Equal(t, "sess-01", *aLessons[0].SessionID)
	assert.Equal(t, "sess-03", *aLessons[1].SessionID)
	assert.Equal(t, "sess-04", *aLessons[2].SessionID)
}

func TestAutoAssignIsNoOpForAdHocClass(t *testing.T) {
	class, sessions := weeklyClassFixture()
	class.LevelID = nil
	db, cleanup := newMockTxDB(t, 0)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	blocks := &asgBlockRepo{}
	svc := NewLessonAssignmentService(classes, &asgSessionRepo{sessions: sessions, db: db}, blocks, &asgLessonRepo{}, curriculumFixture(), nil, nil)

	// A class outside the curriculum path reports zero work, not an error.
	report, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Zero(t, report.LessonsAssigned)
	assert.Zero(t, report.BlocksCreated)
	assert.Zero(t, blocks.created)
}

func TestSyncBlockStatusesAllPastKeepsLastCurrent(t *testing.T) {
	class, sessions := weeklyClassFixture()
	db, cleanup := newMockTxDB(t, 6)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions, db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusUpcoming,
	}}}
	lessonRepo := &asgLessonRepo{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }
	_, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	// Jump past every session: nothing holds future work anymore, so the
	// last block stays CURRENT and everything before it is COMPLETED.
	svc.now = func() time.Time { return sessions[11].StartsAt.AddDate(1, 0, 0) }
	changed, err := svc.syncBlockStatuses(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Positive(t, changed)

	synced, _ := blocks.ListByClass(context.Background(), class.ID)
	assert.Equal(t, models.BlockStatusCompleted, synced[0].Status)
	assert.Equal(t, models.BlockStatusCurrent, synced[len(synced)-1].Status)
}

type asgJourneys struct {
	completed [][2]string
}

func (m *asgJourneys) MarkBlockCompletedForClass(ctx context.Context, classID, blockTemplateID string) error {
	m.completed = append(m.completed, [2]string{classID, blockTemplateID})
	return nil
}

func TestAutoAssignKeepsOneUpcomingBlockAtCapacity(t *testing.T) {
	class, sessions := weeklyClassFixture()
	db, cleanup := newMockTxDB(t, 2)
	defer cleanup()

	// The current block alone over-supplies the two remaining sessions.
	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions[:2], db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusCurrent,
	}}}
	lessonRepo := &asgLessonRepo{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }

	report, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	// One block is still instantiated ahead of the current one.
	assert.Equal(t, 1, report.BlocksCreated)
	synced, _ := blocks.ListByClass(context.Background(), class.ID)
	require.Len(t, synced, 2)
	assert.Equal(t, models.BlockStatusCurrent, synced[0].Status)
	assert.Equal(t, models.BlockStatusUpcoming, synced[1].Status)
	require.NotNil(t, synced[1].BlockID)
	assert.Equal(t, "bt-b", *synced[1].BlockID)
}

func TestSyncBlockStatusesNeverMovesBlocksBackward(t *testing.T) {
	class, sessions := weeklyClassFixture()

	// An operator completed the block even though a lesson is still
	// unassigned; the synchronizer must not reopen it.
	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-done",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusCompleted,
	}}}
	lessonRepo := &asgLessonRepo{lessons: map[string][]models.ClassLesson{
		"cb-done": {{ID: "cl-1", ClassBlockID: "cb-done", Title: "Variables", OrderIndex: 1000}},
	}}

	svc := NewLessonAssignmentService(classes, &asgSessionRepo{}, blocks, lessonRepo, curriculumFixture(), nil, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }

	changed, err := svc.syncBlockStatuses(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Zero(t, changed)

	synced, _ := blocks.ListByClass(context.Background(), class.ID)
	assert.Equal(t, models.BlockStatusCompleted, synced[0].Status)
}

func TestAutoAssignAdvancesJourneysWhenBlocksComplete(t *testing.T) {
	class, sessions := weeklyClassFixture()
	db, cleanup := newMockTxDB(t, 6)
	defer cleanup()

	classes := &asgClassRepo{classes: map[string]models.Class{class.ID: class}}
	sessionRepo := &asgSessionRepo{sessions: sessions, db: db}
	blocks := &asgBlockRepo{blocks: []models.ClassBlock{{
		ID:        "cb-a",
		ClassID:   class.ID,
		BlockID:   strPtr("bt-a"),
		StartDate: sessions[0].StartsAt,
		EndDate:   sessions[2].StartsAt,
		Status:    models.BlockStatusUpcoming,
	}}}
	lessonRepo := &asgLessonRepo{}
	journeys := &asgJourneys{}

	svc := NewLessonAssignmentService(classes, sessionRepo, blocks, lessonRepo, curriculumFixture(), journeys, nil)
	svc.now = func() time.Time { return sessions[0].StartsAt.Add(-time.Hour) }
	_, err := svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Empty(t, journeys.completed)

	// Three sessions pass, exhausting the first block. The next pass flips
	// it to COMPLETED and advances the enrolled coders.
	svc.now = func() time.Time { return sessions[2].StartsAt.Add(time.Hour) }
	_, err = svc.AutoAssign(context.Background(), class.ID)
	require.NoError(t, err)

	require.Len(t, journeys.completed, 1)
	assert.Equal(t, [2]string{class.ID, "bt-a"}, journeys.completed[0])
	synced, _ := blocks.ListByClass(context.Background(), class.ID)
	assert.Equal(t, models.BlockStatusCompleted, synced[0].Status)
	assert.Equal(t, models.BlockStatusCurrent, synced[1].Status)
}

func TestExpandLessonTemplatesOrdering(t *testing.T) {
	units := ExpandLessonTemplates("cb-1", []models.LessonTemplate{
		{ID: "lt-1", Title: "Intro", OrderIndex: 1, EstimatedMeetings: 1},
		{ID: "lt-2", Title: "Deep Dive", OrderIndex: 2, EstimatedMeetings: 3},
	})
	require.Len(t, units, 4)
	assert.Equal(t, "Intro", units[0].Title)
	assert.Equal(t, "Deep Dive (Part 1)", units[1].Title)
	assert.Equal(t, "Deep Dive (Part 3)", units[3].Title)
	assert.True(t, sort.SliceIsSorted(units, func(i, j int) bool { return units[i].OrderIndex < units[j].OrderIndex }))
	assert.Equal(t, models.PartOrderIndex(2, 3), units[3].OrderIndex)
}
