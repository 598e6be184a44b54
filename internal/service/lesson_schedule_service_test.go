package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecampus-id/academy-api/internal/models"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
)

type schedClassRepo struct {
	classes map[string]models.Class
}

func (m *schedClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type schedSessionRepo struct {
	sessions []models.Session
}

func (m *schedSessionRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.ClassID == classID && s.Status != models.SessionStatusCancelled {
			out = append(out, s)
		}
	}
	return out, nil
}

type schedCurriculumRepo struct {
	lessons []models.LessonTemplate
}

func (m *schedCurriculumRepo) ListLessonTemplatesByLevel(ctx context.Context, levelID string) ([]models.LessonTemplate, error) {
	return m.lessons, nil
}

type memoryCache struct {
	store map[string][]byte
	sets  int
	gets  int
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	m.sets++
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.store = nil
	return nil
}

func adHocFixture() (*schedClassRepo, *schedSessionRepo, *schedCurriculumRepo) {
	levelID := "level-ekskul"
	class := models.Class{
		ID:      "class-ek",
		Type:    models.ClassTypeEkskul,
		LevelID: &levelID,
	}
	start := time.Date(2026, 3, 7, 2, 0, 0, 0, time.UTC)
	var sessions []models.Session
	for i := 0; i < 5; i++ {
		sessions = append(sessions, models.Session{
			ID:       string(rune('a' + i)),
			ClassID:  class.ID,
			StartsAt: start.AddDate(0, 0, 7*i),
			Status:   models.SessionStatusScheduled,
		})
	}
	lessons := []models.LessonTemplate{
		{ID: "lt-1", Title: "Scratch Basics", OrderIndex: 1, EstimatedMeetings: 1},
		{ID: "lt-2", Title: "Sprites", OrderIndex: 2, EstimatedMeetings: 1},
		{ID: "lt-3", Title: "Game Loop", OrderIndex: 3, EstimatedMeetings: 1},
	}
	return &schedClassRepo{classes: map[string]models.Class{class.ID: class}},
		&schedSessionRepo{sessions: sessions},
		&schedCurriculumRepo{lessons: lessons}
}

func TestFullScheduleCyclesThroughLessons(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	svc := NewLessonScheduleService(classes, sessions, curriculum, nil, time.Minute, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.FullSchedule(context.Background(), "class-ek", false)
	require.NoError(t, err)
	require.Len(t, resp.Slots, 5)

	// Five sessions over three lessons: positions cycle 0,1,2,0,1.
	assert.Equal(t, []int{0, 1, 2, 0, 1}, []int{
		resp.Slots[0].CycleIndex,
		resp.Slots[1].CycleIndex,
		resp.Slots[2].CycleIndex,
		resp.Slots[3].CycleIndex,
		resp.Slots[4].CycleIndex,
	})
	assert.False(t, resp.Slots[2].Wrapped)
	assert.True(t, resp.Slots[3].Wrapped)
	assert.Equal(t, "Scratch Basics", resp.Slots[0].Title)
	assert.Equal(t, "Scratch Basics (Round 2)", resp.Slots[3].Title)
}

func TestComputeScheduleServesFromCache(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	cache := &memoryCache{}
	svc := NewLessonScheduleService(classes, sessions, curriculum, cache, time.Minute, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	first, err := svc.ComputeSchedule(context.Background(), "class-ek")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.ComputeSchedule(context.Background(), "class-ek")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, cache.sets)
	assert.Len(t, second.Slots, len(first.Slots))
}

func TestComputeScheduleFutureOnlyAnchorsCycle(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	svc := NewLessonScheduleService(classes, sessions, curriculum, nil, time.Minute, nil, nil)
	// Two sessions are already in the past; their cycle positions are
	// consumed even though they are not returned.
	svc.now = func() time.Time { return sessions.sessions[1].StartsAt.Add(time.Hour) }

	resp, err := svc.FullSchedule(context.Background(), "class-ek", true)
	require.NoError(t, err)
	require.Len(t, resp.Slots, 3)
	assert.Equal(t, 2, resp.Slots[0].CycleIndex)
	assert.Equal(t, 0, resp.Slots[1].CycleIndex)
}

func TestFullScheduleExpandsMultiMeetingLessons(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	curriculum.lessons = []models.LessonTemplate{
		{ID: "lt-1", Title: "Scratch Basics", OrderIndex: 1, EstimatedMeetings: 2},
		{ID: "lt-2", Title: "Sprites", OrderIndex: 2, EstimatedMeetings: 1},
	}
	svc := NewLessonScheduleService(classes, sessions, curriculum, nil, time.Minute, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	resp, err := svc.FullSchedule(context.Background(), "class-ek", false)
	require.NoError(t, err)
	require.Len(t, resp.Slots, 5)

	// Two-meeting lesson occupies two cycle positions with part titles.
	assert.Equal(t, "Scratch Basics (Part 1)", resp.Slots[0].Title)
	assert.Equal(t, "Scratch Basics (Part 2)", resp.Slots[1].Title)
	assert.Equal(t, "lt-1", resp.Slots[1].LessonID)
	assert.Equal(t, "Sprites", resp.Slots[2].Title)
	// The fourth session wraps back to the first part.
	assert.True(t, resp.Slots[3].Wrapped)
	assert.Equal(t, "Scratch Basics (Part 1) (Round 2)", resp.Slots[3].Title)
}

func TestFullScheduleEmptyLessonListYieldsEmptyMapping(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	curriculum.lessons = nil
	svc := NewLessonScheduleService(classes, sessions, curriculum, nil, time.Minute, nil, nil)

	resp, err := svc.FullSchedule(context.Background(), "class-ek", false)
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
}

func TestFormatSlotTitle(t *testing.T) {
	assert.Equal(t, "Sprites", FormatSlotTitle("Sprites", 1, 3))
	assert.Equal(t, "Sprites (Round 2)", FormatSlotTitle("Sprites", 4, 3))
	assert.Equal(t, "Sprites (Round 3)", FormatSlotTitle("Sprites", 7, 3))
}

func TestFullScheduleRequiresLevel(t *testing.T) {
	classes, sessions, curriculum := adHocFixture()
	class := classes.classes["class-ek"]
	class.LevelID = nil
	classes.classes["class-ek"] = class

	svc := NewLessonScheduleService(classes, sessions, curriculum, nil, time.Minute, nil, nil)
	_, err := svc.FullSchedule(context.Background(), "class-ek", false)
	require.Error(t, err)
}
