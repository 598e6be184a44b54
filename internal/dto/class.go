package dto

import (
	"time"

	"github.com/codecampus-id/academy-api/internal/models"
)

// CreateClassRequest registers a new class. Level is optional; classes
// without one fall back to the ad-hoc cyclic schedule.
type CreateClassRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	Type         string  `json:"type" validate:"required,oneof=WEEKLY EKSKUL"`
	LevelID      *string `json:"level_id,omitempty" validate:"omitempty,uuid"`
	CoachID      *string `json:"coach_id,omitempty" validate:"omitempty,uuid"`
	ScheduleDay  string  `json:"schedule_day" validate:"required,oneof=MO TU WE TH FR SA SU"`
	ScheduleTime string  `json:"schedule_time" validate:"required,datetime=15:04"`
	StartDate    string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MeetingURL   *string `json:"meeting_url,omitempty" validate:"omitempty,url"`
}

// PatchBlockRequest edits instance-level block fields. Template data is
// immutable and never patched through here.
type PatchBlockRequest struct {
	StartDate    *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate      *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ShowcaseDate *string `json:"showcase_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status       *string `json:"status,omitempty" validate:"omitempty,oneof=UPCOMING CURRENT COMPLETED"`
}

// CreateBlockRequest appends a hand-made block instance to a class.
type CreateBlockRequest struct {
	BlockID   *string `json:"block_id,omitempty" validate:"omitempty,uuid"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// ClassDetailResponse is the full curriculum view of one class.
type ClassDetailResponse struct {
	Class    models.Class     `json:"class"`
	Blocks   []BlockDetail    `json:"blocks"`
	Sessions []SessionView    `json:"sessions"`
	Journey  []JourneyEntry   `json:"journey,omitempty"`
	Schedule []LessonSlotView `json:"schedule,omitempty"`
}

// BlockDetail is one block of the class detail with its lessons inlined.
type BlockDetail struct {
	models.ClassBlockView
	Lessons []models.ClassLesson `json:"lessons"`
}

// SessionView is a session together with its linked lesson, if any.
type SessionView struct {
	models.Session
	Lesson *models.ClassLesson `json:"lesson,omitempty"`
}

// JourneyEntry is one row of a coder's journey as returned to clients.
type JourneyEntry struct {
	BlockID      string                `json:"block_id"`
	BlockName    string                `json:"block_name"`
	JourneyOrder int                   `json:"journey_order"`
	Status       models.ProgressStatus `json:"status"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}
