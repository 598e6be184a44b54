package dto

import "time"

// LessonSlotView is one entry of the ad-hoc cyclic schedule: a session date
// paired with the lesson template that cycle position lands on.
type LessonSlotView struct {
	SessionID  string    `json:"session_id"`
	StartsAt   time.Time `json:"starts_at"`
	LessonID   string    `json:"lesson_id"`
	Title      string    `json:"title"`
	CycleIndex int       `json:"cycle_index"`
	Wrapped    bool      `json:"wrapped"`
}

// ScheduleResponse is the cached ad-hoc schedule of a class.
type ScheduleResponse struct {
	ClassID    string           `json:"class_id"`
	Slots      []LessonSlotView `json:"slots"`
	ComputedAt time.Time        `json:"computed_at"`
	FromCache  bool             `json:"-"`
}
