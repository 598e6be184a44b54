package dto

import "time"

// GenerateSessionsRequest asks the planner to materialize sessions for a
// class over an explicit date range. ByDay uses iCalendar weekday codes.
type GenerateSessionsRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	ByDay     string `json:"by_day" validate:"required,oneof=MO TU WE TH FR SA SU"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
}

// GenerateSessionsResponse reports what a planner run produced.
type GenerateSessionsResponse struct {
	ClassID         string `json:"class_id"`
	SessionsCreated int    `json:"sessions_created"`
	SessionsSkipped int    `json:"sessions_skipped"`
}

// AssignReport summarizes one auto-assignment pass over a class.
type AssignReport struct {
	ClassID          string    `json:"class_id"`
	SessionsCovered  int       `json:"sessions_covered"`
	LessonsAssigned  int       `json:"lessons_assigned"`
	LessonsUnlinked  int       `json:"lessons_unlinked"`
	BlocksCreated    int       `json:"blocks_created"`
	BlocksRestatused int       `json:"blocks_restatused"`
	RanAt            time.Time `json:"ran_at"`
}

// SweepReport summarizes a background sweep over many classes.
type SweepReport struct {
	ClassesSwept int       `json:"classes_swept"`
	Failures     int       `json:"failures"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}
