package models

import "time"

// ClassType distinguishes curriculum-driven weekly classes from lightweight
// extracurricular ones.
type ClassType string

const (
	ClassTypeWeekly ClassType = "WEEKLY"
	ClassTypeEkskul ClassType = "EKSKUL"
)

// Class represents a recurring scheduled class.
type Class struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Type         ClassType  `db:"type" json:"type"`
	LevelID      *string    `db:"level_id" json:"level_id,omitempty"`
	CoachID      *string    `db:"coach_id" json:"coach_id,omitempty"`
	ScheduleDay  string     `db:"schedule_day" json:"schedule_day"`
	ScheduleTime string     `db:"schedule_time" json:"schedule_time"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	MeetingURL   *string    `db:"meeting_url" json:"meeting_url,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsWeekly reports whether the class follows the materialized curriculum path.
func (c *Class) IsWeekly() bool {
	return c != nil && c.Type == ClassTypeWeekly
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Type      ClassType
	LevelID   string
	CoachID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
