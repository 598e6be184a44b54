package models

import "time"

// SessionStatus represents the lifecycle of a scheduled meeting.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Session is one concrete scheduled meeting of a class. Sessions are created
// only by the session planner and are never deleted, only re-statused.
type Session struct {
	ID                 string        `db:"id" json:"id"`
	ClassID            string        `db:"class_id" json:"class_id"`
	StartsAt           time.Time     `db:"starts_at" json:"starts_at"`
	Status             SessionStatus `db:"status" json:"status"`
	SubstituteCoachID  *string       `db:"substitute_coach_id" json:"substitute_coach_id,omitempty"`
	MeetingURLSnapshot *string       `db:"meeting_url_snapshot" json:"meeting_url_snapshot,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the session still consumes a lesson unit.
func (s *Session) IsActive() bool {
	return s != nil && s.Status != SessionStatusCancelled
}
