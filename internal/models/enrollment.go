package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive   EnrollmentStatus = "ACTIVE"
	EnrollmentStatusInactive EnrollmentStatus = "INACTIVE"
)

// Enrollment links a coder to a class. It flips to INACTIVE automatically
// once the coder's journey has no unfinished blocks left.
type Enrollment struct {
	ID       string           `db:"id" json:"id"`
	CoderID  string           `db:"coder_id" json:"coder_id"`
	ClassID  string           `db:"class_id" json:"class_id"`
	Status   EnrollmentStatus `db:"status" json:"status"`
	JoinedAt time.Time        `db:"joined_at" json:"joined_at"`
	LeftAt   *time.Time       `db:"left_at" json:"left_at,omitempty"`
}
