package models

import "time"

// ProgressStatus represents a coder's state on one block of their journey.
// Rows only ever move forward: PENDING -> IN_PROGRESS -> COMPLETED.
type ProgressStatus string

const (
	ProgressStatusPending    ProgressStatus = "PENDING"
	ProgressStatusInProgress ProgressStatus = "IN_PROGRESS"
	ProgressStatusCompleted  ProgressStatus = "COMPLETED"
)

// CoderBlockProgress is one row of a coder's journey through a level.
// Invariant per (coder, level): at most one row IN_PROGRESS, and every row
// with a lower journey order than the IN_PROGRESS row is COMPLETED.
type CoderBlockProgress struct {
	ID           string         `db:"id" json:"id"`
	CoderID      string         `db:"coder_id" json:"coder_id"`
	LevelID      string         `db:"level_id" json:"level_id"`
	BlockID      string         `db:"block_id" json:"block_id"`
	JourneyOrder int            `db:"journey_order" json:"journey_order"`
	Status       ProgressStatus `db:"status" json:"status"`
	CompletedAt  *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}
