package models

import "time"

// Level is a curriculum level owning an ordered sequence of block templates.
type Level struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BlockTemplate is a reusable curriculum unit within a level.
type BlockTemplate struct {
	ID                string    `db:"id" json:"id"`
	LevelID           string    `db:"level_id" json:"level_id"`
	Name              string    `db:"name" json:"name"`
	OrderIndex        int       `db:"order_index" json:"order_index"`
	EstimatedSessions *int      `db:"estimated_sessions" json:"estimated_sessions,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// LessonTemplate is a reusable lesson within a block template. A template
// with EstimatedMeetings > 1 is split into that many sequential lesson units
// when instantiated for a class.
type LessonTemplate struct {
	ID                 string    `db:"id" json:"id"`
	BlockID            string    `db:"block_id" json:"block_id"`
	Title              string    `db:"title" json:"title"`
	Summary            *string   `db:"summary" json:"summary,omitempty"`
	OrderIndex         int       `db:"order_index" json:"order_index"`
	EstimatedMeetings  int       `db:"estimated_meetings" json:"estimated_meetings"`
	SlideURL           *string   `db:"slide_url" json:"slide_url,omitempty"`
	MakeupInstructions *string   `db:"makeup_instructions" json:"makeup_instructions,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// MeetingCount returns the number of lesson units this template expands into.
func (t *LessonTemplate) MeetingCount() int {
	if t.EstimatedMeetings < 1 {
		return 1
	}
	return t.EstimatedMeetings
}
