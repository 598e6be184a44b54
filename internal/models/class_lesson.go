package models

import "time"

// ClassLesson is a concrete, assignable occurrence of one lesson template
// part within a class block. At most one session references a lesson and vice
// versa; UnlockAt mirrors the linked session's start time.
type ClassLesson struct {
	ID               string     `db:"id" json:"id"`
	ClassBlockID     string     `db:"class_block_id" json:"class_block_id"`
	LessonTemplateID *string    `db:"lesson_template_id" json:"lesson_template_id,omitempty"`
	Title            string     `db:"title" json:"title"`
	Summary          *string    `db:"summary" json:"summary,omitempty"`
	OrderIndex       int        `db:"order_index" json:"order_index"`
	SessionID        *string    `db:"session_id" json:"session_id,omitempty"`
	UnlockAt         *time.Time `db:"unlock_at" json:"unlock_at,omitempty"`
	SlideURL         *string    `db:"slide_url" json:"slide_url,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Assigned reports whether the lesson is already linked to a session.
func (l *ClassLesson) Assigned() bool {
	return l != nil && l.SessionID != nil && *l.SessionID != ""
}

// PartOrderIndex spaces template order indexes so multi-part lessons keep a
// stable, collision-free position inside their block.
func PartOrderIndex(templateOrder, part int) int {
	return templateOrder*1000 + part
}
