package models

import "time"

// BlockStatus represents the lifecycle of a block instance. Transitions only
// move forward: UPCOMING -> CURRENT -> COMPLETED.
type BlockStatus string

const (
	BlockStatusUpcoming  BlockStatus = "UPCOMING"
	BlockStatusCurrent   BlockStatus = "CURRENT"
	BlockStatusCompleted BlockStatus = "COMPLETED"
)

// rank orders block statuses for monotonicity checks.
func (s BlockStatus) rank() int {
	switch s {
	case BlockStatusUpcoming:
		return 0
	case BlockStatusCurrent:
		return 1
	case BlockStatusCompleted:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to the target status respects the
// forward-only lifecycle.
func (s BlockStatus) CanTransitionTo(target BlockStatus) bool {
	return target.rank() >= s.rank()
}

// ClassBlock is a concrete occurrence of a BlockTemplate within one class.
type ClassBlock struct {
	ID           string      `db:"id" json:"id"`
	ClassID      string      `db:"class_id" json:"class_id"`
	BlockID      *string     `db:"block_id" json:"block_id,omitempty"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	ShowcaseDate *time.Time  `db:"showcase_date" json:"showcase_date,omitempty"`
	Status       BlockStatus `db:"status" json:"status"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassBlockView is a ClassBlock with the effective display fields resolved
// from its template. Template data stays immutable; the merge happens at read
// time through MergeBlockView.
type ClassBlockView struct {
	ClassBlock
	BlockName         *string `json:"block_name,omitempty"`
	BlockOrderIndex   *int    `json:"block_order_index,omitempty"`
	EstimatedSessions *int    `json:"estimated_sessions,omitempty"`
}

// MergeBlockView resolves the effective display fields of an instance against
// its template. A nil template yields a bare view (hand-made block).
func MergeBlockView(instance ClassBlock, template *BlockTemplate) ClassBlockView {
	view := ClassBlockView{ClassBlock: instance}
	if template == nil {
		return view
	}
	name := template.Name
	order := template.OrderIndex
	view.BlockName = &name
	view.BlockOrderIndex = &order
	view.EstimatedSessions = template.EstimatedSessions
	return view
}
