package dto

// EnrollRequest joins a coder to a class and seeds their journey.
type EnrollRequest struct {
	CoderID string `json:"coder_id" validate:"required,uuid"`
}

// MarkBlockCompleteRequest closes out a block for every active coder in the
// class and advances their journeys.
type MarkBlockCompleteRequest struct {
	ShowcaseDate *string `json:"showcase_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
