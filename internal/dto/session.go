package dto

// PatchSessionStatusRequest moves a session through its lifecycle.
type PatchSessionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=SCHEDULED COMPLETED CANCELLED"`
}

// PatchSessionTimeRequest reschedules a single session in place.
type PatchSessionTimeRequest struct {
	StartsAt string `json:"starts_at" validate:"required"`
}

// AssignSubstituteRequest swaps the coach for one session.
type AssignSubstituteRequest struct {
	CoachID string `json:"coach_id" validate:"required,uuid"`
}
