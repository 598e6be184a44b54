package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/service"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
	"github.com/codecampus-id/academy-api/pkg/response"
)

// SchedulerHandler exposes session generation and schedule computation.
type SchedulerHandler struct {
	planner   *service.SessionPlannerService
	schedules *service.LessonScheduleService
	sweep     *service.SweepService
}

// NewSchedulerHandler constructs SchedulerHandler.
func NewSchedulerHandler(planner *service.SessionPlannerService, schedules *service.LessonScheduleService, sweep *service.SweepService) *SchedulerHandler {
	return &SchedulerHandler{planner: planner, schedules: schedules, sweep: sweep}
}

// GenerateSessions godoc
// @Summary Generate sessions over a range
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.GenerateSessionsRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/sessions/generate [post]
func (h *SchedulerHandler) GenerateSessions(c *gin.Context) {
	var req dto.GenerateSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.planner.GenerateRange(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// EnsureSessions godoc
// @Summary Top up future sessions
// @Tags Scheduler
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/sessions/ensure [post]
func (h *SchedulerHandler) EnsureSessions(c *gin.Context) {
	result, err := h.planner.EnsureFutureSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Schedule godoc
// @Summary Ad-hoc cyclic schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedule [get]
func (h *SchedulerHandler) Schedule(c *gin.Context) {
	schedule, err := h.schedules.ComputeSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"from_cache": schedule.FromCache}
	response.JSON(c, http.StatusOK, schedule, nil, meta)
}

// SweepNow godoc
// @Summary Trigger a sweep over all active classes
// @Tags Scheduler
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /scheduler/sweep [post]
func (h *SchedulerHandler) SweepNow(c *gin.Context) {
	enqueued, err := h.sweep.SweepNow(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"classes_enqueued": enqueued}, nil)
}
