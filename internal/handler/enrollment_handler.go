package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/service"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
	"github.com/codecampus-id/academy-api/pkg/response"
)

// EnrollmentHandler exposes enrollment and journey endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	journeys    *service.JourneyService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, journeys *service.JourneyService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, journeys: journeys}
}

// Enroll godoc
// @Summary Enroll coder in class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// ListByClass godoc
// @Summary Active class roster
// @Tags Enrollments
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/enrollments [get]
func (h *EnrollmentHandler) ListByClass(c *gin.Context) {
	enrollments, err := h.enrollments.ListByClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Withdraw godoc
// @Summary Withdraw enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	if err := h.enrollments.Withdraw(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Journey godoc
// @Summary Coder journey for a level
// @Tags Progress
// @Produce json
// @Param coderId path string true "Coder ID"
// @Param levelId path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /coders/{coderId}/levels/{levelId}/journey [get]
func (h *EnrollmentHandler) Journey(c *gin.Context) {
	entries, err := h.journeys.GetJourney(c.Request.Context(), c.Param("coderId"), c.Param("levelId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
