package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/service"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
	"github.com/codecampus-id/academy-api/pkg/response"
)

// SessionHandler exposes session lifecycle endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// PatchStatus godoc
// @Summary Change session status
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.PatchSessionStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/status [patch]
func (h *SessionHandler) PatchStatus(c *gin.Context) {
	var req dto.PatchSessionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.sessions.PatchStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// PatchTime godoc
// @Summary Reschedule session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.PatchSessionTimeRequest true "Time payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/time [patch]
func (h *SessionHandler) PatchTime(c *gin.Context) {
	var req dto.PatchSessionTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.sessions.PatchTime(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// AssignSubstitute godoc
// @Summary Assign substitute coach
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.AssignSubstituteRequest true "Substitute payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/substitute [post]
func (h *SessionHandler) AssignSubstitute(c *gin.Context) {
	var req dto.AssignSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	session, err := h.sessions.AssignSubstitute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}
