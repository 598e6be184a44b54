package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codecampus-id/academy-api/internal/dto"
	"github.com/codecampus-id/academy-api/internal/models"
	"github.com/codecampus-id/academy-api/internal/service"
	appErrors "github.com/codecampus-id/academy-api/pkg/errors"
	"github.com/codecampus-id/academy-api/pkg/response"
)

// ClassHandler exposes class and block endpoints.
type ClassHandler struct {
	classes *service.ClassService
}

// NewClassHandler constructs ClassHandler.
func NewClassHandler(classes *service.ClassService) *ClassHandler {
	return &ClassHandler{classes: classes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param type query string false "Filter by class type"
// @Param levelId query string false "Filter by level"
// @Param coachId query string false "Filter by coach"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	var filter models.ClassFilter
	filter.Type = models.ClassType(strings.ToUpper(c.Query("type")))
	filter.LevelID = c.Query("levelId")
	filter.CoachID = c.Query("coachId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	classes, pagination, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	class, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Detail godoc
// @Summary Class curriculum detail
// @Description Tops up sessions, assigns lessons and returns the merged view.
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Param coder_id query string false "Include this coder's journey"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Detail(c *gin.Context) {
	detail, err := h.classes.Detail(c.Request.Context(), c.Param("id"), c.Query("coder_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// CreateBlock godoc
// @Summary Append block instance
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.CreateBlockRequest true "Block payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/blocks [post]
func (h *ClassHandler) CreateBlock(c *gin.Context) {
	var req dto.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	block, err := h.classes.CreateBlock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// PatchBlock godoc
// @Summary Edit block instance
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param blockId path string true "Class block ID"
// @Param payload body dto.PatchBlockRequest true "Patch payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/blocks/{blockId} [patch]
func (h *ClassHandler) PatchBlock(c *gin.Context) {
	var req dto.PatchBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	block, err := h.classes.PatchBlock(c.Request.Context(), c.Param("id"), c.Param("blockId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, block, nil)
}

// DeleteBlock godoc
// @Summary Delete block instance
// @Tags Classes
// @Param id path string true "Class ID"
// @Param blockId path string true "Class block ID"
// @Success 204
// @Router /classes/{id}/blocks/{blockId} [delete]
func (h *ClassHandler) DeleteBlock(c *gin.Context) {
	if err := h.classes.DeleteBlock(c.Request.Context(), c.Param("id"), c.Param("blockId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkBlockComplete godoc
// @Summary Complete a block
// @Description Closes the block, advances enrolled coder journeys and rebalances links.
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param blockId path string true "Class block ID"
// @Param payload body dto.MarkBlockCompleteRequest false "Completion payload"
// @Success 204
// @Router /classes/{id}/blocks/{blockId}/complete [post]
func (h *ClassHandler) MarkBlockComplete(c *gin.Context) {
	var req dto.MarkBlockCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if err := h.classes.MarkBlockComplete(c.Request.Context(), c.Param("id"), c.Param("blockId"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
