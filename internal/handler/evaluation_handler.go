package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/internal/service"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
	"github.com/coachdesk/coachdesk-api/pkg/response"
)

// EvaluationHandler wires HTTP endpoints to the evaluation service.
type EvaluationHandler struct {
	service *service.EvaluationService
}

// NewEvaluationHandler creates a new handler.
func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// Create godoc
// @Summary Record evaluation
// @Description Record a physical assessment for a student (admin only)
// @Tags Evaluations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateEvaluationRequest true "Evaluation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Create(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}

	evaluation, err := h.service.Create(c.Request.Context(), req, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, evaluation)
}

// List godoc
// @Summary List evaluations
// @Description List assessments. Students only see their own history.
// @Tags Evaluations
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student filter (admin only)"
// @Param date_from query string false "Start of date range (YYYY-MM-DD)"
// @Param date_to query string false "End of date range (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EvaluationFilter{StudentID: c.Query("student_id")}
	if raw := c.Query("date_from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_from must use YYYY-MM-DD"))
			return
		}
		filter.DateFrom = &parsed
	}
	if raw := c.Query("date_to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_to must use YYYY-MM-DD"))
			return
		}
		filter.DateTo = &parsed
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	evaluations, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluations, pagination)
}

// MyEvaluations godoc
// @Summary List own evaluations
// @Description List the current user's assessment history
// @Tags Evaluations
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /my/evaluations [get]
func (h *EvaluationHandler) MyEvaluations(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EvaluationFilter{StudentID: actor.ID}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	evaluations, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluations, pagination)
}

// Get godoc
// @Summary Get evaluation
// @Description Fetch a single assessment. Students only see their own.
// @Tags Evaluations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Evaluation id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	evaluation, err := h.service.GetByID(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Update godoc
// @Summary Update evaluation
// @Description Apply partial changes to an assessment (admin only)
// @Tags Evaluations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Evaluation id"
// @Param payload body models.UpdateEvaluationRequest true "Evaluation changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [put]
func (h *EvaluationHandler) Update(c *gin.Context) {
	var req models.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}

	evaluation, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, evaluation, nil)
}

// Delete godoc
// @Summary Delete evaluation
// @Description Remove an assessment (admin only)
// @Tags Evaluations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Evaluation id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
