package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/internal/service"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
	"github.com/coachdesk/coachdesk-api/pkg/response"
)

// WorkoutHandler wires HTTP endpoints to the workout service.
type WorkoutHandler struct {
	service *service.WorkoutService
}

// NewWorkoutHandler creates a new handler.
func NewWorkoutHandler(svc *service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{service: svc}
}

// Create godoc
// @Summary Create workout plan
// @Description Assign a training plan to a student (admin only)
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateWorkoutRequest true "Workout payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /workouts [post]
func (h *WorkoutHandler) Create(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workout payload"))
		return
	}

	plan, err := h.service.Create(c.Request.Context(), req, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, plan)
}

// List godoc
// @Summary List workout plans
// @Description List plans. Students only see plans assigned to them.
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student filter (admin only)"
// @Param difficulty query string false "Difficulty filter"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /workouts [get]
func (h *WorkoutHandler) List(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.WorkoutFilter{
		StudentID: c.Query("student_id"),
		CoachID:   c.Query("coach_id"),
	}
	if raw := c.Query("difficulty"); raw != "" {
		d := models.WorkoutDifficulty(raw)
		filter.Difficulty = &d
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	plans, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, plans, pagination)
}

// MyWorkouts godoc
// @Summary List own workout plans
// @Description List the plans assigned to the current user
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /my/workouts [get]
func (h *WorkoutHandler) MyWorkouts(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.WorkoutFilter{StudentID: actor.ID}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	plans, pagination, err := h.service.List(c.Request.Context(), filter, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get workout plan
// @Description Fetch a single plan. Students only see their own.
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workouts/{id} [get]
func (h *WorkoutHandler) Get(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	plan, err := h.service.GetByID(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, plan, nil)
}

// Update godoc
// @Summary Update workout plan
// @Description Apply partial changes to a plan (admin only)
// @Tags Workouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan id"
// @Param payload body models.UpdateWorkoutRequest true "Plan changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workouts/{id} [put]
func (h *WorkoutHandler) Update(c *gin.Context) {
	var req models.UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workout payload"))
		return
	}

	plan, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, plan, nil)
}

// Delete godoc
// @Summary Delete workout plan
// @Description Remove a plan (admin only)
// @Tags Workouts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Plan id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workouts/{id} [delete]
func (h *WorkoutHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
