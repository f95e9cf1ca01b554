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

// EventHandler wires HTTP endpoints to the event and attendance services.
type EventHandler struct {
	events     *service.EventService
	attendance *service.AttendanceService
}

// NewEventHandler creates a new handler.
func NewEventHandler(events *service.EventService, attendance *service.AttendanceService) *EventHandler {
	return &EventHandler{events: events, attendance: attendance}
}

// Create godoc
// @Summary Create event
// @Description Schedule a new event and seed attendance for active students (admin only)
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.events.Create(c.Request.Context(), req, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, event)
}

// List godoc
// @Summary List events
// @Description List events with filtering and pagination
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param date_from query string false "Start of date range (YYYY-MM-DD)"
// @Param date_to query string false "End of date range (YYYY-MM-DD)"
// @Param search query string false "Title search"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	filter := models.EventFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
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

	events, pagination, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get event
// @Description Fetch a single event by id
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, event, nil)
}

// Update godoc
// @Summary Update event
// @Description Apply partial changes to an event (admin only)
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Param payload body models.UpdateEventRequest true "Event changes"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}

	event, err := h.events.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, event, nil)
}

// Delete godoc
// @Summary Delete event
// @Description Remove an event and its attendance records (admin only)
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	if err := h.events.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SetAttendance godoc
// @Summary Record attendance
// @Description Upsert the RSVP confirmation for an event. Admins may target another user via user_id.
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Param payload body models.AttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/attendance [put]
func (h *EventHandler) SetAttendance(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	record, err := h.attendance.SetAttendance(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Attend godoc
// @Summary Confirm own attendance
// @Description Shorthand confirmation for the current user. Equivalent to recording attendance with confirmed=true.
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/attend [post]
func (h *EventHandler) Attend(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.attendance.SetAttendance(c.Request.Context(), c.Param("id"), models.AttendanceRequest{Confirmed: true}, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// ListAttendance godoc
// @Summary List event attendance
// @Description List attendance records for an event with user details (admin only)
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/attendance [get]
func (h *EventHandler) ListAttendance(c *gin.Context) {
	records, err := h.attendance.ListByEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// AttendanceSummary godoc
// @Summary Attendance summary
// @Description Aggregate confirmation counts for an event (admin only)
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id}/attendance/summary [get]
func (h *EventHandler) AttendanceSummary(c *gin.Context) {
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// MyAttendance godoc
// @Summary List own attendance
// @Description List the current user's attendance across events
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /my/attendance [get]
func (h *EventHandler) MyAttendance(c *gin.Context) {
	actor := userFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	records, err := h.attendance.ListByUser(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}
