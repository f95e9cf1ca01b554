package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type eventRepository interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Create(ctx context.Context, event *models.Event) error
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id string) error
}

type eventAttendanceSeeder interface {
	Seed(ctx context.Context, eventID string, userIDs []string) ([]string, error)
}

type eventRosterSource interface {
	ListIDsByRole(ctx context.Context, role models.UserRole) ([]string, error)
}

// EventService provides event scheduling use cases.
type EventService struct {
	repo       eventRepository
	attendance eventAttendanceSeeder
	roster     eventRosterSource
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewEventService constructs an EventService instance.
func NewEventService(repo eventRepository, attendance eventAttendanceSeeder, roster eventRosterSource, validate *validator.Validate, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EventService{repo: repo, attendance: attendance, roster: roster, validator: validate, logger: logger}
}

// Create schedules a new event and seeds an unconfirmed attendance record for
// each targeted student, or for every active student when the payload names
// no targets. Seeding is best effort: a failure there leaves the event in
// place and is only logged.
func (s *EventService) Create(ctx context.Context, req models.CreateEventRequest, actorID string) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	date, err := parseEventDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must use RFC 3339 or YYYY-MM-DD")
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Location:    req.Location,
		Capacity:    req.Capacity,
		CreatedBy:   actorID,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}

	s.seedAttendance(ctx, event.ID, req.TargetIDs)

	return event, nil
}

func (s *EventService) seedAttendance(ctx context.Context, eventID string, targetIDs []string) {
	studentIDs := targetIDs
	if len(studentIDs) == 0 {
		var err error
		studentIDs, err = s.roster.ListIDsByRole(ctx, models.RoleStudent)
		if err != nil {
			s.logger.Warn("failed to load student roster for attendance seed",
				zap.String("event_id", eventID), zap.Error(err))
			return
		}
	}
	if len(studentIDs) == 0 {
		return
	}

	skipped, err := s.attendance.Seed(ctx, eventID, studentIDs)
	if err != nil {
		s.logger.Warn("failed to seed attendance records",
			zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if len(skipped) > 0 {
		s.logger.Info("attendance seed skipped existing records",
			zap.String("event_id", eventID), zap.Int("skipped", len(skipped)))
	}
}

// GetByID returns a single event.
func (s *EventService) GetByID(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch event")
	}
	return event, nil
}

// List returns events matching the filter together with pagination metadata.
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]models.Event, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}

	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Update applies partial changes to an event.
func (s *EventService) Update(ctx context.Context, id string, req models.UpdateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	event, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = req.Description
	}
	if req.Date != nil {
		date, err := parseEventDate(*req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must use RFC 3339 or YYYY-MM-DD")
		}
		event.Date = date
	}
	if req.Location != nil {
		event.Location = req.Location
	}
	if req.Capacity != nil {
		event.Capacity = req.Capacity
	}

	if err := s.repo.Update(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update event")
	}
	return event, nil
}

// Delete removes an event together with its attendance records.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}

func parseEventDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
