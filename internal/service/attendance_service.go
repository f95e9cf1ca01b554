package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Attendance, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserAttendanceDetail, error)
	Summary(ctx context.Context, eventID string) (*models.AttendanceSummary, error)
}

type attendanceEventSource interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type attendanceUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AttendanceService records and reads RSVP confirmations. Every write path
// funnels through SetAttendance so repeated calls with the same arguments
// converge on one row per (event, user) pair.
type AttendanceService struct {
	repo   attendanceRepository
	events attendanceEventSource
	users  attendanceUserSource
	logger *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, events attendanceEventSource, users attendanceUserSource, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, events: events, users: users, logger: logger}
}

// SetAttendance upserts the confirmation for the target user on the event.
// Students may only write their own record; admins may write anyone's.
func (s *AttendanceService) SetAttendance(ctx context.Context, eventID string, req models.AttendanceRequest, actor *models.User) (*models.Attendance, error) {
	targetID := actor.ID
	if req.UserID != nil && *req.UserID != "" && *req.UserID != actor.ID {
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot record attendance for another user")
		}
		targetID = *req.UserID
	}

	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch event")
	}

	if targetID != actor.ID {
		if _, err := s.users.FindByID(ctx, targetID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
		}
	}

	stored, err := s.repo.Upsert(ctx, &models.Attendance{
		EventID:   eventID,
		UserID:    targetID,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return stored, nil
}

// GetForEventAndUser returns the record for one (event, user) pair.
func (s *AttendanceService) GetForEventAndUser(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	record, err := s.repo.FindByEventAndUser(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance")
	}
	return record, nil
}

// ListByEvent returns all records for an event with user details.
func (s *AttendanceService) ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error) {
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch event")
	}

	records, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// ListByUser returns the user's records across events, newest event first.
func (s *AttendanceService) ListByUser(ctx context.Context, userID string) ([]models.UserAttendanceDetail, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Summary aggregates confirmation counts for an event.
func (s *AttendanceService) Summary(ctx context.Context, eventID string) (*models.AttendanceSummary, error) {
	if _, err := s.events.FindByID(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch event")
	}

	summary, err := s.repo.Summary(ctx, eventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}
