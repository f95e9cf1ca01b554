package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records    map[string]*models.Attendance
	upsertErr  error
	details    []models.AttendanceDetail
	userAgenda []models.UserAttendanceDetail
	summary    *models.AttendanceSummary
}

func attendanceKey(eventID, userID string) string {
	return eventID + "/" + userID
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	if m.records == nil {
		m.records = make(map[string]*models.Attendance)
	}
	key := attendanceKey(record.EventID, record.UserID)
	existing, ok := m.records[key]
	if !ok {
		stored := *record
		stored.ID = "att-" + key
		stored.CreatedAt = time.Now().UTC()
		stored.UpdatedAt = stored.CreatedAt
		m.records[key] = &stored
	} else {
		existing.Confirmed = record.Confirmed
		existing.UpdatedAt = time.Now().UTC()
	}
	copy := *m.records[key]
	return &copy, nil
}

func (m *mockAttendanceRepo) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	if record, ok := m.records[attendanceKey(eventID, userID)]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttendanceRepo) ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error) {
	return m.details, nil
}

func (m *mockAttendanceRepo) ListByUser(ctx context.Context, userID string) ([]models.UserAttendanceDetail, error) {
	return m.userAgenda, nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, eventID string) (*models.AttendanceSummary, error) {
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.AttendanceSummary{EventID: eventID}, nil
}

type mockEventSource struct {
	events map[string]*models.Event
}

func (m *mockEventSource) FindByID(ctx context.Context, id string) (*models.Event, error) {
	if event, ok := m.events[id]; ok {
		copy := *event
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type mockUserSource struct {
	users map[string]*models.User
}

func (m *mockUserSource) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func newTestAttendanceService(repo *mockAttendanceRepo, events *mockEventSource, users *mockUserSource) *AttendanceService {
	if events == nil {
		events = &mockEventSource{events: map[string]*models.Event{"event-1": {ID: "event-1", Title: "Morning Run"}}}
	}
	if users == nil {
		users = &mockUserSource{users: map[string]*models.User{}}
	}
	return NewAttendanceService(repo, events, users, zap.NewNop())
}

func TestAttendanceSetOwnRecord(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "student-1", Role: models.RoleStudent}

	record, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true}, actor)
	require.NoError(t, err)
	assert.Equal(t, "student-1", record.UserID)
	assert.True(t, record.Confirmed)
}

func TestAttendanceSetIsIdempotent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "student-1", Role: models.RoleStudent}

	first, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true}, actor)
	require.NoError(t, err)
	second, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true}, actor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceSetFlipsConfirmation(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "student-1", Role: models.RoleStudent}

	_, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true}, actor)
	require.NoError(t, err)
	record, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: false}, actor)
	require.NoError(t, err)
	assert.False(t, record.Confirmed)
	assert.Len(t, repo.records, 1)
}

func TestAttendanceStudentCannotTargetOther(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "student-1", Role: models.RoleStudent}
	other := "student-2"

	_, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true, UserID: &other}, actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.records)
}

func TestAttendanceAdminTargetsOtherUser(t *testing.T) {
	repo := &mockAttendanceRepo{}
	users := &mockUserSource{users: map[string]*models.User{"student-2": {ID: "student-2", Role: models.RoleStudent, Active: true}}}
	svc := newTestAttendanceService(repo, nil, users)
	actor := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	target := "student-2"

	record, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true, UserID: &target}, actor)
	require.NoError(t, err)
	assert.Equal(t, "student-2", record.UserID)
}

func TestAttendanceAdminTargetsUnknownUser(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	target := "ghost"

	_, err := svc.SetAttendance(context.Background(), "event-1", models.AttendanceRequest{Confirmed: true, UserID: &target}, actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceSetUnknownEvent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)
	actor := &models.User{ID: "student-1", Role: models.RoleStudent}

	_, err := svc.SetAttendance(context.Background(), "missing-event", models.AttendanceRequest{Confirmed: true}, actor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceListByEventUnknownEvent(t *testing.T) {
	repo := &mockAttendanceRepo{}
	svc := newTestAttendanceService(repo, nil, nil)

	_, err := svc.ListByEvent(context.Background(), "missing-event")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceSummary(t *testing.T) {
	repo := &mockAttendanceRepo{summary: &models.AttendanceSummary{EventID: "event-1", Total: 10, Confirmed: 7, Unconfirmed: 3}}
	svc := newTestAttendanceService(repo, nil, nil)

	summary, err := svc.Summary(context.Background(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 7, summary.Confirmed)
}
