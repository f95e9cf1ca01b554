package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/dto"
	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/internal/repository"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
	"github.com/coachdesk/coachdesk-api/pkg/jobs"
)

type mockReportStore struct {
	jobsByID  map[string]*models.ReportJob
	createErr error
	updates   []repository.UpdateReportJobParams
	queued    []models.ReportJob
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if m.createErr != nil {
		return m.createErr
	}
	job.ID = "job-new"
	if m.jobsByID == nil {
		m.jobsByID = make(map[string]*models.ReportJob)
	}
	copy := *job
	m.jobsByID[job.ID] = &copy
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobsByID[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.jobsByID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	return m.queued, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
	calls  int
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func strPtr(s string) *string {
	return &s
}

func TestReportCreateJobEnqueues(t *testing.T) {
	store := &mockReportStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeEvaluations,
		StudentID: strPtr("student-1"),
		Format:    models.ReportFormatCSV,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "job-new", resp.ID)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Equal(t, 0, resp.Progress)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-new", queue.enqueued[0].ID)
}

func TestReportCreateJobValidation(t *testing.T) {
	svc := NewReportService(&mockReportStore{}, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	cases := []struct {
		name string
		req  dto.ReportRequest
	}{
		{"evaluations without student", dto.ReportRequest{Type: models.ReportTypeEvaluations, Format: models.ReportFormatCSV}},
		{"attendance without event", dto.ReportRequest{Type: models.ReportTypeAttendance, Format: models.ReportFormatPDF}},
		{"unknown type", dto.ReportRequest{Type: "summary", Format: models.ReportFormatCSV}},
		{"unknown format", dto.ReportRequest{Type: models.ReportTypeEvaluations, StudentID: strPtr("s1"), Format: "xlsx"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req, "admin-1")
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
}

func TestReportCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := &mockReportStore{}
	queue := &mockDispatcher{err: errors.New("queue closed")}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypeAttendance,
		EventID: strPtr("event-1"),
		Format:  models.ReportFormatPDF,
	}, "admin-1")
	require.Error(t, err)
	require.Contains(t, store.jobsByID, "job-new")
	assert.Equal(t, models.ReportStatusFailed, store.jobsByID["job-new"].Status)
}

func TestReportGetStatusOwnership(t *testing.T) {
	store := &mockReportStore{jobsByID: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Status: models.ReportStatusProcessing, Progress: 10, CreatedBy: "student-1"},
	}}
	svc := NewReportService(store, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	resp, err := svc.GetStatus(context.Background(), "job-1", &models.User{ID: "student-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", &models.User{ID: "student-2", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	_, err = svc.GetStatus(context.Background(), "job-1", &models.User{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
}

func TestReportGetStatusNotFound(t *testing.T) {
	svc := NewReportService(&mockReportStore{}, &mockDispatcher{}, nil, zap.NewNop(), ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), "missing", &models.User{ID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReportRecoverPendingJobs(t *testing.T) {
	store := &mockReportStore{queued: []models.ReportJob{
		{ID: "job-1", Type: models.ReportTypeEvaluations},
		{ID: "job-2", Type: models.ReportTypeAttendance},
	}}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, zap.NewNop(), ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.enqueued, 2)
}

func TestReportWorkerSuccess(t *testing.T) {
	store := &mockReportStore{jobsByID: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeEvaluations, Status: models.ReportStatusQueued},
	}}
	generator := &mockGenerator{result: &ExportResult{URL: "/api/v1/reports/download/tok123", Format: models.ReportFormatCSV}}
	worker := NewReportWorker(store, generator, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.NoError(t, err)
	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok123", *job.ResultURL)
	require.NotNil(t, job.FinishedAt)
}

func TestReportWorkerRequeuesOnFailure(t *testing.T) {
	store := &mockReportStore{jobsByID: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeEvaluations, Status: models.ReportStatusQueued},
	}}
	generator := &mockGenerator{err: errors.New("render failed")}
	worker := NewReportWorker(store, generator, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, 0, job.Progress)
	require.NotNil(t, job.ErrorMessage)
	assert.Nil(t, job.FinishedAt)
}

func TestReportWorkerFailsAfterMaxRetries(t *testing.T) {
	store := &mockReportStore{jobsByID: map[string]*models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeEvaluations, Status: models.ReportStatusQueued},
	}}
	generator := &mockGenerator{err: errors.New("render failed")}
	worker := NewReportWorker(store, generator, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)
	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.FinishedAt)
}
