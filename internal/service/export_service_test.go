package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/pkg/export"
	"github.com/coachdesk/coachdesk-api/pkg/storage"
)

type mockEvaluationSource struct {
	evaluations []models.Evaluation
	filter      models.EvaluationFilter
}

func (m *mockEvaluationSource) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error) {
	m.filter = filter
	return m.evaluations, len(m.evaluations), nil
}

type mockAttendanceSource struct {
	records []models.AttendanceDetail
}

func (m *mockAttendanceSource) ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error) {
	return m.records, nil
}

type mockFileStorage struct {
	saved map[string][]byte
}

func (m *mockFileStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (m *mockFileStorage) Delete(filename string) error {
	delete(m.saved, filename)
	return nil
}

func (m *mockFileStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newTestExportService(evaluations *mockEvaluationSource, attendance *mockAttendanceSource, files *mockFileStorage) *ExportService {
	users := &mockUserSource{users: map[string]*models.User{
		"student-1": {ID: "student-1", FullName: "Ana Souza", Email: "ana@example.com", Role: models.RoleStudent},
	}}
	events := &mockEventSource{events: map[string]*models.Event{
		"event-1": {ID: "event-1", Title: "Morning Run"},
	}}
	return NewExportService(ExportServiceParams{
		Evaluations: evaluations,
		Attendance:  attendance,
		Users:       users,
		Events:      events,
		Storage:     files,
		Signer:      storage.NewSignedURLSigner("export-secret", time.Hour),
		Logger:      zap.NewNop(),
		Config:      ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
	})
}

func TestExportGenerateEvaluationCSV(t *testing.T) {
	notes := "steady progress"
	bodyFat := 17.5
	evaluations := &mockEvaluationSource{evaluations: []models.Evaluation{{
		ID:          "eval-1",
		StudentID:   "student-1",
		EvaluatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		WeightKg:    80,
		HeightCm:    180,
		BodyFatPct:  &bodyFat,
		Notes:       &notes,
	}}}
	files := &mockFileStorage{}
	svc := newTestExportService(evaluations, &mockAttendanceSource{}, files)

	studentID := "student-1"
	result, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeEvaluations,
		Params: models.ReportJobParams{StudentID: &studentID, Format: models.ReportFormatCSV},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.ReportFormatCSV, result.Format)
	assert.Equal(t, "student-1", evaluations.filter.StudentID)

	require.Len(t, files.saved, 1)
	for name, payload := range files.saved {
		assert.True(t, strings.HasPrefix(name, "evaluations_"))
		assert.True(t, strings.HasSuffix(name, ".csv"))
		body := string(payload)
		assert.Contains(t, body, "Date,Weight (kg),Height (cm),BMI,Body Fat (%),Notes")
		assert.Contains(t, body, "2026-08-01")
		assert.Contains(t, body, "steady progress")
	}

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateAttendancePDF(t *testing.T) {
	attendance := &mockAttendanceSource{records: []models.AttendanceDetail{{
		Attendance: models.Attendance{EventID: "event-1", UserID: "student-1", Confirmed: true},
		UserName:   "Ana Souza",
		UserEmail:  "ana@example.com",
	}}}
	files := &mockFileStorage{}
	svc := newTestExportService(&mockEvaluationSource{}, attendance, files)

	eventID := "event-1"
	result, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeAttendance,
		Params: models.ReportJobParams{EventID: &eventID, Format: models.ReportFormatPDF},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)

	require.Len(t, files.saved, 1)
	for name, payload := range files.saved {
		assert.True(t, strings.HasSuffix(name, ".pdf"))
		assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
	}
}

func TestExportGenerateMissingParams(t *testing.T) {
	svc := newTestExportService(&mockEvaluationSource{}, &mockAttendanceSource{}, &mockFileStorage{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeEvaluations,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypeAttendance,
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	})
	require.Error(t, err)
}

func TestExportCSVRendersStableColumns(t *testing.T) {
	exporter := export.NewCSVExporter()
	payload, err := exporter.Render(export.Dataset{
		Headers: []string{"Name", "Email"},
		Rows: []map[string]string{
			{"Name": "Ana", "Email": "ana@example.com"},
			{"Name": "Bruno", "Email": "bruno@example.com"},
		},
	})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Name,Email", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Ana")
}
