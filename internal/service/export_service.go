package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	"github.com/coachdesk/coachdesk-api/pkg/export"
	"github.com/coachdesk/coachdesk-api/pkg/storage"
)

type exportEvaluationSource interface {
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error)
}

type exportAttendanceSource interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error)
}

type exportUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type exportEventSource interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	evaluations exportEvaluationSource
	attendance  exportAttendanceSource
	users       exportUserSource
	events      exportEventSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Evaluations exportEvaluationSource
	Attendance  exportAttendanceSource
	Users       exportUserSource
	Events      exportEventSource
	Storage     fileStorage
	Signer      *storage.SignedURLSigner
	Logger      *zap.Logger
	Config      ExportConfig
	CSV         csvRenderer
	PDF         pdfRenderer
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	csv := params.CSV
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		evaluations: params.Evaluations,
		attendance:  params.Attendance,
		users:       params.Users,
		events:      params.Events,
		storage:     params.Storage,
		csv:         csv,
		pdf:         pdf,
		signer:      params.Signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), shortID(job.ID), timestamp, job.Params.Format)
}

func shortID(id string) string {
	cleaned := strings.ReplaceAll(id, "-", "")
	if len(cleaned) > 8 {
		return cleaned[:8]
	}
	if cleaned == "" {
		return "na"
	}
	return cleaned
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeEvaluations:
		return s.buildEvaluationDataset(ctx, job.Params)
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildEvaluationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.StudentID == nil || *params.StudentID == "" {
		return export.Dataset{}, "", fmt.Errorf("studentId missing from job params")
	}
	student, err := s.users.FindByID(ctx, *params.StudentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load student: %w", err)
	}

	evaluations, _, err := s.evaluations.List(ctx, models.EvaluationFilter{
		StudentID: student.ID,
		Page:      1,
		PageSize:  1000,
	})
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(evaluations))
	for i := range evaluations {
		ev := &evaluations[i]
		bodyFat := ""
		if ev.BodyFatPct != nil {
			bodyFat = fmt.Sprintf("%.1f", *ev.BodyFatPct)
		}
		notes := ""
		if ev.Notes != nil {
			notes = *ev.Notes
		}
		rows = append(rows, map[string]string{
			"Date":         ev.EvaluatedAt.Format("2006-01-02"),
			"Weight (kg)":  fmt.Sprintf("%.1f", ev.WeightKg),
			"Height (cm)":  fmt.Sprintf("%.1f", ev.HeightCm),
			"BMI":          fmt.Sprintf("%.2f", ev.BMI()),
			"Body Fat (%)": bodyFat,
			"Notes":        notes,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Date", "Weight (kg)", "Height (cm)", "BMI", "Body Fat (%)", "Notes"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Evaluation History %s", student.FullName)
	return dataset, title, nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if params.EventID == nil || *params.EventID == "" {
		return export.Dataset{}, "", fmt.Errorf("eventId missing from job params")
	}
	event, err := s.events.FindByID(ctx, *params.EventID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load event: %w", err)
	}

	records, err := s.attendance.ListByEvent(ctx, event.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		confirmed := "NO"
		if record.Confirmed {
			confirmed = "YES"
		}
		rows = append(rows, map[string]string{
			"Name":       record.UserName,
			"Email":      record.UserEmail,
			"Confirmed":  confirmed,
			"Updated At": record.UpdatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Name", "Email", "Confirmed", "Updated At"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Attendance %s", event.Title)
	return dataset, title, nil
}
