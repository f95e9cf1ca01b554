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

type evaluationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

type evaluationUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EvaluationService records and reads physical assessments.
type EvaluationService struct {
	repo      evaluationRepository
	users     evaluationUserSource
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEvaluationService constructs an EvaluationService instance.
func NewEvaluationService(repo evaluationRepository, users evaluationUserSource, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EvaluationService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create records a new assessment for a student.
func (s *EvaluationService) Create(ctx context.Context, req models.CreateEvaluationRequest, actorID string) (*models.EvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evaluations can only be recorded for students")
	}

	evaluatedAt := time.Now().UTC()
	if req.EvaluatedAt != nil && *req.EvaluatedAt != "" {
		parsed, err := parseEventDate(*req.EvaluatedAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "evaluated_at must use RFC 3339 or YYYY-MM-DD")
		}
		evaluatedAt = parsed
	}

	measures := req.Measures
	if measures == nil {
		measures = models.Measurements{}
	}

	evaluation := &models.Evaluation{
		StudentID:   req.StudentID,
		EvaluatedAt: evaluatedAt,
		WeightKg:    req.WeightKg,
		HeightCm:    req.HeightCm,
		BodyFatPct:  req.BodyFatPct,
		Measures:    measures,
		Notes:       req.Notes,
		CreatedBy:   actorID,
	}
	if err := s.repo.Create(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create evaluation")
	}
	return &models.EvaluationResponse{Evaluation: *evaluation, BMI: evaluation.BMI()}, nil
}

// GetByID returns one assessment. Students can only read their own history.
func (s *EvaluationService) GetByID(ctx context.Context, id string, actor *models.User) (*models.EvaluationResponse, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch evaluation")
	}
	if actor.Role != models.RoleAdmin && evaluation.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "evaluation belongs to another student")
	}
	return &models.EvaluationResponse{Evaluation: *evaluation, BMI: evaluation.BMI()}, nil
}

// List returns assessments matching the filter. Students are always scoped
// to their own history.
func (s *EvaluationService) List(ctx context.Context, filter models.EvaluationFilter, actor *models.User) ([]models.EvaluationResponse, *models.Pagination, error) {
	if actor.Role != models.RoleAdmin {
		filter.StudentID = actor.ID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	evaluations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}

	responses := make([]models.EvaluationResponse, 0, len(evaluations))
	for i := range evaluations {
		responses = append(responses, models.EvaluationResponse{Evaluation: evaluations[i], BMI: evaluations[i].BMI()})
	}
	return responses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Update applies partial changes to an assessment.
func (s *EvaluationService) Update(ctx context.Context, id string, req models.UpdateEvaluationRequest) (*models.EvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}

	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch evaluation")
	}

	if req.EvaluatedAt != nil && *req.EvaluatedAt != "" {
		parsed, err := parseEventDate(*req.EvaluatedAt)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "evaluated_at must use RFC 3339 or YYYY-MM-DD")
		}
		evaluation.EvaluatedAt = parsed
	}
	if req.WeightKg != nil {
		evaluation.WeightKg = *req.WeightKg
	}
	if req.HeightCm != nil {
		evaluation.HeightCm = *req.HeightCm
	}
	if req.BodyFatPct != nil {
		evaluation.BodyFatPct = req.BodyFatPct
	}
	if req.Measures != nil {
		evaluation.Measures = *req.Measures
	}
	if req.Notes != nil {
		evaluation.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, evaluation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update evaluation")
	}
	return &models.EvaluationResponse{Evaluation: *evaluation, BMI: evaluation.BMI()}, nil
}

// Delete removes an assessment.
func (s *EvaluationService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch evaluation")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evaluation")
	}
	return nil
}
