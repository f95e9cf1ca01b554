package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type workoutRepository interface {
	FindByID(ctx context.Context, id string) (*models.WorkoutPlan, error)
	List(ctx context.Context, filter models.WorkoutFilter) ([]models.WorkoutPlan, int, error)
	Create(ctx context.Context, plan *models.WorkoutPlan) error
	Update(ctx context.Context, plan *models.WorkoutPlan) error
	Delete(ctx context.Context, id string) error
}

type workoutUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// WorkoutService manages training plans assigned to students.
type WorkoutService struct {
	repo      workoutRepository
	users     workoutUserSource
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkoutService constructs a WorkoutService instance.
func NewWorkoutService(repo workoutRepository, users workoutUserSource, validate *validator.Validate, logger *zap.Logger) *WorkoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkoutService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create assigns a new plan to a student.
func (s *WorkoutService) Create(ctx context.Context, req models.CreateWorkoutRequest, actorID string) (*models.WorkoutPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workout payload")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plans can only be assigned to students")
	}

	plan := &models.WorkoutPlan{
		Title:       req.Title,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		CoachID:     actorID,
		StudentID:   req.StudentID,
		Exercises:   req.Exercises,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workout plan")
	}
	return plan, nil
}

// GetByID returns a plan. Students can only read plans assigned to them.
func (s *WorkoutService) GetByID(ctx context.Context, id string, actor *models.User) (*models.WorkoutPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workout plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch workout plan")
	}
	if actor.Role != models.RoleAdmin && plan.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "plan belongs to another student")
	}
	return plan, nil
}

// List returns plans matching the filter. Students are always scoped to
// their own plans regardless of the requested filter.
func (s *WorkoutService) List(ctx context.Context, filter models.WorkoutFilter, actor *models.User) ([]models.WorkoutPlan, *models.Pagination, error) {
	if actor.Role != models.RoleAdmin {
		filter.StudentID = actor.ID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	if filter.Difficulty != nil && !filter.Difficulty.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported difficulty filter")
	}

	plans, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workout plans")
	}
	return plans, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Update applies partial changes to a plan.
func (s *WorkoutService) Update(ctx context.Context, id string, req models.UpdateWorkoutRequest) (*models.WorkoutPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workout payload")
	}

	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workout plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch workout plan")
	}

	if req.Title != nil {
		if *req.Title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title cannot be empty")
		}
		plan.Title = *req.Title
	}
	if req.Description != nil {
		plan.Description = req.Description
	}
	if req.Difficulty != nil {
		plan.Difficulty = *req.Difficulty
	}
	if req.Exercises != nil {
		plan.Exercises = *req.Exercises
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workout plan")
	}
	return plan, nil
}

// Delete removes a plan.
func (s *WorkoutService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workout plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch workout plan")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete workout plan")
	}
	return nil
}
