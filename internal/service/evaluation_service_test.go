package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/models"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type mockEvaluationRepo struct {
	evaluations map[string]*models.Evaluation
	created     *models.Evaluation
	listFilter  models.EvaluationFilter
	listItems   []models.Evaluation
	listCount   int
	deleted     []string
}

func (m *mockEvaluationRepo) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	if evaluation, ok := m.evaluations[id]; ok {
		copy := *evaluation
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEvaluationRepo) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error) {
	m.listFilter = filter
	return m.listItems, m.listCount, nil
}

func (m *mockEvaluationRepo) Create(ctx context.Context, evaluation *models.Evaluation) error {
	evaluation.ID = "eval-new"
	m.created = evaluation
	return nil
}

func (m *mockEvaluationRepo) Update(ctx context.Context, evaluation *models.Evaluation) error {
	copy := *evaluation
	m.evaluations[evaluation.ID] = &copy
	return nil
}

func (m *mockEvaluationRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func newTestEvaluationService(repo *mockEvaluationRepo, users *mockUserSource) *EvaluationService {
	if users == nil {
		users = &mockUserSource{users: map[string]*models.User{
			"student-1": {ID: "student-1", Role: models.RoleStudent, Active: true},
		}}
	}
	return NewEvaluationService(repo, users, validator.New(), zap.NewNop())
}

func TestEvaluationCreateComputesBMI(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newTestEvaluationService(repo, nil)

	resp, err := svc.Create(context.Background(), models.CreateEvaluationRequest{
		StudentID: "student-1",
		WeightKg:  80,
		HeightCm:  180,
	}, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, "eval-new", resp.ID)
	assert.InDelta(t, 24.69, resp.BMI, 0.01)
	assert.Equal(t, "coach-1", resp.CreatedBy)
	assert.NotNil(t, resp.Measures)
}

func TestEvaluationCreateParsesDate(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newTestEvaluationService(repo, nil)

	when := "2026-08-01"
	resp, err := svc.Create(context.Background(), models.CreateEvaluationRequest{
		StudentID:   "student-1",
		EvaluatedAt: &when,
		WeightKg:    80,
		HeightCm:    180,
	}, "coach-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), resp.EvaluatedAt)
}

func TestEvaluationCreateRejectsNonStudent(t *testing.T) {
	users := &mockUserSource{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", Role: models.RoleAdmin},
	}}
	svc := newTestEvaluationService(&mockEvaluationRepo{}, users)

	_, err := svc.Create(context.Background(), models.CreateEvaluationRequest{
		StudentID: "admin-1",
		WeightKg:  80,
		HeightCm:  180,
	}, "coach-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEvaluationCreateRejectsZeroWeight(t *testing.T) {
	svc := newTestEvaluationService(&mockEvaluationRepo{}, nil)

	_, err := svc.Create(context.Background(), models.CreateEvaluationRequest{
		StudentID: "student-1",
		WeightKg:  0,
		HeightCm:  180,
	}, "coach-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEvaluationGetScopedToOwner(t *testing.T) {
	repo := &mockEvaluationRepo{evaluations: map[string]*models.Evaluation{
		"eval-1": {ID: "eval-1", StudentID: "student-1", WeightKg: 80, HeightCm: 180},
	}}
	svc := newTestEvaluationService(repo, nil)

	resp, err := svc.GetByID(context.Background(), "eval-1", &models.User{ID: "student-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.InDelta(t, 24.69, resp.BMI, 0.01)

	_, err = svc.GetByID(context.Background(), "eval-1", &models.User{ID: "student-2", Role: models.RoleStudent})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEvaluationListForcesStudentScope(t *testing.T) {
	repo := &mockEvaluationRepo{}
	svc := newTestEvaluationService(repo, nil)

	_, _, err := svc.List(context.Background(), models.EvaluationFilter{StudentID: "student-2"}, &models.User{ID: "student-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "student-1", repo.listFilter.StudentID)
}

func TestEvaluationUpdatePartial(t *testing.T) {
	repo := &mockEvaluationRepo{evaluations: map[string]*models.Evaluation{
		"eval-1": {ID: "eval-1", StudentID: "student-1", WeightKg: 80, HeightCm: 180},
	}}
	svc := newTestEvaluationService(repo, nil)

	weight := 78.5
	resp, err := svc.Update(context.Background(), "eval-1", models.UpdateEvaluationRequest{WeightKg: &weight})
	require.NoError(t, err)
	assert.Equal(t, 78.5, resp.WeightKg)
	assert.Equal(t, 180.0, resp.HeightCm)
}

func TestEvaluationDelete(t *testing.T) {
	repo := &mockEvaluationRepo{evaluations: map[string]*models.Evaluation{
		"eval-1": {ID: "eval-1", StudentID: "student-1"},
	}}
	svc := newTestEvaluationService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "eval-1"))
	assert.Equal(t, []string{"eval-1"}, repo.deleted)
}
