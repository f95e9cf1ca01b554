package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coachdesk/coachdesk-api/internal/models"
)

// WorkoutRepository handles persistence for workout plans.
type WorkoutRepository struct {
	db *sqlx.DB
}

// NewWorkoutRepository constructs the repository.
func NewWorkoutRepository(db *sqlx.DB) *WorkoutRepository {
	return &WorkoutRepository{db: db}
}

const workoutColumns = `id, title, description, difficulty, coach_id, student_id, exercises, created_at, updated_at`

// FindByID returns a workout plan by identifier.
func (r *WorkoutRepository) FindByID(ctx context.Context, id string) (*models.WorkoutPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM workout_plans WHERE id = $1 LIMIT 1`, workoutColumns)
	var plan models.WorkoutPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find workout plan by id: %w", err)
	}
	return &plan, nil
}

// List returns workout plans based on filters with total count.
func (r *WorkoutRepository) List(ctx context.Context, filter models.WorkoutFilter) ([]models.WorkoutPlan, int, error) {
	baseQuery := `FROM workout_plans WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CoachID != "" {
		conditions = append(conditions, fmt.Sprintf("coach_id = $%d", len(args)+1))
		args = append(args, filter.CoachID)
	}
	if filter.Difficulty != nil && filter.Difficulty.Valid() {
		conditions = append(conditions, fmt.Sprintf("difficulty = $%d", len(args)+1))
		args = append(args, *filter.Difficulty)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", workoutColumns, baseQuery, pageSize, offset)

	var plans []models.WorkoutPlan
	if err := r.db.SelectContext(ctx, &plans, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list workout plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count workout plans: %w", err)
	}

	return plans, total, nil
}

// Create inserts a new workout plan.
func (r *WorkoutRepository) Create(ctx context.Context, plan *models.WorkoutPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO workout_plans (id, title, description, difficulty, coach_id, student_id, exercises, created_at, updated_at) VALUES (:id, :title, :description, :difficulty, :coach_id, :student_id, :exercises, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create workout plan: %w", err)
	}
	return nil
}

// Update updates mutable fields of a workout plan.
func (r *WorkoutRepository) Update(ctx context.Context, plan *models.WorkoutPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE workout_plans SET title = :title, description = :description, difficulty = :difficulty, student_id = :student_id, exercises = :exercises, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("update workout plan: %w", err)
	}
	return nil
}

// Delete removes a workout plan.
func (r *WorkoutRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM workout_plans WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete workout plan: %w", err)
	}
	return nil
}
