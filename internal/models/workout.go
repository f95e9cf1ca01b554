package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WorkoutDifficulty enumerates supported plan difficulty levels.
type WorkoutDifficulty string

const (
	DifficultyBeginner     WorkoutDifficulty = "BEGINNER"
	DifficultyIntermediate WorkoutDifficulty = "INTERMEDIATE"
	DifficultyAdvanced     WorkoutDifficulty = "ADVANCED"
)

// Valid returns true when the difficulty is a supported value.
func (d WorkoutDifficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	default:
		return false
	}
}

// Exercise is a single prescribed movement inside a workout plan.
type Exercise struct {
	Name  string  `json:"name"`
	Sets  int     `json:"sets"`
	Reps  int     `json:"reps"`
	Rest  string  `json:"rest,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// ExerciseList stores ordered exercises persisted as JSONB.
type ExerciseList []Exercise

// Value marshals the exercise list to JSON for persistence.
func (l ExerciseList) Value() (driver.Value, error) {
	if l == nil {
		l = ExerciseList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal exercises: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the exercise list.
func (l *ExerciseList) Scan(value interface{}) error {
	if value == nil {
		*l = ExerciseList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExerciseList", value)
	}
	if len(data) == 0 {
		*l = ExerciseList{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// WorkoutPlan represents a training plan assigned to a student.
type WorkoutPlan struct {
	ID          string            `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Description *string           `db:"description" json:"description,omitempty"`
	Difficulty  WorkoutDifficulty `db:"difficulty" json:"difficulty"`
	CoachID     string            `db:"coach_id" json:"coach_id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	Exercises   ExerciseList      `db:"exercises" json:"exercises"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// CreateWorkoutRequest is the payload for assigning a plan to a student.
type CreateWorkoutRequest struct {
	Title       string            `json:"title" validate:"required"`
	Description *string           `json:"description"`
	Difficulty  WorkoutDifficulty `json:"difficulty" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	StudentID   string            `json:"student_id" validate:"required"`
	Exercises   ExerciseList      `json:"exercises" validate:"required,min=1,dive"`
}

// UpdateWorkoutRequest carries partial plan changes.
type UpdateWorkoutRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Difficulty  *WorkoutDifficulty `json:"difficulty" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
	Exercises   *ExerciseList      `json:"exercises" validate:"omitempty,min=1,dive"`
}

// WorkoutFilter defines query filters for listing workout plans.
type WorkoutFilter struct {
	StudentID  string
	CoachID    string
	Difficulty *WorkoutDifficulty
	Page       int
	PageSize   int
}
