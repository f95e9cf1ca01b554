package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Measurements stores circumference and skinfold readings persisted as JSONB.
type Measurements map[string]float64

// Value marshals measurements to JSON for persistence.
func (m Measurements) Value() (driver.Value, error) {
	if m == nil {
		m = Measurements{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal measurements: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the measurements map.
func (m *Measurements) Scan(value interface{}) error {
	if value == nil {
		*m = Measurements{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Measurements", value)
	}
	if len(data) == 0 {
		*m = Measurements{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Evaluation represents a physical assessment of a student.
type Evaluation struct {
	ID          string       `db:"id" json:"id"`
	StudentID   string       `db:"student_id" json:"student_id"`
	EvaluatedAt time.Time    `db:"evaluated_at" json:"evaluated_at"`
	WeightKg    float64      `db:"weight_kg" json:"weight_kg"`
	HeightCm    float64      `db:"height_cm" json:"height_cm"`
	BodyFatPct  *float64     `db:"body_fat_pct" json:"body_fat_pct,omitempty"`
	Measures    Measurements `db:"measures" json:"measures"`
	Notes       *string      `db:"notes" json:"notes,omitempty"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// BMI derives the body mass index from stored weight and height.
func (e *Evaluation) BMI() float64 {
	if e.HeightCm <= 0 {
		return 0
	}
	meters := e.HeightCm / 100
	return e.WeightKg / (meters * meters)
}

// CreateEvaluationRequest is the coach payload for recording an assessment.
type CreateEvaluationRequest struct {
	StudentID   string       `json:"student_id" validate:"required"`
	EvaluatedAt *string      `json:"evaluated_at"`
	WeightKg    float64      `json:"weight_kg" validate:"required,gt=0"`
	HeightCm    float64      `json:"height_cm" validate:"required,gt=0"`
	BodyFatPct  *float64     `json:"body_fat_pct" validate:"omitempty,gte=0,lte=100"`
	Measures    Measurements `json:"measures"`
	Notes       *string      `json:"notes"`
}

// UpdateEvaluationRequest carries partial assessment changes.
type UpdateEvaluationRequest struct {
	EvaluatedAt *string       `json:"evaluated_at"`
	WeightKg    *float64      `json:"weight_kg" validate:"omitempty,gt=0"`
	HeightCm    *float64      `json:"height_cm" validate:"omitempty,gt=0"`
	BodyFatPct  *float64      `json:"body_fat_pct" validate:"omitempty,gte=0,lte=100"`
	Measures    *Measurements `json:"measures"`
	Notes       *string       `json:"notes"`
}

// EvaluationResponse adds derived values to the stored record.
type EvaluationResponse struct {
	Evaluation
	BMI float64 `json:"bmi"`
}

// EvaluationFilter defines query filters for listing evaluations.
type EvaluationFilter struct {
	StudentID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
