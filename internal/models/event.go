package models

import "time"

// Event represents a scheduled coaching activity.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	Date        time.Time `db:"date" json:"date"`
	Location    *string   `db:"location" json:"location,omitempty"`
	Capacity    *int      `db:"capacity" json:"capacity,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CreateEventRequest is the admin payload for scheduling an event.
type CreateEventRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	Date        string  `json:"date" validate:"required"`
	Location    *string `json:"location"`
	Capacity    *int    `json:"capacity" validate:"omitempty,min=1"`
	// TargetIDs limits attendance seeding to the listed students. Empty
	// means every active student.
	TargetIDs []string `json:"target_ids" validate:"omitempty,dive,required"`
}

// UpdateEventRequest carries partial event changes.
type UpdateEventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Location    *string `json:"location"`
	Capacity    *int    `json:"capacity" validate:"omitempty,min=1"`
}

// EventFilter defines query filters for listing events.
type EventFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
