package models

import "time"

// Attendance represents a per-event, per-user confirmation record.
// At most one row exists per (event_id, user_id) pair.
type Attendance struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Confirmed bool      `db:"confirmed" json:"confirmed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AttendanceRequest is the RSVP payload. UserID is honoured for admins only;
// everyone else records their own confirmation.
type AttendanceRequest struct {
	Confirmed bool    `json:"confirmed"`
	UserID    *string `json:"user_id,omitempty"`
}

// AttendanceDetail extends the record with user metadata for admin listings.
type AttendanceDetail struct {
	Attendance
	UserName  string `db:"user_name" json:"user_name"`
	UserEmail string `db:"user_email" json:"user_email"`
}

// UserAttendanceDetail extends the record with event metadata for self listings.
type UserAttendanceDetail struct {
	Attendance
	EventTitle string    `db:"event_title" json:"event_title"`
	EventDate  time.Time `db:"event_date" json:"event_date"`
}

// AttendanceSummary aggregates confirmation counts for an event.
type AttendanceSummary struct {
	EventID     string `db:"event_id" json:"event_id"`
	Total       int    `db:"total" json:"total"`
	Confirmed   int    `db:"confirmed" json:"confirmed"`
	Unconfirmed int    `db:"unconfirmed" json:"unconfirmed"`
}
