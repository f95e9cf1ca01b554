package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coachdesk/coachdesk-api/internal/models"
)

// AttendanceRepository handles persistence for event attendance records.
// The (event_id, user_id) pair carries a unique constraint; concurrent
// writers are serialized by the database, not by application locking.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or updates the confirmation for an (event, user) pair.
// Applying it twice with the same arguments yields the same final row.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO attendances (id, event_id, user_id, confirmed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (event_id, user_id)
DO UPDATE SET confirmed = EXCLUDED.confirmed, updated_at = EXCLUDED.updated_at
RETURNING id, event_id, user_id, confirmed, created_at, updated_at`
	var stored models.Attendance
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.EventID, record.UserID, record.Confirmed, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// Seed creates one unconfirmed record per user id inside a transaction,
// skipping pairs that already exist. Returns the ids that were skipped.
func (r *AttendanceRepository) Seed(ctx context.Context, eventID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed attendance: %w", err)
	}
	skipped := make([]string, 0)
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()
	const query = `INSERT INTO attendances (id, event_id, user_id, confirmed, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, $4, $4)
ON CONFLICT (event_id, user_id) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for _, userID := range userIDs {
		var insertedID string
		if err := tx.QueryRowxContext(ctx, query, uuid.NewString(), eventID, userID, now).Scan(&insertedID); err != nil {
			if err == sql.ErrNoRows {
				skipped = append(skipped, userID)
				continue
			}
			return nil, fmt.Errorf("seed attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed attendance: %w", err)
	}
	commit = true
	return skipped, nil
}

// FindByEventAndUser returns the record for an (event, user) pair.
func (r *AttendanceRepository) FindByEventAndUser(ctx context.Context, eventID, userID string) (*models.Attendance, error) {
	const query = `SELECT id, event_id, user_id, confirmed, created_at, updated_at FROM attendances WHERE event_id = $1 AND user_id = $2 LIMIT 1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, eventID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// ListByEvent returns attendance records with user metadata for an event.
func (r *AttendanceRepository) ListByEvent(ctx context.Context, eventID string) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.event_id, a.user_id, a.confirmed, a.created_at, a.updated_at,
u.full_name AS user_name, u.email AS user_email
FROM attendances a
JOIN users u ON u.id = a.user_id
WHERE a.event_id = $1
ORDER BY u.full_name ASC`
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("list attendance by event: %w", err)
	}
	return rows, nil
}

// ListByUser returns attendance records with event metadata for a user.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string) ([]models.UserAttendanceDetail, error) {
	const query = `SELECT a.id, a.event_id, a.user_id, a.confirmed, a.created_at, a.updated_at,
e.title AS event_title, e.date AS event_date
FROM attendances a
JOIN events e ON e.id = a.event_id
WHERE a.user_id = $1
ORDER BY e.date DESC`
	var rows []models.UserAttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list attendance by user: %w", err)
	}
	return rows, nil
}

// Summary aggregates confirmation counts for an event.
func (r *AttendanceRepository) Summary(ctx context.Context, eventID string) (*models.AttendanceSummary, error) {
	const query = `SELECT $1::TEXT AS event_id,
COUNT(*) AS total,
COALESCE(SUM(CASE WHEN confirmed THEN 1 ELSE 0 END), 0) AS confirmed,
COALESCE(SUM(CASE WHEN confirmed THEN 0 ELSE 1 END), 0) AS unconfirmed
FROM attendances WHERE event_id = $1`
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, eventID); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}
