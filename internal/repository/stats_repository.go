package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coachdesk/coachdesk-api/internal/dto"
)

// StatsRepository exposes read-optimised aggregate queries for dashboards.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// StudentCounts returns total and active student counts.
func (r *StatsRepository) StudentCounts(ctx context.Context) (total, active int, err error) {
	const query = `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0) AS active FROM users WHERE role = 'STUDENT'`
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("student counts: %w", err)
	}
	return row.Total, row.Active, nil
}

// EventCounts returns upcoming and total event counts relative to now.
func (r *StatsRepository) EventCounts(ctx context.Context, now time.Time) (upcoming, total int, err error) {
	const query = `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN date >= $1 THEN 1 ELSE 0 END), 0) AS upcoming FROM events`
	var row struct {
		Total    int `db:"total"`
		Upcoming int `db:"upcoming"`
	}
	if err := r.db.GetContext(ctx, &row, query, now); err != nil {
		return 0, 0, fmt.Errorf("event counts: %w", err)
	}
	return row.Upcoming, row.Total, nil
}

// ConfirmationsByEvent aggregates RSVP confirmations per event.
func (r *StatsRepository) ConfirmationsByEvent(ctx context.Context, limit int) ([]dto.EventConfirmations, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT e.id AS event_id, e.title,
COALESCE(SUM(CASE WHEN a.confirmed THEN 1 ELSE 0 END), 0) AS confirmed,
COUNT(a.id) AS total,
CASE WHEN COUNT(a.id) = 0 THEN 0 ELSE SUM(CASE WHEN a.confirmed THEN 1 ELSE 0 END)::DECIMAL / COUNT(a.id) END AS rate
FROM events e
LEFT JOIN attendances a ON a.event_id = e.id
GROUP BY e.id, e.title
ORDER BY e.date DESC
LIMIT $1`
	var rows []struct {
		EventID   string  `db:"event_id"`
		Title     string  `db:"title"`
		Confirmed int     `db:"confirmed"`
		Total     int     `db:"total"`
		Rate      float64 `db:"rate"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("confirmations by event: %w", err)
	}
	result := make([]dto.EventConfirmations, 0, len(rows))
	for _, row := range rows {
		result = append(result, dto.EventConfirmations{
			EventID:   row.EventID,
			Title:     row.Title,
			Confirmed: row.Confirmed,
			Total:     row.Total,
			Rate:      row.Rate,
		})
	}
	return result, nil
}

// EvaluationAverages summarises assessments recorded since the cutoff.
func (r *StatsRepository) EvaluationAverages(ctx context.Context, since time.Time) (count int, avgWeight, avgBodyFat float64, err error) {
	const query = `SELECT COUNT(*) AS count,
COALESCE(AVG(weight_kg), 0) AS avg_weight,
COALESCE(AVG(body_fat_pct), 0) AS avg_body_fat
FROM evaluations WHERE evaluated_at >= $1`
	var row struct {
		Count      int     `db:"count"`
		AvgWeight  float64 `db:"avg_weight"`
		AvgBodyFat float64 `db:"avg_body_fat"`
	}
	if err := r.db.GetContext(ctx, &row, query, since); err != nil {
		return 0, 0, 0, fmt.Errorf("evaluation averages: %w", err)
	}
	return row.Count, row.AvgWeight, row.AvgBodyFat, nil
}

// StudentOverview aggregates per-student dashboard counters.
func (r *StatsRepository) StudentOverview(ctx context.Context, studentID string, now time.Time) (*dto.StudentDashboardResponse, error) {
	const query = `SELECT
(SELECT COUNT(*) FROM attendances a JOIN events e ON e.id = a.event_id WHERE a.user_id = $1 AND e.date >= $2) AS upcoming_events,
(SELECT COUNT(*) FROM attendances WHERE user_id = $1 AND confirmed) AS confirmed_events,
(SELECT COUNT(*) FROM workout_plans WHERE student_id = $1) AS assigned_plans`
	var row struct {
		UpcomingEvents  int `db:"upcoming_events"`
		ConfirmedEvents int `db:"confirmed_events"`
		AssignedPlans   int `db:"assigned_plans"`
	}
	if err := r.db.GetContext(ctx, &row, query, studentID, now); err != nil {
		return nil, fmt.Errorf("student overview: %w", err)
	}

	overview := &dto.StudentDashboardResponse{
		UpcomingEvents:  row.UpcomingEvents,
		ConfirmedEvents: row.ConfirmedEvents,
		AssignedPlans:   row.AssignedPlans,
	}

	const latestQuery = `SELECT weight_kg, body_fat_pct FROM evaluations WHERE student_id = $1 ORDER BY evaluated_at DESC LIMIT 1`
	var latest struct {
		WeightKg   float64  `db:"weight_kg"`
		BodyFatPct *float64 `db:"body_fat_pct"`
	}
	switch err := r.db.GetContext(ctx, &latest, latestQuery, studentID); err {
	case nil:
		overview.LatestWeight = &latest.WeightKg
		overview.LatestBodyFat = latest.BodyFatPct
	case sql.ErrNoRows:
		// no evaluations yet
	default:
		return nil, fmt.Errorf("latest evaluation: %w", err)
	}
	return overview, nil
}
