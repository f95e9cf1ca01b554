package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/dto"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type dashboardStatsRepository interface {
	StudentCounts(ctx context.Context) (total, active int, err error)
	EventCounts(ctx context.Context, now time.Time) (upcoming, total int, err error)
	ConfirmationsByEvent(ctx context.Context, limit int) ([]dto.EventConfirmations, error)
	EvaluationAverages(ctx context.Context, since time.Time) (count int, avgWeight, avgBodyFat float64, err error)
	StudentOverview(ctx context.Context, studentID string, now time.Time) (*dto.StudentDashboardResponse, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL        time.Duration
	TopEventsLimit  int
	EvaluationRange time.Duration
}

// DashboardService composes aggregate statistics payloads. Results are
// served through the cache when available; a miss recomputes and stores.
type DashboardService struct {
	stats  dashboardStatsRepository
	cache  dashboardCache
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(stats dashboardStatsRepository, cache dashboardCache, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopEventsLimit <= 0 {
		cfg.TopEventsLimit = 5
	}
	if cfg.EvaluationRange <= 0 {
		cfg.EvaluationRange = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{stats: stats, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Admin returns the admin dashboard summary and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	const cacheKey = "dash:admin"

	if s.cache != nil {
		var cached dto.AdminDashboardResponse
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary, err := s.composeAdminSummary(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) composeAdminSummary(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	now := s.now().UTC()

	totalStudents, activeStudents, err := s.stats.StudentCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	upcoming, totalEvents, err := s.stats.EventCounts(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count events")
	}

	byEvent, err := s.stats.ConfirmationsByEvent(ctx, s.cfg.TopEventsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate confirmations")
	}

	var confirmed, total int
	for i := range byEvent {
		confirmed += byEvent[i].Confirmed
		total += byEvent[i].Total
		if byEvent[i].Total > 0 {
			byEvent[i].Rate = float64(byEvent[i].Confirmed) / float64(byEvent[i].Total) * 100
		}
	}
	var confirmationRate float64
	if total > 0 {
		confirmationRate = float64(confirmed) / float64(total) * 100
	}

	evalCount, avgWeight, avgBodyFat, err := s.stats.EvaluationAverages(ctx, now.Add(-s.cfg.EvaluationRange))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate evaluations")
	}

	return &dto.AdminDashboardResponse{
		Students: dto.StudentsSection{Total: totalStudents, Active: activeStudents},
		Events:   dto.EventsSection{Upcoming: upcoming, Total: totalEvents},
		Attendance: dto.AttendanceSection{
			ConfirmationRate: confirmationRate,
			ByEvent:          byEvent,
		},
		Evaluations: dto.EvaluationsSection{
			Last30Days: evalCount,
			AvgWeight:  avgWeight,
			AvgBodyFat: avgBodyFat,
		},
	}, nil
}

// Student returns the per-student dashboard and whether it came from cache.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	cacheKey := "dash:student:" + studentID

	if s.cache != nil {
		var cached dto.StudentDashboardResponse
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	overview, err := s.stats.StudentOverview(ctx, studentID, s.now().UTC())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose student overview")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return overview, false, nil
}

// Invalidate drops all cached dashboard payloads. Callers invoke it after
// writes that shift the aggregates.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dash:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
