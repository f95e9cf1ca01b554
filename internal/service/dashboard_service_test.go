package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-api/internal/dto"
	appErrors "github.com/coachdesk/coachdesk-api/pkg/errors"
)

type mockStatsRepo struct {
	totalStudents  int
	activeStudents int
	upcoming       int
	totalEvents    int
	byEvent        []dto.EventConfirmations
	evalCount      int
	avgWeight      float64
	avgBodyFat     float64
	overview       *dto.StudentDashboardResponse
	calls          int
}

func (m *mockStatsRepo) StudentCounts(ctx context.Context) (int, int, error) {
	m.calls++
	return m.totalStudents, m.activeStudents, nil
}

func (m *mockStatsRepo) EventCounts(ctx context.Context, now time.Time) (int, int, error) {
	return m.upcoming, m.totalEvents, nil
}

func (m *mockStatsRepo) ConfirmationsByEvent(ctx context.Context, limit int) ([]dto.EventConfirmations, error) {
	return m.byEvent, nil
}

func (m *mockStatsRepo) EvaluationAverages(ctx context.Context, since time.Time) (int, float64, float64, error) {
	return m.evalCount, m.avgWeight, m.avgBodyFat, nil
}

func (m *mockStatsRepo) StudentOverview(ctx context.Context, studentID string, now time.Time) (*dto.StudentDashboardResponse, error) {
	m.calls++
	if m.overview != nil {
		return m.overview, nil
	}
	return &dto.StudentDashboardResponse{}, nil
}

type mockDashCache struct {
	entries  map[string][]byte
	patterns []string
	setErr   error
}

func newMockDashCache() *mockDashCache {
	return &mockDashCache{entries: make(map[string][]byte)}
}

func (m *mockDashCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockDashCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockDashCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

func TestDashboardAdminMissThenHit(t *testing.T) {
	stats := &mockStatsRepo{
		totalStudents: 25, activeStudents: 20,
		upcoming: 3, totalEvents: 12,
		byEvent: []dto.EventConfirmations{
			{EventID: "e1", Title: "Run", Confirmed: 8, Total: 10},
			{EventID: "e2", Title: "Lift", Confirmed: 2, Total: 10},
		},
		evalCount: 7, avgWeight: 80.5, avgBodyFat: 18.2,
	}
	cache := newMockDashCache()
	svc := NewDashboardService(stats, cache, zap.NewNop(), DashboardServiceConfig{})

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 25, summary.Students.Total)
	assert.InDelta(t, 50.0, summary.Attendance.ConfirmationRate, 0.001)
	assert.InDelta(t, 80.0, summary.Attendance.ByEvent[0].Rate, 0.001)

	cached, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, summary.Students, cached.Students)
	assert.Equal(t, 1, stats.calls)
}

func TestDashboardAdminSurvivesCacheWriteFailure(t *testing.T) {
	stats := &mockStatsRepo{totalStudents: 5}
	cache := newMockDashCache()
	cache.setErr = assert.AnError
	svc := NewDashboardService(stats, cache, zap.NewNop(), DashboardServiceConfig{})

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, summary.Students.Total)
}

func TestDashboardAdminWithoutCache(t *testing.T) {
	stats := &mockStatsRepo{totalStudents: 5}
	svc := NewDashboardService(stats, nil, zap.NewNop(), DashboardServiceConfig{})

	_, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDashboardStudentScopedKeys(t *testing.T) {
	weight := 72.5
	stats := &mockStatsRepo{overview: &dto.StudentDashboardResponse{UpcomingEvents: 2, ConfirmedEvents: 1, LatestWeight: &weight}}
	cache := newMockDashCache()
	svc := NewDashboardService(stats, cache, zap.NewNop(), DashboardServiceConfig{})

	first, hit, err := svc.Student(context.Background(), "student-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, first.UpcomingEvents)

	_, hit, err = svc.Student(context.Background(), "student-1")
	require.NoError(t, err)
	assert.True(t, hit)

	_, hit, err = svc.Student(context.Background(), "student-2")
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Contains(t, cache.entries, "dash:student:student-1")
	assert.Contains(t, cache.entries, "dash:student:student-2")
}

func TestDashboardInvalidate(t *testing.T) {
	stats := &mockStatsRepo{}
	cache := newMockDashCache()
	svc := NewDashboardService(stats, cache, zap.NewNop(), DashboardServiceConfig{})

	_, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	svc.Invalidate(context.Background())
	assert.Equal(t, []string{"dash:*"}, cache.patterns)
	assert.Empty(t, cache.entries)

	_, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}
