package service

import (
	"context"
	"testing"
	"time"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
)

type mockAnalyticsRepository struct {
	dailyCountsFn    func(ctx context.Context, linkID string, since time.Time) ([]repository.DayCount, error)
	deviceCountsFn   func(ctx context.Context, linkID string) ([]repository.BucketCount, error)
	originCountsFn   func(ctx context.Context, linkID string) ([]repository.BucketCount, error)
	fingerprintsFn   func(ctx context.Context, linkID string) (int64, error)
	countClicksFn    func(ctx context.Context, linkID string, since *time.Time) (int64, error)
	totalsFn         func(ctx context.Context) (int64, int64, error)
	listActivitiesFn func(ctx context.Context, filter repository.ActivityFilter, limit, offset int) ([]model.Activity, int64, error)
}

func (m *mockAnalyticsRepository) DailyCounts(ctx context.Context, linkID string, since time.Time) ([]repository.DayCount, error) {
	if m.dailyCountsFn != nil {
		return m.dailyCountsFn(ctx, linkID, since)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) DeviceCounts(ctx context.Context, linkID string) ([]repository.BucketCount, error) {
	if m.deviceCountsFn != nil {
		return m.deviceCountsFn(ctx, linkID)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) OriginCounts(ctx context.Context, linkID string) ([]repository.BucketCount, error) {
	if m.originCountsFn != nil {
		return m.originCountsFn(ctx, linkID)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) DistinctFingerprints(ctx context.Context, linkID string) (int64, error) {
	if m.fingerprintsFn != nil {
		return m.fingerprintsFn(ctx, linkID)
	}
	return 0, nil
}

func (m *mockAnalyticsRepository) CountClicks(ctx context.Context, linkID string, since *time.Time) (int64, error) {
	if m.countClicksFn != nil {
		return m.countClicksFn(ctx, linkID, since)
	}
	return 0, nil
}

func (m *mockAnalyticsRepository) Totals(ctx context.Context) (int64, int64, error) {
	if m.totalsFn != nil {
		return m.totalsFn(ctx)
	}
	return 0, 0, nil
}

func (m *mockAnalyticsRepository) ListActivities(ctx context.Context, filter repository.ActivityFilter, limit, offset int) ([]model.Activity, int64, error) {
	if m.listActivitiesFn != nil {
		return m.listActivitiesFn(ctx, filter, limit, offset)
	}
	return nil, 0, nil
}

func newTestAnalytics(repo repository.AnalyticsRepository, now time.Time) AnalyticsService {
	svc := NewAnalyticsService(repo).(*analyticsService)
	svc.now = func() time.Time { return now }
	return svc
}

func collectTrend(t *testing.T, svc AnalyticsService, linkID string, window int) []TrendPoint {
	t.Helper()
	seq, err := svc.ClickTrend(context.Background(), linkID, window)
	if err != nil {
		t.Fatalf("ClickTrend returned error: %v", err)
	}
	var points []TrendPoint
	for p := range seq {
		points = append(points, p)
	}
	return points
}

func TestAnalytics_ClickTrend_ZeroFillsEmptyLog(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	svc := newTestAnalytics(&mockAnalyticsRepository{}, now)

	points := collectTrend(t, svc, "l1", 7)
	if len(points) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(points))
	}
	for i, p := range points {
		if p.Clicks != 0 {
			t.Fatalf("expected zero-filled day at index %d, got %d", i, p.Clicks)
		}
		want := time.Date(2026, 8, 23+i, 0, 0, 0, 0, time.UTC)
		if !p.Date.Equal(want) {
			t.Fatalf("expected date %v at index %d, got %v", want, i, p.Date)
		}
	}
}

func TestAnalytics_ClickTrend_MergesCounts(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	repo := &mockAnalyticsRepository{
		dailyCountsFn: func(ctx context.Context, linkID string, since time.Time) ([]repository.DayCount, error) {
			wantSince := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
			if !since.Equal(wantSince) {
				t.Fatalf("expected window start %v, got %v", wantSince, since)
			}
			return []repository.DayCount{
				{Day: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), Count: 3},
				{Day: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), Count: 1},
			}, nil
		},
	}
	svc := newTestAnalytics(repo, now)

	points := collectTrend(t, svc, "l1", 7)
	if len(points) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(points))
	}
	if points[2].Clicks != 3 {
		t.Fatalf("expected 3 clicks on the third day, got %d", points[2].Clicks)
	}
	if points[6].Clicks != 1 {
		t.Fatalf("expected 1 click on the last day, got %d", points[6].Clicks)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			t.Fatalf("dates must ascend, got %v before %v", points[i-1].Date, points[i].Date)
		}
	}
}

func TestAnalytics_ClickTrend_Restartable(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	svc := newTestAnalytics(&mockAnalyticsRepository{}, now)

	seq, err := svc.ClickTrend(context.Background(), "l1", 7)
	if err != nil {
		t.Fatalf("ClickTrend returned error: %v", err)
	}
	for pass := 0; pass < 2; pass++ {
		n := 0
		for range seq {
			n++
		}
		if n != 7 {
			t.Fatalf("pass %d: expected 7 entries, got %d", pass, n)
		}
	}
}

func TestAnalytics_DeviceDistribution(t *testing.T) {
	repo := &mockAnalyticsRepository{
		deviceCountsFn: func(ctx context.Context, linkID string) ([]repository.BucketCount, error) {
			return []repository.BucketCount{
				{Bucket: "desktop", Count: 2},
				{Bucket: "mobile", Count: 1},
			}, nil
		},
	}
	svc := newTestAnalytics(repo, time.Now())

	shares, err := svc.DeviceDistribution(context.Background(), "l1")
	if err != nil {
		t.Fatalf("DeviceDistribution returned error: %v", err)
	}
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	if shares[0].Name != "desktop" || shares[0].Percent != 67 {
		t.Fatalf("expected desktop at 67%%, got %+v", shares[0])
	}
	if shares[1].Name != "mobile" || shares[1].Percent != 33 {
		t.Fatalf("expected mobile at 33%%, got %+v", shares[1])
	}
	for _, s := range shares {
		if s.Percent < 0 || s.Percent > 100 {
			t.Fatalf("percentage out of range: %+v", s)
		}
	}
}

func TestAnalytics_DeviceDistribution_EmptyLog(t *testing.T) {
	svc := newTestAnalytics(&mockAnalyticsRepository{}, time.Now())

	shares, err := svc.DeviceDistribution(context.Background(), "l1")
	if err != nil {
		t.Fatalf("DeviceDistribution returned error: %v", err)
	}
	if len(shares) != 0 {
		t.Fatalf("expected no shares for an empty log, got %d", len(shares))
	}
}

func TestAnalytics_ReferrerDistribution(t *testing.T) {
	repo := &mockAnalyticsRepository{
		originCountsFn: func(ctx context.Context, linkID string) ([]repository.BucketCount, error) {
			return []repository.BucketCount{
				{Bucket: "https://news.example", Count: 6},
				{Bucket: "direct", Count: 3},
				{Bucket: "https://social.example", Count: 1},
			}, nil
		},
	}
	svc := newTestAnalytics(repo, time.Now())

	shares, err := svc.ReferrerDistribution(context.Background(), "l1")
	if err != nil {
		t.Fatalf("ReferrerDistribution returned error: %v", err)
	}
	if len(shares) != 3 {
		t.Fatalf("expected 3 shares, got %d", len(shares))
	}
	for i := 1; i < len(shares); i++ {
		if shares[i].Clicks > shares[i-1].Clicks {
			t.Fatalf("shares must be ordered by descending count: %+v", shares)
		}
	}
	if shares[0].Clicks != 6 || shares[0].Percent != 60 {
		t.Fatalf("expected 6 clicks at 60%%, got %+v", shares[0])
	}
	if shares[2].Percent != 10 {
		t.Fatalf("expected 10%%, got %+v", shares[2])
	}
}

func TestAnalytics_UniqueVisitors(t *testing.T) {
	repo := &mockAnalyticsRepository{
		fingerprintsFn: func(ctx context.Context, linkID string) (int64, error) {
			return 5, nil
		},
	}
	svc := newTestAnalytics(repo, time.Now())

	n, err := svc.UniqueVisitors(context.Background(), "l1")
	if err != nil {
		t.Fatalf("UniqueVisitors returned error: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 unique visitors, got %d", n)
	}
}

func TestAnalytics_RollingTotals(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	repo := &mockAnalyticsRepository{
		countClicksFn: func(ctx context.Context, linkID string, since *time.Time) (int64, error) {
			switch {
			case since == nil:
				return 100, nil
			case since.Equal(now.AddDate(0, 0, -1)):
				return 4, nil
			case since.Equal(now.AddDate(0, 0, -7)):
				return 25, nil
			default:
				t.Fatalf("unexpected threshold %v", since)
				return 0, nil
			}
		},
	}
	svc := newTestAnalytics(repo, now)

	totals, err := svc.RollingTotals(context.Background(), "l1")
	if err != nil {
		t.Fatalf("RollingTotals returned error: %v", err)
	}
	if totals.LastDay != 4 || totals.LastWeek != 25 || totals.AllTime != 100 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestAnalytics_GlobalStats(t *testing.T) {
	repo := &mockAnalyticsRepository{
		totalsFn: func(ctx context.Context) (int64, int64, error) {
			return 12, 340, nil
		},
	}
	svc := newTestAnalytics(repo, time.Now())

	stats, err := svc.GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("GlobalStats returned error: %v", err)
	}
	if stats.Links != 12 || stats.Clicks != 340 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
