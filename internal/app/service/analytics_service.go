package service

import (
	"context"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/zxdlabs/shortlink/internal/app/model"
	"github.com/zxdlabs/shortlink/internal/app/repository"
)

// TrendPoint is the click total for one calendar day of a trend window.
type TrendPoint struct {
	Date   time.Time
	Clicks int64
}

// DeviceShare is one device class and its share of total clicks, rounded to
// the nearest percent. Shares are rounded independently and need not sum to
// exactly 100.
type DeviceShare struct {
	Name    string
	Percent int
}

// ReferrerShare is one origin with its absolute count and rounded share.
type ReferrerShare struct {
	Source  string
	Clicks  int64
	Percent int
}

// RollingTotals holds click counts over the trailing day, trailing week and
// all time, all relative to the moment of aggregation.
type RollingTotals struct {
	LastDay  int64
	LastWeek int64
	AllTime  int64
}

// GlobalStats is the top-level dashboard summary.
type GlobalStats struct {
	Links  int64
	Clicks int64
}

// DefaultTrendWindow is the trend width used when callers pass a
// non-positive window.
const DefaultTrendWindow = 7

// AnalyticsService derives read-only statistics from the activity log. It
// never mutates Link or Activity state.
type AnalyticsService interface {
	ClickTrend(ctx context.Context, linkID string, windowDays int) (iter.Seq[TrendPoint], error)
	DeviceDistribution(ctx context.Context, linkID string) ([]DeviceShare, error)
	ReferrerDistribution(ctx context.Context, linkID string) ([]ReferrerShare, error)
	UniqueVisitors(ctx context.Context, linkID string) (int64, error)
	RollingTotals(ctx context.Context, linkID string) (RollingTotals, error)
	GlobalStats(ctx context.Context) (GlobalStats, error)
	ListActivities(ctx context.Context, filter repository.ActivityFilter, limit, offset int) ([]model.Activity, int64, error)
}

type analyticsService struct {
	repo repository.AnalyticsRepository

	// now is swappable so tests can pin the aggregation timestamp.
	now func() time.Time
}

// NewAnalyticsService returns an aggregator over the given repository.
func NewAnalyticsService(repo repository.AnalyticsRepository) AnalyticsService {
	return &analyticsService{repo: repo, now: time.Now}
}

// ClickTrend yields one point per calendar day for exactly windowDays
// consecutive days ending today, ascending, with zero-filled gaps. The
// returned sequence is finite and can be ranged over any number of times.
func (s *analyticsService) ClickTrend(ctx context.Context, linkID string, windowDays int) (iter.Seq[TrendPoint], error) {
	if windowDays <= 0 {
		windowDays = DefaultTrendWindow
	}

	today := truncateToDay(s.now())
	start := today.AddDate(0, 0, -(windowDays - 1))

	counts, err := s.repo.DailyCounts(ctx, linkID, start)
	if err != nil {
		return nil, fmt.Errorf("click trend: %w", err)
	}

	byDay := make(map[string]int64, len(counts))
	for _, dc := range counts {
		byDay[dc.Day.Format(time.DateOnly)] = dc.Count
	}

	return func(yield func(TrendPoint) bool) {
		for i := 0; i < windowDays; i++ {
			day := start.AddDate(0, 0, i)
			point := TrendPoint{Date: day, Clicks: byDay[day.Format(time.DateOnly)]}
			if !yield(point) {
				return
			}
		}
	}, nil
}

func (s *analyticsService) DeviceDistribution(ctx context.Context, linkID string) ([]DeviceShare, error) {
	buckets, err := s.repo.DeviceCounts(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("device distribution: %w", err)
	}

	total := bucketTotal(buckets)
	result := make([]DeviceShare, len(buckets))
	for i, b := range buckets {
		result[i] = DeviceShare{Name: b.Bucket, Percent: percent(b.Count, total)}
	}
	return result, nil
}

func (s *analyticsService) ReferrerDistribution(ctx context.Context, linkID string) ([]ReferrerShare, error) {
	buckets, err := s.repo.OriginCounts(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("referrer distribution: %w", err)
	}

	total := bucketTotal(buckets)
	result := make([]ReferrerShare, len(buckets))
	for i, b := range buckets {
		result[i] = ReferrerShare{Source: b.Bucket, Clicks: b.Count, Percent: percent(b.Count, total)}
	}
	return result, nil
}

// UniqueVisitors counts distinct non-empty fingerprints. Rows without a
// fingerprint never contribute; no fallback identity is substituted.
func (s *analyticsService) UniqueVisitors(ctx context.Context, linkID string) (int64, error) {
	n, err := s.repo.DistinctFingerprints(ctx, linkID)
	if err != nil {
		return 0, fmt.Errorf("unique visitors: %w", err)
	}
	return n, nil
}

func (s *analyticsService) RollingTotals(ctx context.Context, linkID string) (RollingTotals, error) {
	now := s.now()
	var totals RollingTotals

	thresholds := []struct {
		since *time.Time
		dest  *int64
	}{
		{since: ptrTime(now.AddDate(0, 0, -1)), dest: &totals.LastDay},
		{since: ptrTime(now.AddDate(0, 0, -7)), dest: &totals.LastWeek},
		{since: nil, dest: &totals.AllTime},
	}
	for _, th := range thresholds {
		n, err := s.repo.CountClicks(ctx, linkID, th.since)
		if err != nil {
			return RollingTotals{}, fmt.Errorf("rolling totals: %w", err)
		}
		*th.dest = n
	}
	return totals, nil
}

func (s *analyticsService) GlobalStats(ctx context.Context) (GlobalStats, error) {
	links, clicks, err := s.repo.Totals(ctx)
	if err != nil {
		return GlobalStats{}, fmt.Errorf("global stats: %w", err)
	}
	return GlobalStats{Links: links, Clicks: clicks}, nil
}

func (s *analyticsService) ListActivities(ctx context.Context, filter repository.ActivityFilter, limit, offset int) ([]model.Activity, int64, error) {
	activities, total, err := s.repo.ListActivities(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	return activities, total, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func bucketTotal(buckets []repository.BucketCount) int64 {
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

func percent(count, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

func ptrTime(t time.Time) *time.Time { return &t }
