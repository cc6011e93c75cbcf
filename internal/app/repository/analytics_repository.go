package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zxdlabs/shortlink/internal/app/model"
)

// BucketCount is one group in a distribution query (device, origin).
type BucketCount struct {
	Bucket string
	Count  int64
}

// DayCount is the click total for one calendar day.
type DayCount struct {
	Day   time.Time
	Count int64
}

// ActivityFilter narrows activity queries. Zero-valued fields are skipped;
// set fields are combined with AND. Leaving Fingerprint empty means no
// fingerprint condition at all, not a match on empty.
type ActivityFilter struct {
	LinkID      string
	Device      string
	Origin      string
	Fingerprint string
	Since       *time.Time
	Until       *time.Time
}

func (f ActivityFilter) whereClause() (string, []any) {
	var conditions []string
	var args []any

	add := func(expr string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(expr, len(args)))
	}

	if f.LinkID != "" {
		add("link_id = $%d", f.LinkID)
	}
	if f.Device != "" {
		add("device = $%d", f.Device)
	}
	if f.Origin != "" {
		add("origin = $%d", f.Origin)
	}
	if f.Fingerprint != "" {
		add("fingerprint = $%d", f.Fingerprint)
	}
	if f.Since != nil {
		add("clicked_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("clicked_at <= $%d", *f.Until)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// AnalyticsRepository is the read-only aggregation path over the activity
// log. It runs parameterized SQL directly on the pgx pool; nothing here may
// mutate Link or Activity state.
type AnalyticsRepository interface {
	DailyCounts(ctx context.Context, linkID string, since time.Time) ([]DayCount, error)
	DeviceCounts(ctx context.Context, linkID string) ([]BucketCount, error)
	OriginCounts(ctx context.Context, linkID string) ([]BucketCount, error)
	DistinctFingerprints(ctx context.Context, linkID string) (int64, error)
	CountClicks(ctx context.Context, linkID string, since *time.Time) (int64, error)
	Totals(ctx context.Context) (links int64, clicks int64, err error)
	ListActivities(ctx context.Context, filter ActivityFilter, limit, offset int) ([]model.Activity, int64, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns a pgx-backed AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

func (r *analyticsRepository) DailyCounts(ctx context.Context, linkID string, since time.Time) ([]DayCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT clicked_at::date AS day, COUNT(*) AS clicks
		 FROM activity
		 WHERE link_id = $1 AND clicked_at >= $2
		 GROUP BY day
		 ORDER BY day`,
		linkID, since)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	var result []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("daily counts scan: %w", err)
		}
		result = append(result, dc)
	}
	return result, rows.Err()
}

func (r *analyticsRepository) DeviceCounts(ctx context.Context, linkID string) ([]BucketCount, error) {
	return r.bucketCounts(ctx, linkID, "COALESCE(NULLIF(device, ''), 'unknown')")
}

func (r *analyticsRepository) OriginCounts(ctx context.Context, linkID string) ([]BucketCount, error) {
	return r.bucketCounts(ctx, linkID, "COALESCE(NULLIF(origin, ''), 'direct')")
}

func (r *analyticsRepository) bucketCounts(ctx context.Context, linkID, bucketExpr string) ([]BucketCount, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s AS bucket, COUNT(*) AS clicks
		 FROM activity
		 WHERE link_id = $1
		 GROUP BY bucket
		 ORDER BY clicks DESC, bucket`, bucketExpr),
		linkID)
	if err != nil {
		return nil, fmt.Errorf("bucket counts: %w", err)
	}
	defer rows.Close()

	var result []BucketCount
	for rows.Next() {
		var bc BucketCount
		if err := rows.Scan(&bc.Bucket, &bc.Count); err != nil {
			return nil, fmt.Errorf("bucket counts scan: %w", err)
		}
		result = append(result, bc)
	}
	return result, rows.Err()
}

func (r *analyticsRepository) DistinctFingerprints(ctx context.Context, linkID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT fingerprint)
		 FROM activity
		 WHERE link_id = $1 AND fingerprint IS NOT NULL AND fingerprint <> ''`,
		linkID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("distinct fingerprints: %w", err)
	}
	return n, nil
}

func (r *analyticsRepository) CountClicks(ctx context.Context, linkID string, since *time.Time) (int64, error) {
	filter := ActivityFilter{LinkID: linkID, Since: since}
	where, args := filter.whereClause()

	var n int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM activity "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}
	return n, nil
}

func (r *analyticsRepository) Totals(ctx context.Context) (int64, int64, error) {
	var links, clicks int64
	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM link), (SELECT COUNT(*) FROM activity)`).
		Scan(&links, &clicks)
	if err != nil {
		return 0, 0, fmt.Errorf("totals: %w", err)
	}
	return links, clicks, nil
}

func (r *analyticsRepository) ListActivities(ctx context.Context, filter ActivityFilter, limit, offset int) ([]model.Activity, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := filter.whereClause()

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM activity "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("list activities count: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, link_id, ip, fingerprint, device, origin, clicked_at
		 FROM activity %s
		 ORDER BY clicked_at DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var result []model.Activity
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.LinkID, &a.IP, &a.Fingerprint, &a.Device, &a.Origin, &a.ClickedAt); err != nil {
			return nil, 0, fmt.Errorf("list activities scan: %w", err)
		}
		result = append(result, a)
	}
	return result, total, rows.Err()
}
