// Package pageviews stores raw page-view beacons and aggregates them for
// the analytics report.
package pageviews

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/server/models"
)

// Dimension is a groupable page_views column.
type Dimension string

const (
	Country Dimension = "country"
	Device  Dimension = "device"
	Source  Dimension = "source"
)

func (d Dimension) valid() bool {
	return d == Country || d == Device || d == Source
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, pv *models.PageView) error {
	query := `
		INSERT INTO page_views (path, session_id, country, device, source, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, pv.Path, pv.SessionID, pv.Country, pv.Device, pv.Source, pv.DurationMS, pv.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) count(ctx context.Context, query string, since time.Time) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return n, nil
}

func (r *PostgresRepository) ActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(DISTINCT session_id) FROM page_views
		WHERE created_at >= $1
	`, since)
}

func (r *PostgresRepository) PageViews(ctx context.Context, since time.Time) (int64, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM page_views
		WHERE created_at >= $1
	`, since)
}

// AvgSessionDuration averages the summed view durations of each session.
func (r *PostgresRepository) AvgSessionDuration(ctx context.Context, since time.Time) (time.Duration, error) {
	ms, err := r.count(ctx, `
		SELECT COALESCE(ROUND(AVG(total)), 0)::BIGINT FROM (
			SELECT SUM(duration_ms) AS total FROM page_views
			WHERE created_at >= $1
			GROUP BY session_id
		) s
	`, since)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (r *PostgresRepository) GroupSessions(ctx context.Context, dimension Dimension, since time.Time, limit int) ([]Bucket, error) {
	if !dimension.valid() {
		return nil, fmt.Errorf("unknown dimension %q", dimension)
	}

	// dimension is one of the constants above, never caller input.
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(DISTINCT session_id) AS sessions FROM page_views
		WHERE created_at >= $1 AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY sessions DESC, %[1]s
	`, dimension)

	args := []any{since}
	if limit > 0 {
		query += `LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := make([]Bucket, 0)
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}
