package pageviews

import (
	"context"
	"time"

	"github.com/dmitrijs2005/folio/internal/server/models"
)

// Bucket is one row of a grouped count.
type Bucket struct {
	Key   string
	Count int64
}

// Repository records page-view beacons and answers the aggregate queries
// behind the analytics report. Every aggregate covers rows created at or
// after since.
type Repository interface {
	Insert(ctx context.Context, pv *models.PageView) error
	ActiveUsers(ctx context.Context, since time.Time) (int64, error)
	PageViews(ctx context.Context, since time.Time) (int64, error)
	AvgSessionDuration(ctx context.Context, since time.Time) (time.Duration, error)
	// GroupSessions counts distinct sessions per value of dimension, busiest
	// first. limit <= 0 means no limit.
	GroupSessions(ctx context.Context, dimension Dimension, since time.Time, limit int) ([]Bucket, error)
}
