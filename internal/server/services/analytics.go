package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/pageviews"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
	"golang.org/x/sync/errgroup"
)

// ReportWindow is the period covered by the analytics report.
const ReportWindow = 30 * 24 * time.Hour

// NamedValue is one row of a breakdown.
type NamedValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Report is the dashboard analytics summary.
type Report struct {
	ActiveUsers        int64        `json:"activeUsers"`
	PageViews          int64        `json:"pageViews"`
	AvgSessionDuration int64        `json:"avgSessionDuration"` // minutes, floored
	TopLocations       []NamedValue `json:"topLocations"`
	DeviceUsage        []NamedValue `json:"deviceUsage"`
	TrafficSources     []NamedValue `json:"trafficSources"`
}

type AnalyticsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	enabled     bool
	logger      logging.Logger
	now         func() time.Time
}

func NewAnalyticsService(db *sql.DB, m repomanager.RepositoryManager, enabled bool, logger logging.Logger) *AnalyticsService {
	return &AnalyticsService{
		db:          db,
		repomanager: m,
		enabled:     enabled,
		logger:      logger.With("module", "analytics"),
		now:         time.Now,
	}
}

// Track stores a page-view beacon. Beacons are dropped silently while
// analytics is disabled.
func (s *AnalyticsService) Track(ctx context.Context, pv *models.PageView) error {
	if !s.enabled {
		return nil
	}
	pv.Path = strings.TrimSpace(pv.Path)
	if pv.Path == "" {
		return FieldErrors{"path": "Path is required"}
	}
	if pv.SessionID == "" {
		return FieldErrors{"sessionId": "Session id is required"}
	}
	if pv.DurationMS < 0 {
		pv.DurationMS = 0
	}
	pv.CreatedAt = s.now().UTC()
	return s.repomanager.PageViews(s.db).Insert(ctx, pv)
}

// Report aggregates the last 30 days. The six aggregates run concurrently;
// the first failure cancels the rest.
func (s *AnalyticsService) Report(ctx context.Context) (*Report, error) {
	if !s.enabled {
		return nil, common.ErrUnavailable
	}

	repo := s.repomanager.PageViews(s.db)
	since := s.now().Add(-ReportWindow)

	r := &Report{}
	var avg time.Duration

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.ActiveUsers, err = repo.ActiveUsers(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		r.PageViews, err = repo.PageViews(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		avg, err = repo.AvgSessionDuration(ctx, since)
		return err
	})
	g.Go(func() (err error) {
		r.TopLocations, err = s.breakdown(ctx, repo, pageviews.Country, since, 5)
		return err
	})
	g.Go(func() (err error) {
		r.DeviceUsage, err = s.breakdown(ctx, repo, pageviews.Device, since, 0)
		return err
	})
	g.Go(func() (err error) {
		r.TrafficSources, err = s.breakdown(ctx, repo, pageviews.Source, since, 4)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error(ctx, "analytics report failed", "error", err)
		return nil, err
	}

	r.AvgSessionDuration = int64(avg / time.Minute)
	return r, nil
}

func (s *AnalyticsService) breakdown(ctx context.Context, repo pageviews.Repository, d pageviews.Dimension, since time.Time, limit int) ([]NamedValue, error) {
	buckets, err := repo.GroupSessions(ctx, d, since, limit)
	if err != nil {
		return nil, err
	}
	out := make([]NamedValue, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, NamedValue{Name: b.Key, Value: b.Count})
	}
	return out, nil
}
