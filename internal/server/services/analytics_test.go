package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/pageviews"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsReport(t *testing.T) {
	rm := newFakeRepoManager()
	rm.pageviews.active = 42
	rm.pageviews.views = 300
	rm.pageviews.avg = 3*time.Minute + 59*time.Second
	rm.pageviews.groups = map[pageviews.Dimension][]pageviews.Bucket{
		pageviews.Country: {{Key: "Latvia", Count: 20}, {Key: "Germany", Count: 5}},
		pageviews.Device:  {{Key: "desktop", Count: 30}, {Key: "mobile", Count: 12}},
		pageviews.Source:  {{Key: "google", Count: 25}},
	}
	db, _ := newSQLMockDB(t)
	s := NewAnalyticsService(db, rm, true, logging.Discard())

	r, err := s.Report(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), r.ActiveUsers)
	assert.Equal(t, int64(300), r.PageViews)
	assert.Equal(t, int64(3), r.AvgSessionDuration)
	assert.Equal(t, []NamedValue{{"Latvia", 20}, {"Germany", 5}}, r.TopLocations)
	assert.Equal(t, []NamedValue{{"desktop", 30}, {"mobile", 12}}, r.DeviceUsage)
	assert.Equal(t, []NamedValue{{"google", 25}}, r.TrafficSources)

	assert.Equal(t, 5, rm.pageviews.limits[pageviews.Country])
	assert.Equal(t, 0, rm.pageviews.limits[pageviews.Device])
	assert.Equal(t, 4, rm.pageviews.limits[pageviews.Source])
}

func TestAnalyticsReport_EmptyBreakdownsAreNotNil(t *testing.T) {
	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	s := NewAnalyticsService(db, rm, true, logging.Discard())

	r, err := s.Report(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, r.TopLocations)
	assert.NotNil(t, r.DeviceUsage)
	assert.NotNil(t, r.TrafficSources)
}

func TestAnalyticsReport_Failure(t *testing.T) {
	rm := newFakeRepoManager()
	rm.pageviews.err = errors.New("relation does not exist")
	db, _ := newSQLMockDB(t)
	s := NewAnalyticsService(db, rm, true, logging.Discard())

	_, err := s.Report(context.Background())
	assert.Error(t, err)
}

func TestAnalytics_Disabled(t *testing.T) {
	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	s := NewAnalyticsService(db, rm, false, logging.Discard())

	_, err := s.Report(context.Background())
	assert.ErrorIs(t, err, common.ErrUnavailable)

	require.NoError(t, s.Track(context.Background(), &models.PageView{Path: "/", SessionID: "s"}))
	assert.Empty(t, rm.pageviews.inserted)
}

func TestAnalyticsTrack(t *testing.T) {
	rm := newFakeRepoManager()
	db, _ := newSQLMockDB(t)
	s := NewAnalyticsService(db, rm, true, logging.Discard())
	ctx := context.Background()

	err := s.Track(ctx, &models.PageView{Path: " ", SessionID: "s"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = s.Track(ctx, &models.PageView{Path: "/projects"})
	assert.ErrorIs(t, err, common.ErrorValidation)

	require.NoError(t, s.Track(ctx, &models.PageView{Path: "/projects", SessionID: "s", DurationMS: -5}))
	require.Len(t, rm.pageviews.inserted, 1)
	assert.Equal(t, int64(0), rm.pageviews.inserted[0].DurationMS)
	assert.False(t, rm.pageviews.inserted[0].CreatedAt.IsZero())
}
