package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/content"
	"github.com/dmitrijs2005/folio/internal/server/repositories/identities"
	"github.com/dmitrijs2005/folio/internal/server/repositories/orphans"
	"github.com/dmitrijs2005/folio/internal/server/repositories/pageviews"
	"github.com/dmitrijs2005/folio/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/folio/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- identities ---

type memIdentities struct {
	mu       sync.Mutex
	byID     map[string]*models.Identity
	failures map[string]int
	locked   map[string]time.Time

	createErr error
	getErr    error
}

func newMemIdentities() *memIdentities {
	return &memIdentities{
		byID:     map[string]*models.Identity{},
		failures: map[string]int{},
		locked:   map[string]time.Time{},
	}
}

func (m *memIdentities) Create(_ context.Context, in *models.Identity) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, v := range m.byID {
		if strings.EqualFold(v.Email, in.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *in
	cp.ID = uuid.NewString()
	cp.CreatedAt = time.Now()
	m.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memIdentities) GetByEmail(_ context.Context, email string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, v := range m.byID {
		if strings.EqualFold(v.Email, email) {
			out := *v
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memIdentities) GetByID(_ context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *v
	return &out, nil
}

func (m *memIdentities) UpdateDisplayName(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	v.DisplayName = name
	return nil
}

func (m *memIdentities) RegisterFailure(_ context.Context, email string, threshold int, lockFor time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[email]++
	if m.failures[email] >= threshold {
		m.failures[email] = 0
		m.locked[email] = time.Now().Add(lockFor)
	}
	return nil
}

func (m *memIdentities) LockedUntil(_ context.Context, email string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[email], nil
}

func (m *memIdentities) ResetFailures(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, email)
	delete(m.locked, email)
	return nil
}

// --- profiles ---

type memProfiles struct {
	mu    sync.Mutex
	byUID map[string]*models.Profile

	// createErrs are returned by successive Create calls; nil entries and
	// an exhausted slice let the write through.
	createErrs []error
	calls      int
	getErr     error
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byUID: map[string]*models.Profile{}}
}

func (m *memProfiles) Create(_ context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.byUID[p.UID]; ok {
		return common.ErrorAlreadyExists
	}
	cp := *p
	m.byUID[p.UID] = &cp
	return nil
}

func (m *memProfiles) Get(_ context.Context, uid string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byUID[uid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *p
	return &out, nil
}

func (m *memProfiles) SetRole(_ context.Context, uid, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byUID[uid]
	if !ok {
		return common.ErrorNotFound
	}
	p.Role = role
	return nil
}

func (m *memProfiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUID)
}

// --- refresh tokens ---

type memRefreshTokens struct {
	mu      sync.Mutex
	byToken map[string]*models.RefreshToken

	createErr error
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{byToken: map[string]*models.RefreshToken{}}
}

func (m *memRefreshTokens) Create(_ context.Context, userID, token string, validity time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.byToken[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (m *memRefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *t
	return &out, nil
}

func (m *memRefreshTokens) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byToken, token)
	return nil
}

func (m *memRefreshTokens) DeleteByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.byToken {
		if v.UserID == userID {
			delete(m.byToken, k)
		}
	}
	return nil
}

func (m *memRefreshTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, v := range m.byToken {
		if v.Expires.Before(now) {
			delete(m.byToken, k)
			n++
		}
	}
	return n, nil
}

// --- content ---

type memContent struct {
	mu   sync.Mutex
	recs map[string]*models.ContentRecord

	insertErr error
	deleteErr error
}

func newMemContent() *memContent {
	return &memContent{recs: map[string]*models.ContentRecord{}}
}

func contentKey(c models.Collection, id string) string { return string(c) + "/" + id }

func cloneRecord(r *models.ContentRecord) *models.ContentRecord {
	cp := *r
	cp.Tags = append([]string{}, r.Tags...)
	return &cp
}

func (m *memContent) List(_ context.Context, c models.Collection) ([]*models.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.ContentRecord{}
	for _, r := range m.recs {
		if r.Collection == c {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memContent) Get(_ context.Context, c models.Collection, id string) (*models.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[contentKey(c, id)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneRecord(r), nil
}

func (m *memContent) GetForUpdate(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error) {
	return m.Get(ctx, c, id)
}

func (m *memContent) Insert(_ context.Context, rec *models.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.recs[contentKey(rec.Collection, rec.ID)] = cloneRecord(rec)
	return nil
}

func (m *memContent) Update(_ context.Context, rec *models.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.recs[contentKey(rec.Collection, rec.ID)]
	if !ok || cur.Version != rec.Version {
		return common.ErrVersionConflict
	}
	rec.Version++
	m.recs[contentKey(rec.Collection, rec.ID)] = cloneRecord(rec)
	return nil
}

func (m *memContent) Delete(_ context.Context, c models.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.recs[contentKey(c, id)]; !ok {
		return common.ErrorNotFound
	}
	delete(m.recs, contentKey(c, id))
	return nil
}

func (m *memContent) ImageInUse(_ context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.ImageURL == url {
			return true, nil
		}
	}
	return false, nil
}

func (m *memContent) put(rec *models.ContentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[contentKey(rec.Collection, rec.ID)] = cloneRecord(rec)
}

// --- orphans ---

type memOrphans struct {
	orphans.Repository // unused methods panic

	mu     sync.Mutex
	urls   []string
	addErr error
}

func (m *memOrphans) Add(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.urls = append(m.urls, url)
	return nil
}

// --- page views ---

type fakePageViews struct {
	mu       sync.Mutex
	inserted []*models.PageView

	active, views int64
	avg           time.Duration
	groups        map[pageviews.Dimension][]pageviews.Bucket
	limits        map[pageviews.Dimension]int
	err           error
}

func (f *fakePageViews) Insert(_ context.Context, pv *models.PageView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, pv)
	return f.err
}

func (f *fakePageViews) ActiveUsers(context.Context, time.Time) (int64, error) { return f.active, nil }
func (f *fakePageViews) PageViews(context.Context, time.Time) (int64, error)   { return f.views, f.err }
func (f *fakePageViews) AvgSessionDuration(context.Context, time.Time) (time.Duration, error) {
	return f.avg, nil
}

func (f *fakePageViews) GroupSessions(_ context.Context, d pageviews.Dimension, _ time.Time, limit int) ([]pageviews.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limits == nil {
		f.limits = map[pageviews.Dimension]int{}
	}
	f.limits[d] = limit
	return f.groups[d], nil
}

// --- manager ---

type fakeRepoManager struct {
	identities *memIdentities
	profiles   *memProfiles
	tokens     *memRefreshTokens
	content    *memContent
	orphans    *memOrphans
	pageviews  *fakePageViews
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		identities: newMemIdentities(),
		profiles:   newMemProfiles(),
		tokens:     newMemRefreshTokens(),
		content:    newMemContent(),
		orphans:    &memOrphans{},
		pageviews:  &fakePageViews{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Identities(dbx.DBTX) identities.Repository       { return m.identities }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository           { return m.profiles }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.tokens }
func (m *fakeRepoManager) Content(dbx.DBTX) content.Repository             { return m.content }
func (m *fakeRepoManager) Orphans(dbx.DBTX) orphans.Repository             { return m.orphans }
func (m *fakeRepoManager) PageViews(dbx.DBTX) pageviews.Repository         { return m.pageviews }

// --- object store ---

type fakeStore struct {
	mu        sync.Mutex
	puts      map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func (s *fakeStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	if s.puts == nil {
		s.puts = map[string][]byte{}
	}
	s.puts[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (s *fakeStore) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, url)
	return s.deleteErr
}
