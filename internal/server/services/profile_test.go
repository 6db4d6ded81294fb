package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfileWriter(t *testing.T, rm *fakeRepoManager) (*ProfileWriter, *[]time.Duration) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	w := NewProfileWriter(db, rm, ProfileWriterOptions{
		BaseDelay:      time.Millisecond,
		MaxRetries:     2,
		AttemptTimeout: time.Second,
	}, logging.Discard(), nil)

	delays := &[]time.Duration{}
	w.onRetry = func(_ int, d time.Duration) { *delays = append(*delays, d) }
	return w, delays
}

var testIdentity = &models.Identity{ID: "uid-1", Email: "ann@example.com", DisplayName: "Ann"}

func TestProfileWriter_Create_FirstAttempt(t *testing.T) {
	rm := newFakeRepoManager()
	w, delays := newTestProfileWriter(t, rm)

	p, err := w.Create(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, "uid-1", p.UID)
	assert.Equal(t, "ann@example.com", p.Email)
	assert.Equal(t, "Ann", p.DisplayName)
	assert.Equal(t, common.RoleUser, p.Role)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Empty(t, *delays)
	assert.Equal(t, 1, rm.profiles.calls)
}

func TestProfileWriter_Create_TransientThenSuccess(t *testing.T) {
	rm := newFakeRepoManager()
	rm.profiles.createErrs = []error{common.ErrUnavailable, context.DeadlineExceeded}
	w, delays := newTestProfileWriter(t, rm)

	_, err := w.Create(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, 3, rm.profiles.calls)
	assert.Equal(t, 1, rm.profiles.count())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, *delays)

	p, err := rm.profiles.Get(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, common.RoleUser, p.Role)
}

func TestProfileWriter_Create_PersistentTransientFailure(t *testing.T) {
	rm := newFakeRepoManager()
	rm.profiles.createErrs = []error{common.ErrUnavailable, common.ErrUnavailable, common.ErrUnavailable, nil}
	w, delays := newTestProfileWriter(t, rm)

	_, err := w.Create(context.Background(), testIdentity)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrProfileCreation)
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Equal(t, 3, rm.profiles.calls)
	assert.Equal(t, 0, rm.profiles.count())
	assert.Len(t, *delays, 2)
}

func TestProfileWriter_Create_NonTransientAbortsImmediately(t *testing.T) {
	rm := newFakeRepoManager()
	denied := errors.New("permission denied")
	rm.profiles.createErrs = []error{denied}
	w, delays := newTestProfileWriter(t, rm)

	_, err := w.Create(context.Background(), testIdentity)
	require.Error(t, err)

	assert.ErrorIs(t, err, denied)
	assert.NotErrorIs(t, err, ErrProfileCreation)
	assert.Equal(t, 1, rm.profiles.calls)
	assert.Empty(t, *delays)
}

func TestProfileWriter_Create_DuplicateIsSuccess(t *testing.T) {
	rm := newFakeRepoManager()
	w, _ := newTestProfileWriter(t, rm)

	_, err := w.Create(context.Background(), testIdentity)
	require.NoError(t, err)
	_, err = w.Create(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, 1, rm.profiles.count())
}

func TestProfileWriter_Create_CancelledDuringBackoff(t *testing.T) {
	rm := newFakeRepoManager()
	rm.profiles.createErrs = []error{common.ErrUnavailable, common.ErrUnavailable}
	w, _ := newTestProfileWriter(t, rm)
	w.opts.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	w.onRetry = func(int, time.Duration) { cancel() }

	_, err := w.Create(ctx, testIdentity)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrProfileCreation)
	assert.Equal(t, 1, rm.profiles.calls)
}

func TestProfileWriter_EnsureExists(t *testing.T) {
	rm := newFakeRepoManager()
	w, _ := newTestProfileWriter(t, rm)
	ctx := context.Background()

	p, err := w.EnsureExists(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, 1, rm.profiles.calls)

	require.NoError(t, rm.profiles.SetRole(ctx, p.UID, common.RoleAdmin))

	p, err = w.EnsureExists(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, p.Role)
	assert.Equal(t, 1, rm.profiles.calls, "existing profile must not be rewritten")
}

func TestProfileWriter_EnsureExists_LookupError(t *testing.T) {
	rm := newFakeRepoManager()
	rm.profiles.getErr = errors.New("syntax error")
	w, _ := newTestProfileWriter(t, rm)

	_, err := w.EnsureExists(context.Background(), testIdentity)
	require.Error(t, err)
	assert.Equal(t, 0, rm.profiles.calls)
}
