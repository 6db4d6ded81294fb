package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
	"github.com/sethvargo/go-retry"
)

// ErrProfileCreation is returned once every attempt of a profile write
// failed with a transient error.
var ErrProfileCreation = errors.New("failed to create profile, check connection")

// ProfileWriterOptions tune the retry loop of the profile write.
type ProfileWriterOptions struct {
	// BaseDelay is the backoff unit: retry n waits n*BaseDelay.
	BaseDelay time.Duration
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64
	// AttemptTimeout bounds a single write.
	AttemptTimeout time.Duration
}

func DefaultProfileWriterOptions() ProfileWriterOptions {
	return ProfileWriterOptions{
		BaseDelay:      time.Second,
		MaxRetries:     2,
		AttemptTimeout: 5 * time.Second,
	}
}

// ProfileWriter creates the role document of a freshly registered identity.
type ProfileWriter struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	opts        ProfileWriterOptions
	logger      logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time

	// onRetry observes every scheduled retry; nil in production.
	onRetry func(attempt int, delay time.Duration)
}

func NewProfileWriter(db *sql.DB, m repomanager.RepositoryManager, opts ProfileWriterOptions, logger logging.Logger, rec metrics.Recorder) *ProfileWriter {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ProfileWriter{
		db:          db,
		repomanager: m,
		opts:        opts,
		logger:      logger.With("module", "profiles"),
		metrics:     rec,
		now:         time.Now,
	}
}

// Get returns the profile of uid or common.ErrorNotFound.
func (w *ProfileWriter) Get(ctx context.Context, uid string) (*models.Profile, error) {
	return w.repomanager.Profiles(w.db).Get(ctx, uid)
}

// Create writes {uid, email, displayName, role: "user", createdAt} for
// identity. Transient failures are retried with a linear backoff; any other
// failure aborts at once. An already existing profile counts as success,
// which keeps the write idempotent when a commit outcome was ambiguous.
func (w *ProfileWriter) Create(ctx context.Context, identity *models.Identity) (*models.Profile, error) {
	profile := &models.Profile{
		UID:         identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        common.RoleUser,
		CreatedAt:   w.now().UTC(),
	}

	repo := w.repomanager.Profiles(w.db)

	attempts := 0
	var lastErr error
	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, w.opts.AttemptTimeout)
		defer cancel()

		err := repo.Create(attemptCtx, profile)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, common.ErrorAlreadyExists):
			w.logger.Info(ctx, "profile already exists", "uid", identity.ID)
			return nil
		}

		lastErr = err
		if ctx.Err() == nil && common.IsTransient(err) {
			w.logger.Warn(ctx, "profile write failed, will retry", "uid", identity.ID, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	if err == nil {
		w.metrics.RecordProfileWrite("ok", attempts)
		return profile, nil
	}

	if lastErr != nil && common.IsTransient(lastErr) && ctx.Err() == nil {
		w.metrics.RecordProfileWrite("exhausted", attempts)
		w.logger.Error(ctx, "profile write gave up", "uid", identity.ID, "attempts", attempts, "error", lastErr)
		return nil, fmt.Errorf("%w: %w", ErrProfileCreation, lastErr)
	}

	w.metrics.RecordProfileWrite("failed", attempts)
	w.logger.Error(ctx, "profile write failed", "uid", identity.ID, "attempts", attempts, "error", err)
	return nil, fmt.Errorf("create profile: %w", err)
}

// EnsureExists returns the existing profile of identity or creates one with
// the same retry policy as Create.
func (w *ProfileWriter) EnsureExists(ctx context.Context, identity *models.Identity) (*models.Profile, error) {
	p, err := w.Get(ctx, identity.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		if common.IsTransient(err) {
			// the create path retries, so let it deal with a flaky read too
			w.logger.Warn(ctx, "profile lookup failed", "uid", identity.ID, "error", err)
		} else {
			return nil, fmt.Errorf("lookup profile: %w", err)
		}
	}
	return w.Create(ctx, identity)
}

// backoff waits attempt*BaseDelay before each retry and stops after
// MaxRetries retries.
func (w *ProfileWriter) backoff() retry.Backoff {
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		delay := time.Duration(attempt) * w.opts.BaseDelay
		if w.onRetry != nil {
			w.onRetry(attempt, delay)
		}
		return delay, false
	})
	return retry.WithMaxRetries(w.opts.MaxRetries, linear)
}
