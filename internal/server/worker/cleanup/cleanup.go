// Package cleanup removes stored objects that no content record references
// any more, and purges expired refresh tokens.
//
// Orphans are queued by the content service when an update replaces an
// image. A queued object that is already gone counts as removed. Objects
// that keep failing are retried on every pass until MaxAttempts is
// reached, after which they stay in the table for manual inspection.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/folio/internal/server/storage"
)

const (
	DefaultMaxAttempts = 5
	DefaultBatchSize   = 50
)

// Result summarises one pass.
type Result struct {
	Removed int
	Failed  int
	// Kept counts orphans dropped from the queue because a record points
	// at the object again.
	Kept          int
	ExpiredTokens int64
}

type Job struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	logger      logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time

	MaxAttempts int
	BatchSize   int
}

func NewJob(db dbx.DBTX, m repomanager.RepositoryManager, store storage.ObjectStore, l logging.Logger, rec metrics.Recorder) *Job {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Job{
		db:          db,
		repomanager: m,
		store:       store,
		logger:      l.With("module", "cleanup"),
		metrics:     rec,
		now:         time.Now,
		MaxAttempts: DefaultMaxAttempts,
		BatchSize:   DefaultBatchSize,
	}
}

// Run performs a single pass. It is idempotent: an empty queue is not an
// error.
func (j *Job) Run(ctx context.Context) (Result, error) {
	var res Result
	start := time.Now()

	repo := j.repomanager.Orphans(j.db)
	records := j.repomanager.Content(j.db)
	due, err := repo.Due(ctx, j.MaxAttempts, j.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list orphans: %w", err)
	}

	for _, o := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		inUse, err := records.ImageInUse(ctx, o.URL)
		if err != nil {
			return res, fmt.Errorf("check orphan %d references: %w", o.ID, err)
		}
		if inUse {
			if err := repo.Done(ctx, o.ID); err != nil {
				return res, fmt.Errorf("mark orphan %d done: %w", o.ID, err)
			}
			res.Kept++
			j.metrics.RecordOrphan("kept")
			continue
		}

		err = j.store.Delete(ctx, o.URL)
		switch {
		case err == nil, errors.Is(err, storage.ErrObjectNotFound):
			if err := repo.Done(ctx, o.ID); err != nil {
				return res, fmt.Errorf("mark orphan %d done: %w", o.ID, err)
			}
			res.Removed++
			j.metrics.RecordOrphan("removed")
		default:
			j.logger.Warn(ctx, "orphan delete failed", "url", o.URL, "attempt", o.Attempts+1, "error", err)
			if err := repo.Failed(ctx, o.ID, err.Error()); err != nil {
				return res, fmt.Errorf("mark orphan %d failed: %w", o.ID, err)
			}
			res.Failed++
			j.metrics.RecordOrphan("failed")
		}
	}

	n, err := j.repomanager.RefreshTokens(j.db).DeleteExpired(ctx, j.now())
	if err != nil {
		return res, fmt.Errorf("purge refresh tokens: %w", err)
	}
	res.ExpiredTokens = n

	j.logger.Info(ctx, "cleanup pass finished",
		"removed", res.Removed,
		"failed", res.Failed,
		"kept", res.Kept,
		"expired_tokens", res.ExpiredTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// Start runs a pass immediately and then every interval until ctx is done.
// Pass errors are logged and do not stop the loop.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error(ctx, "cleanup pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
