package orphans

import (
	"context"

	"github.com/dmitrijs2005/folio/internal/server/models"
)

// Repository is the queue of stored objects awaiting deletion.
type Repository interface {
	Add(ctx context.Context, url string) error
	// Due returns up to limit orphans that have been tried fewer than maxAttempts times.
	Due(ctx context.Context, maxAttempts, limit int) ([]*models.Orphan, error)
	Done(ctx context.Context, id int64) error
	Failed(ctx context.Context, id int64, cause string) error
}
