package content

import (
	"context"

	"github.com/dmitrijs2005/folio/internal/server/models"
)

// Repository stores content records of every collection in one table.
type Repository interface {
	List(ctx context.Context, c models.Collection) ([]*models.ContentRecord, error)
	Get(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error)
	// GetForUpdate is Get with a row lock; only meaningful inside a transaction.
	GetForUpdate(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error)
	Insert(ctx context.Context, rec *models.ContentRecord) error
	// Update writes rec if the stored version still equals rec.Version and
	// bumps rec.Version on success. A stale version yields common.ErrVersionConflict.
	Update(ctx context.Context, rec *models.ContentRecord) error
	Delete(ctx context.Context, c models.Collection, id string) error
	// ImageInUse reports whether any record of any collection points at url.
	ImageInUse(ctx context.Context, url string) (bool, error)
}
