package identities

import (
	"context"
	"time"

	"github.com/dmitrijs2005/folio/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error

	// Failed sign-in bookkeeping.
	RegisterFailure(ctx context.Context, email string, threshold int, lockFor time.Duration) error
	LockedUntil(ctx context.Context, email string) (time.Time, error)
	ResetFailures(ctx context.Context, email string) error
}
