package profiles

import (
	"context"

	"github.com/dmitrijs2005/folio/internal/server/models"
)

type Repository interface {
	// Create inserts a profile. An existing profile for the same uid yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, p *models.Profile) error
	Get(ctx context.Context, uid string) (*models.Profile, error)
	SetRole(ctx context.Context, uid, role string) error
}
