// Package profiles persists the per-identity role documents.
package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (uid, email, display_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, p.UID, p.Email, p.DisplayName, p.Role, p.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	query := `
		SELECT uid, email, display_name, role, created_at
		FROM profiles
		WHERE uid = $1
	`
	p := &models.Profile{}
	err := r.db.QueryRowContext(ctx, query, uid).Scan(&p.UID, &p.Email, &p.DisplayName, &p.Role, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return p, nil
}

// SetRole changes the role of an existing profile. Roles are only ever
// granted out of band by an operator.
func (r *PostgresRepository) SetRole(ctx context.Context, uid, role string) error {
	query := `
		UPDATE profiles SET role = $2
		WHERE uid = $1
	`
	res, err := r.db.ExecContext(ctx, query, uid, role)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
