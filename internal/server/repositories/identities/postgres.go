// Package identities stores authenticated principals and their failed
// sign-in counters in PostgreSQL.
package identities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

// Create inserts identity. A duplicate email yields common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	query :=
		`INSERT INTO identities (id, email, display_name, password_hash, provider)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		identity.ID, identity.Email, identity.DisplayName, identity.PasswordHash, identity.Provider).Scan(&identity.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return identity, nil
}

const selectIdentity = `SELECT id, email, display_name, password_hash, provider, disabled, created_at FROM identities`

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Identity, error) {
	i := &models.Identity{}
	err := row.Scan(&i.ID, &i.Email, &i.DisplayName, &i.PasswordHash, &i.Provider, &i.Disabled, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return i, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectIdentity+`
		 WHERE lower(email) = lower($1)
		 `, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectIdentity+`
		 WHERE id = $1
		 `, id))
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	query :=
		`UPDATE identities SET display_name = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, displayName)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// RegisterFailure counts a failed sign-in for email. Once the count reaches
// threshold the address is locked for lockFor and the counter restarts.
func (r *PostgresRepository) RegisterFailure(ctx context.Context, email string, threshold int, lockFor time.Duration) error {
	query :=
		`INSERT INTO login_attempts (email, failures) VALUES (lower($1), 1)
		 ON CONFLICT (email) DO UPDATE SET
		   failures = CASE WHEN login_attempts.failures + 1 >= $2 THEN 0 ELSE login_attempts.failures + 1 END,
		   locked_until = CASE WHEN login_attempts.failures + 1 >= $2 THEN $3 ELSE login_attempts.locked_until END
		 `

	if _, err := r.db.ExecContext(ctx, query, email, threshold, time.Now().Add(lockFor)); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

// LockedUntil returns the lock deadline for email, or the zero time.
func (r *PostgresRepository) LockedUntil(ctx context.Context, email string) (time.Time, error) {
	query :=
		`SELECT locked_until FROM login_attempts
		 WHERE email = lower($1)
		 `

	var until sql.NullTime
	err := r.db.QueryRowContext(ctx, query, email).Scan(&until)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return until.Time, nil
}

func (r *PostgresRepository) ResetFailures(ctx context.Context, email string) error {
	query :=
		`DELETE FROM login_attempts
		 WHERE email = lower($1)
		 `

	if _, err := r.db.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}
