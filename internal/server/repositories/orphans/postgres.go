// Package orphans keeps the deletion queue for stored objects that are no
// longer referenced by any content record.
package orphans

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, url string) error {
	query := `
		INSERT INTO orphans (url)
		VALUES ($1)
	`
	if _, err := r.db.ExecContext(ctx, query, url); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Due(ctx context.Context, maxAttempts, limit int) ([]*models.Orphan, error) {
	query := `
		SELECT id, url, attempts, last_error, created_at
		FROM orphans
		WHERE attempts < $1
		ORDER BY id
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := make([]*models.Orphan, 0)
	for rows.Next() {
		o := &models.Orphan{}
		if err := rows.Scan(&o.ID, &o.URL, &o.Attempts, &o.LastError, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}

func (r *PostgresRepository) Done(ctx context.Context, id int64) error {
	query := `
		DELETE FROM orphans
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Failed(ctx context.Context, id int64, cause string) error {
	query := `
		UPDATE orphans SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, cause); err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}
