// Package content provides the PostgreSQL repository for content records.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
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

const selectRecord = `
		SELECT collection, id, title, description, tags, category, tech_stack,
		       link, live_link, repo_link, image_url, created_at, updated_at, version
		FROM content_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.ContentRecord, error) {
	rec := &models.ContentRecord{}
	var tags []byte
	err := s.Scan(&rec.Collection, &rec.ID, &rec.Title, &rec.Description, &tags, &rec.Category, &rec.TechStack,
		&rec.Link, &rec.LiveLink, &rec.RepoLink, &rec.ImageURL, &rec.CreatedAt, &rec.UpdatedAt, &rec.Version)
	if err != nil {
		return nil, err
	}
	rec.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &rec.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return rec, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *PostgresRepository) List(ctx context.Context, c models.Collection) ([]*models.ContentRecord, error) {
	query := selectRecord + `
		WHERE collection = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, string(c))
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	result := make([]*models.ContentRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return result, nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, c models.Collection, id string) (*models.ContentRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, string(c), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return rec, nil
}

func (r *PostgresRepository) Get(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error) {
	return r.get(ctx, selectRecord+`
		WHERE collection = $1 AND id = $2
	`, c, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error) {
	return r.get(ctx, selectRecord+`
		WHERE collection = $1 AND id = $2
		FOR UPDATE
	`, c, id)
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.ContentRecord) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	query := `
		INSERT INTO content_records (collection, id, title, description, tags, category, tech_stack,
		                             link, live_link, repo_link, image_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.ExecContext(ctx, query, string(rec.Collection), rec.ID, rec.Title, rec.Description, tags,
		rec.Category, rec.TechStack, rec.Link, rec.LiveLink, rec.RepoLink, rec.ImageURL,
		rec.CreatedAt, rec.UpdatedAt, rec.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.ContentRecord) error {
	tags, err := encodeTags(rec.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	query := `
		UPDATE content_records SET
		    title = $3, description = $4, tags = $5::jsonb, category = $6, tech_stack = $7,
		    link = $8, live_link = $9, repo_link = $10, image_url = $11, updated_at = $12,
		    version = version + 1
		WHERE collection = $1 AND id = $2 AND version = $13
		RETURNING version
	`
	var version int64
	err = r.db.QueryRowContext(ctx, query, string(rec.Collection), rec.ID, rec.Title, rec.Description, tags,
		rec.Category, rec.TechStack, rec.Link, rec.LiveLink, rec.RepoLink, rec.ImageURL,
		rec.UpdatedAt, rec.Version).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	rec.Version = version
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, c models.Collection, id string) error {
	query := `
		DELETE FROM content_records
		WHERE collection = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query, string(c), id)
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

func (r *PostgresRepository) ImageInUse(ctx context.Context, url string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM content_records WHERE image_url = $1)
	`
	var used bool
	if err := r.db.QueryRowContext(ctx, query, url).Scan(&used); err != nil {
		return false, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return used, nil
}
