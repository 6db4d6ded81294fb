package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/ids"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/folio/internal/server/storage"
	"github.com/microcosm-cc/bluemonday"
)

// FieldErrors maps a form field to the reason it was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error { return common.ErrorValidation }

// ErrImageCleanup is matched by every *ImageCleanupError.
var ErrImageCleanup = errors.New("image cleanup failed")

// ImageCleanupError reports that a delete stopped because the record's image
// could not be removed. The record itself is left untouched.
type ImageCleanupError struct {
	ImageURL string
	Err      error
}

func (e *ImageCleanupError) Error() string {
	return fmt.Sprintf("image cleanup failed for %s: %v", e.ImageURL, e.Err)
}

func (e *ImageCleanupError) Unwrap() error { return e.Err }

func (e *ImageCleanupError) Is(target error) bool { return target == ErrImageCleanup }

// Fields is the input of a create. Tags is the raw comma-delimited form value.
type Fields struct {
	Title       string
	Description string
	Tags        string
	Category    string
	TechStack   string
	Link        string
	LiveLink    string
	RepoLink    string
	ImageURL    string
}

// Patch is the input of an update: nil fields keep their stored value.
type Patch struct {
	Title       *string
	Description *string
	Tags        *string
	Category    *string
	TechStack   *string
	Link        *string
	LiveLink    *string
	RepoLink    *string
	ImageURL    *string

	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64
}

// ContentService manages the lifecycle of content records and the image
// objects they reference.
type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       storage.ObjectStore
	policy      *bluemonday.Policy
	logger      logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore, logger logging.Logger, rec metrics.Recorder) *ContentService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ContentService{
		db:          db,
		repomanager: m,
		store:       store,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With("module", "content"),
		metrics:     rec,
		now:         time.Now,
	}
}

// List returns every record of c, newest first. An empty collection yields
// an empty slice.
func (s *ContentService) List(ctx context.Context, c models.Collection) ([]*models.ContentRecord, error) {
	recs, err := s.repomanager.Content(s.db).List(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return recs, nil
}

func (s *ContentService) Get(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error) {
	if !ids.Valid(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Content(s.db).Get(ctx, c, id)
}

// Create validates f and stores a new record. The image, if any, must have
// been uploaded beforehand; only its public URL is stored.
func (s *ContentService) Create(ctx context.Context, c models.Collection, f Fields) (*models.ContentRecord, error) {
	now := s.now().UTC()
	rec := &models.ContentRecord{
		ID:         ids.NewAt(now),
		Collection: c,
		Tags:       []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	s.apply(rec, f)

	if err := s.validate(rec); err != nil {
		return nil, err
	}

	if err := s.repomanager.Content(s.db).Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", c, err)
	}

	s.metrics.RecordContentChange(string(c), "create")
	s.logger.Info(ctx, "record created", "collection", c, "id", rec.ID)
	return rec, nil
}

// Update merges p into the stored record. A replaced image is queued for
// deletion in the same transaction as the record write.
func (s *ContentService) Update(ctx context.Context, c models.Collection, id string, p Patch) (*models.ContentRecord, error) {
	if !ids.Valid(id) {
		return nil, common.ErrorNotFound
	}

	var out *models.ContentRecord
	var replaced string

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Content(tx)

		rec, err := repo.GetForUpdate(ctx, c, id)
		if err != nil {
			return err
		}
		if p.ExpectedVersion != nil && *p.ExpectedVersion != rec.Version {
			return common.ErrVersionConflict
		}

		oldImage := rec.ImageURL
		s.merge(rec, p)
		rec.UpdatedAt = s.now().UTC()

		if err := s.validate(rec); err != nil {
			return err
		}
		if err := repo.Update(ctx, rec); err != nil {
			return err
		}

		if oldImage != "" && oldImage != rec.ImageURL {
			if err := s.repomanager.Orphans(tx).Add(ctx, oldImage); err != nil {
				return fmt.Errorf("schedule image cleanup: %w", err)
			}
			replaced = oldImage
		}

		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replaced != "" {
		s.logger.Info(ctx, "replaced image scheduled for cleanup", "collection", c, "id", id, "url", replaced)
	}
	s.metrics.RecordContentChange(string(c), "update")
	s.logger.Info(ctx, "record updated", "collection", c, "id", id, "version", out.Version)
	return out, nil
}

// Delete removes the record's image and then the record. A missing image
// is not an error; any other storage failure aborts with *ImageCleanupError
// and leaves the record in place.
func (s *ContentService) Delete(ctx context.Context, c models.Collection, id string) error {
	if !ids.Valid(id) {
		return common.ErrorNotFound
	}

	repo := s.repomanager.Content(s.db)

	rec, err := repo.Get(ctx, c, id)
	if err != nil {
		return err
	}

	if rec.ImageURL != "" {
		err := s.store.Delete(ctx, rec.ImageURL)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrObjectNotFound):
			s.logger.Warn(ctx, "image already gone", "collection", c, "id", id, "url", rec.ImageURL)
		default:
			s.logger.Error(ctx, "image cleanup failed", "collection", c, "id", id, "url", rec.ImageURL, "error", err)
			return &ImageCleanupError{ImageURL: rec.ImageURL, Err: err}
		}
	}

	if err := repo.Delete(ctx, c, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// a concurrent delete got there first
			return nil
		}
		return fmt.Errorf("delete %s: %w", c, err)
	}

	s.metrics.RecordContentChange(string(c), "delete")
	s.logger.Info(ctx, "record deleted", "collection", c, "id", id)
	return nil
}

// clean strips markup and stores plain text. The policy escapes what it
// keeps, so the entities are decoded again; clients escape on render.
func (s *ContentService) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
}

func (s *ContentService) apply(rec *models.ContentRecord, f Fields) {
	s.merge(rec, Patch{
		Title:       &f.Title,
		Description: &f.Description,
		Tags:        &f.Tags,
		Category:    &f.Category,
		TechStack:   &f.TechStack,
		Link:        &f.Link,
		LiveLink:    &f.LiveLink,
		RepoLink:    &f.RepoLink,
		ImageURL:    &f.ImageURL,
	})
}

func (s *ContentService) merge(rec *models.ContentRecord, p Patch) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = s.clean(*v)
		}
	}
	set(&rec.Title, p.Title)
	set(&rec.Description, p.Description)
	set(&rec.Category, p.Category)
	set(&rec.TechStack, p.TechStack)

	if p.Tags != nil {
		rec.Tags = common.SplitList(s.clean(*p.Tags), ",")
	}

	// URLs are not HTML; sanitizing would escape query strings.
	setURL := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	setURL(&rec.Link, p.Link)
	setURL(&rec.LiveLink, p.LiveLink)
	setURL(&rec.RepoLink, p.RepoLink)
	setURL(&rec.ImageURL, p.ImageURL)
}

// validate checks rec against the rules of its collection and drops fields
// the collection does not carry.
func (s *ContentService) validate(rec *models.ContentRecord) error {
	errs := FieldErrors{}

	if rec.Title == "" {
		errs["title"] = "Title is required"
	}
	if rec.Description == "" {
		errs["description"] = "Description is required"
	}

	if !rec.Collection.HasTags() {
		rec.Tags = []string{}
	}

	switch rec.Collection {
	case models.LatestWorks:
		rec.LiveLink, rec.RepoLink, rec.TechStack = "", "", ""
		if rec.Link == "" {
			errs["link"] = "Link is required"
		}
	case models.Projects:
		rec.Link = ""
	default:
		rec.Link, rec.LiveLink, rec.RepoLink, rec.TechStack = "", "", "", ""
	}

	for field, v := range map[string]string{
		"link":     rec.Link,
		"liveLink": rec.LiveLink,
		"repoLink": rec.RepoLink,
		"imageUrl": rec.ImageURL,
	} {
		if v != "" && !isAbsoluteHTTP(v) {
			if _, taken := errs[field]; !taken {
				errs[field] = "Must be an absolute http(s) URL"
			}
		}
	}

	if rec.Collection.RequiresImage() && rec.ImageURL == "" {
		errs["image"] = "Please upload an image"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
