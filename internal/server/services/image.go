package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/folio/internal/ids"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/imaging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/storage"
)

// ImageService compresses uploaded images and stores them as objects.
type ImageService struct {
	store   storage.ObjectStore
	opts    imaging.Options
	logger  logging.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

func NewImageService(store storage.ObjectStore, opts imaging.Options, logger logging.Logger, rec metrics.Recorder) *ImageService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &ImageService{
		store:   store,
		opts:    opts,
		logger:  logger.With("module", "images"),
		metrics: rec,
		now:     time.Now,
	}
}

// Ingest compresses the image read from r and uploads it under a fresh key
// in the collection's prefix. It returns the public URL of the object.
// Compression failures are reported as FieldErrors on "image" wrapping the
// imaging error; nothing is uploaded in that case.
func (s *ImageService) Ingest(ctx context.Context, c models.Collection, filename string, r io.Reader) (string, error) {
	res, err := imaging.Compress(r, s.opts)
	if err != nil {
		s.metrics.RecordImageIngest("rejected", 0)
		s.logger.Info(ctx, "image rejected", "filename", filename, "error", err)
		return "", &ImageError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := ids.ObjectKey(string(c), s.now(), ".jpg")
	url, err := s.store.Put(ctx, key, imaging.ContentType, res.Data)
	if err != nil {
		s.metrics.RecordImageIngest("upload_failed", 0)
		return "", fmt.Errorf("upload image: %w", err)
	}

	s.metrics.RecordImageIngest("ok", len(res.Data))
	s.logger.Info(ctx, "image stored",
		"filename", filename, "key", key, "bytes", len(res.Data),
		"width", res.Width, "height", res.Height, "quality", res.Quality)
	return url, nil
}

// ImageError is a rejected upload: the file could not be decoded or could
// not be brought under the size limit.
type ImageError struct {
	Err error
}

func (e *ImageError) Error() string { return "invalid image: " + e.Err.Error() }

func (e *ImageError) Unwrap() error { return e.Err }

// Message is the text shown next to the image field.
func (e *ImageError) Message() string {
	switch {
	case errors.Is(e.Err, imaging.ErrTooLarge):
		return "Image is too large even after compression"
	case errors.Is(e.Err, imaging.ErrUnsupportedImage):
		return "Unsupported image format"
	}
	return "Failed to process image. Please try a different file."
}
