package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/imaging"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageIngest_StoresCompressedJPEG(t *testing.T) {
	store := &fakeStore{}
	s := NewImageService(store, imaging.DefaultOptions(), logging.Discard(), nil)
	s.now = func() time.Time { return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC) }

	url, err := s.Ingest(context.Background(), models.Projects, "shot.png", bytes.NewReader(pngBytes(t, 64, 48)))
	require.NoError(t, err)

	require.Len(t, store.puts, 1)
	for key, data := range store.puts {
		assert.True(t, strings.HasPrefix(key, "projects/2024/03/07/"), key)
		assert.True(t, strings.HasSuffix(key, ".jpg"), key)
		assert.Equal(t, "https://cdn.example.com/"+key, url)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, 64, cfg.Width)
	}
}

func TestImageIngest_RejectsGarbage(t *testing.T) {
	store := &fakeStore{}
	s := NewImageService(store, imaging.DefaultOptions(), logging.Discard(), nil)

	_, err := s.Ingest(context.Background(), models.Projects, "notes.txt", strings.NewReader("definitely not an image"))
	require.Error(t, err)

	var ie *ImageError
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, imaging.ErrUnsupportedImage)
	assert.Equal(t, "Unsupported image format", ie.Message())
	assert.Empty(t, store.puts)
}

func TestImageIngest_UploadFailure(t *testing.T) {
	store := &fakeStore{putErr: errors.New("bucket gone")}
	s := NewImageService(store, imaging.DefaultOptions(), logging.Discard(), nil)

	_, err := s.Ingest(context.Background(), models.LatestWorks, "a.png", bytes.NewReader(pngBytes(t, 8, 8)))
	require.Error(t, err)

	var ie *ImageError
	assert.False(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "bucket gone")
}

func TestImageError_Message(t *testing.T) {
	assert.Equal(t, "Image is too large even after compression", (&ImageError{Err: imaging.ErrTooLarge}).Message())
	assert.Equal(t, "Failed to process image. Please try a different file.", (&ImageError{Err: errors.New("x")}).Message())
}
