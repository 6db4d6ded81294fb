// Package storage stores image objects and hands back their public URLs.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Delete when the object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the object storage contract used by the content services.
type ObjectStore interface {
	// Put stores data under key and returns the public URL of the object.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Delete removes the object behind url. Absent objects yield ErrObjectNotFound.
	Delete(ctx context.Context, url string) error
}
