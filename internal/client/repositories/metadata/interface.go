package metadata

import (
	"context"
)

// KeyRefreshToken holds the refresh token remembered between CLI runs.
const KeyRefreshToken = "refresh_token"

// Repository is a small local key/value store. Get returns a nil value and
// no error for an absent key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
