// Package ids generates identifiers for content records and stored objects.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable record id: a millisecond
// timestamp prefix followed by a random suffix.
func New() string {
	return NewAt(time.Now())
}

// NewAt is New with an explicit timestamp.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Valid reports whether s parses as a record id.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ObjectKey builds the storage key for an uploaded image:
// <prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func ObjectKey(prefix string, t time.Time, ext string) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s", prefix, t.Year(), int(t.Month()), t.Day(), uuid.NewString(), ext)
}
