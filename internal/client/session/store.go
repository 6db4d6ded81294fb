// Package session holds the signed-in identity and its role for the admin
// client and tells subscribers about every change.
//
// The role is read from the identity's profile each time the auth state
// changes. A missing or unreadable profile resolves to signed out, so a
// failure never grants access.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
)

type ProfileFetcher interface {
	Profile(ctx context.Context, uid string) (*models.Profile, error)
}

type SignOuter interface {
	SignOut(ctx context.Context) error
}

// Snapshot is an immutable view of the session. Identity is nil when
// signed out; Loading is true until the first auth state is resolved.
type Snapshot struct {
	Identity *models.Identity
	Role     string
	Loading  bool
}

type listener struct {
	id int
	fn func(Snapshot)
}

type Store struct {
	profiles ProfileFetcher
	signer   SignOuter
	logger   logging.Logger

	mu        sync.Mutex
	state     Snapshot
	listeners []listener
	nextID    int
	// gen discards profile fetches overtaken by a later auth change.
	gen uint64
}

func NewStore(profiles ProfileFetcher, signer SignOuter, logger logging.Logger) *Store {
	return &Store{
		profiles: profiles,
		signer:   signer,
		logger:   logger.With("module", "session"),
		state:    Snapshot{Loading: true},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every later transition. Listeners run
// synchronously, in subscription order, on the goroutine that changed the
// state.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// set replaces the state unless a newer auth change has started since gen
// was taken, and notifies listeners.
func (s *Store) set(gen uint64, next Snapshot) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	s.state = next
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.mu.Unlock()

	for _, l := range ls {
		l.fn(next)
	}
	return true
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

// OnAuthChange resolves the role of identity and publishes the result. A
// nil identity signs out. A profile that cannot be found, or cannot be read,
// resolves to signed out; read errors are also returned. A cancelled ctx
// leaves the previous state in place.
func (s *Store) OnAuthChange(ctx context.Context, identity *models.Identity) error {
	gen := s.begin()

	if identity == nil {
		s.set(gen, Snapshot{})
		return nil
	}

	p, err := s.profiles.Profile(ctx, identity.ID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.set(gen, Snapshot{})
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "no profile for signed-in identity", "uid", identity.ID)
			return nil
		}
		s.logger.Error(ctx, "profile lookup failed", "uid", identity.ID, "error", err)
		return err
	}

	id := *identity
	if p.DisplayName != "" {
		id.DisplayName = p.DisplayName
	}
	role := p.Role
	if role == "" {
		role = common.RoleUser
	}

	s.set(gen, Snapshot{Identity: &id, Role: role})
	return nil
}

// Logout signs out remotely and clears the session. On failure the state is
// kept.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.signer.SignOut(ctx); err != nil {
		s.logger.Error(ctx, "sign out failed", "error", err)
		return err
	}
	s.set(s.begin(), Snapshot{})
	return nil
}
