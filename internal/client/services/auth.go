// Package services contains the CLI's application services. AuthService
// connects the API client, the session store and the local metadata store:
// it signs in and out, restores the session from the remembered refresh
// token and feeds every auth change to the session store.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/folio/internal/client/client"
	"github.com/dmitrijs2005/folio/internal/client/gate"
	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/folio/internal/client/session"
	"github.com/dmitrijs2005/folio/internal/logging"
)

type API interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
}

type SessionStore interface {
	Snapshot() session.Snapshot
	OnAuthChange(ctx context.Context, identity *models.Identity) error
	Logout(ctx context.Context) error
}

type AuthService struct {
	api    API
	store  SessionStore
	meta   metadata.Repository
	logger logging.Logger
}

func NewAuthService(api API, store SessionStore, meta metadata.Repository, logger logging.Logger) *AuthService {
	return &AuthService{api: api, store: store, meta: meta, logger: logger.With("module", "auth")}
}

// RememberTokens persists the refresh token. It is meant to be installed as
// the API client's OnTokens hook so rotations are saved too.
func (s *AuthService) RememberTokens(tp models.TokenPair) {
	if err := s.meta.Set(context.Background(), metadata.KeyRefreshToken, []byte(tp.RefreshToken)); err != nil {
		s.logger.Warn(context.Background(), "could not remember refresh token", "error", err)
	}
}

func (s *AuthService) forget(ctx context.Context) {
	if err := s.meta.Delete(ctx, metadata.KeyRefreshToken); err != nil {
		s.logger.Warn(ctx, "could not forget refresh token", "error", err)
	}
}

// SignIn authenticates and resolves the role. Anyone but an admin is signed
// out again and gets gate.ErrNotAuthorized.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (session.Snapshot, error) {
	sess, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return s.store.Snapshot(), err
	}

	identity := sess.Identity
	if err := s.store.OnAuthChange(ctx, &identity); err != nil {
		s.signOutQuietly(ctx)
		return s.store.Snapshot(), err
	}

	snap := s.store.Snapshot()
	if gate.Evaluate(snap) != gate.Admit {
		s.signOutQuietly(ctx)
		return s.store.Snapshot(), gate.ErrNotAuthorized
	}
	return snap, nil
}

func (s *AuthService) signOutQuietly(ctx context.Context) {
	if err := s.SignOut(ctx); err != nil {
		s.logger.Warn(ctx, "sign out after rejected sign-in failed", "error", err)
		if err := s.store.OnAuthChange(ctx, nil); err != nil {
			s.logger.Warn(ctx, "clearing session failed", "error", err)
		}
	}
}

func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	return s.api.SignUp(ctx, email, password, displayName)
}

// Restore resumes the previous session from the remembered refresh token.
// Without a usable token the session resolves to signed out. A rejected
// token is forgotten; a transport failure is returned and the token kept.
func (s *AuthService) Restore(ctx context.Context) error {
	token, err := s.meta.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		s.logger.Warn(ctx, "could not read refresh token", "error", err)
	}
	if len(token) == 0 {
		return s.store.OnAuthChange(ctx, nil)
	}

	sess, err := s.api.Refresh(ctx, string(token))
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			s.forget(ctx)
			return s.store.OnAuthChange(ctx, nil)
		}
		if cerr := s.store.OnAuthChange(ctx, nil); cerr != nil {
			s.logger.Warn(ctx, "clearing session failed", "error", cerr)
		}
		return err
	}

	identity := sess.Identity
	return s.store.OnAuthChange(ctx, &identity)
}

func (s *AuthService) SignOut(ctx context.Context) error {
	if err := s.store.Logout(ctx); err != nil {
		return err
	}
	s.forget(ctx)
	return nil
}
