// Package services contains server-side business logic. AuthService owns
// identities and tokens; ProfileWriter, ContentService, ImageService,
// AnalyticsService and ContactService build on top of it.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/dbx"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/auth"
	"github.com/dmitrijs2005/folio/internal/server/config"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/repositories/repomanager"
)

const (
	minPasswordLength = 6

	// LockoutThreshold consecutive wrong passwords lock an email for LockoutDuration.
	LockoutThreshold = 5
	LockoutDuration  = 15 * time.Minute
)

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is what a successful sign-in or refresh hands back to the client.
type Session struct {
	TokenPair
	Identity *models.Identity
}

// AuthService provides the auth provider operations: sign-up, password and
// Google sign-in, refresh token rotation, sign-out and identity updates.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	hasher                       auth.PasswordHasher
	google                       auth.IDTokenVerifier
	profiles                     *ProfileWriter
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, hasher auth.PasswordHasher,
	google auth.IDTokenVerifier, profiles *ProfileWriter, logger logging.Logger) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		hasher:                       hasher,
		google:                       google,
		profiles:                     profiles,
		logger:                       logger.With("module", "auth"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a password identity and writes its profile. When the
// profile write fails the identity still exists; the next sign-in repairs
// the missing profile.
func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error) {
	email = normalizeEmail(email)
	if !emailRe.MatchString(email) {
		return nil, auth.NewProviderError(auth.CodeInvalidEmail, nil)
	}
	if len(password) < minPasswordLength {
		return nil, auth.NewProviderError(auth.CodeWeakPassword, nil)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity, err := s.repomanager.Identities(s.db).Create(ctx, &models.Identity{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		Provider:     models.ProviderPassword,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, auth.NewProviderError(auth.CodeEmailAlreadyInUse, nil)
		}
		return nil, fmt.Errorf("error creating identity: %w", err)
	}

	s.logger.Info(ctx, "identity registered", "user_id", identity.ID)

	if _, err := s.profiles.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// SignIn checks email and password. Wrong passwords count towards a lockout;
// a locked email is refused before the password is even looked at.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if !emailRe.MatchString(email) {
		return nil, auth.NewProviderError(auth.CodeInvalidEmail, nil)
	}

	identities := s.repomanager.Identities(s.db)

	until, err := identities.LockedUntil(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error reading lockout: %w", err)
	}
	if until.After(s.now()) {
		return nil, auth.NewProviderError(auth.CodeTooManyRequests, nil)
	}

	identity, err := identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, auth.NewProviderError(auth.CodeUserNotFound, nil)
		}
		return nil, fmt.Errorf("error searching identity: %w", err)
	}
	if identity.Disabled {
		return nil, auth.NewProviderError(auth.CodeUserDisabled, nil)
	}
	if identity.PasswordHash == "" {
		// social identity
		return nil, auth.NewProviderError(auth.CodeInvalidCredential, nil)
	}

	ok, err := s.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		if err := identities.RegisterFailure(ctx, email, LockoutThreshold, LockoutDuration); err != nil {
			s.logger.Warn(ctx, "failed to record sign-in failure", "error", err)
		}
		return nil, auth.NewProviderError(auth.CodeWrongPassword, nil)
	}
	if err := identities.ResetFailures(ctx, email); err != nil {
		s.logger.Warn(ctx, "failed to reset sign-in failures", "error", err)
	}

	return s.startSession(ctx, identity)
}

// SignInWithGoogle verifies a Google ID token and signs in the matching
// identity, creating it on first use.
func (s *AuthService) SignInWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	if s.google == nil {
		return nil, auth.NewProviderError(auth.CodeProviderNotEnabled, nil)
	}

	g, err := s.google.Verify(ctx, idToken)
	if err != nil {
		var pe *auth.ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, auth.NewProviderError(auth.CodeInvalidIDToken, err)
	}

	identities := s.repomanager.Identities(s.db)
	email := normalizeEmail(g.Email)

	identity, err := identities.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		identity, err = identities.Create(ctx, &models.Identity{
			Email:       email,
			DisplayName: g.Name,
			Provider:    models.ProviderGoogle,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			// lost a race with a concurrent first sign-in
			identity, err = identities.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("error resolving identity: %w", err)
	}
	if identity.Disabled {
		return nil, auth.NewProviderError(auth.CodeUserDisabled, nil)
	}

	return s.startSession(ctx, identity)
}

// Refresh validates a refresh token, rotates it transactionally, and returns
// a fresh session. Expired tokens yield common.ErrRefreshTokenExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	identity, err := s.repomanager.Identities(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching identity: %w", err)
	}
	if identity.Disabled {
		return nil, auth.NewProviderError(auth.CodeUserDisabled, nil)
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)
		if err := repoTx.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, identity.ID, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return &Session{TokenPair: *pair, Identity: identity}, nil
}

// SignOut revokes refreshToken. Unknown tokens are not an error.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, identityID string) (*models.Identity, error) {
	return s.repomanager.Identities(s.db).GetByID(ctx, identityID)
}

// UpdateProfile changes the display name of the identity. The profile
// document keeps the name it was created with.
func (s *AuthService) UpdateProfile(ctx context.Context, identityID, displayName string) (*models.Identity, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, FieldErrors{"displayName": "Display name is required"}
	}

	repo := s.repomanager.Identities(s.db)
	if err := repo.UpdateDisplayName(ctx, identityID, displayName); err != nil {
		return nil, err
	}
	return repo.GetByID(ctx, identityID)
}

// startSession repairs a missing profile and mints tokens. A profile that
// still cannot be written does not block sign-in: clients resolve the role
// from the profile and fail closed without one.
func (s *AuthService) startSession(ctx context.Context, identity *models.Identity) (*Session, error) {
	if _, err := s.profiles.EnsureExists(ctx, identity); err != nil {
		s.logger.Warn(ctx, "profile unavailable at sign-in", "user_id", identity.ID, "error", err)
	}

	pair, err := s.generateTokenPair(ctx, identity.ID, s.db)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "signed in", "user_id", identity.ID, "provider", identity.Provider)
	return &Session{TokenPair: *pair, Identity: identity}, nil
}

func (s *AuthService) generateAccessToken(userID string) (string, error) {
	return auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *AuthService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *AuthService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GrantAdmin gives the identity registered under email the admin role,
// writing its profile first when it is missing. Roles are never granted
// over the API; this backs the server's -grant-admin flag.
func (s *AuthService) GrantAdmin(ctx context.Context, email string) error {
	identity, err := s.repomanager.Identities(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("error searching identity: %w", err)
	}
	if _, err := s.profiles.EnsureExists(ctx, identity); err != nil {
		return err
	}
	if err := s.repomanager.Profiles(s.db).SetRole(ctx, identity.ID, common.RoleAdmin); err != nil {
		return fmt.Errorf("error setting role: %w", err)
	}
	s.logger.Info(ctx, "admin role granted", "user_id", identity.ID)
	return nil
}
