// Package httpapi exposes the folio services over HTTP: auth endpoints,
// public content listings, the admin content API behind RequireAdmin, the
// analytics report, page-view beacons and the contact relay.
package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type AuthService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*services.Session, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, identityID string) (*models.Identity, error)
	UpdateProfile(ctx context.Context, identityID, displayName string) (*models.Identity, error)
}

type ProfileReader interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
}

type ContentService interface {
	List(ctx context.Context, c models.Collection) ([]*models.ContentRecord, error)
	Get(ctx context.Context, c models.Collection, id string) (*models.ContentRecord, error)
	Create(ctx context.Context, c models.Collection, f services.Fields) (*models.ContentRecord, error)
	Update(ctx context.Context, c models.Collection, id string, p services.Patch) (*models.ContentRecord, error)
	Delete(ctx context.Context, c models.Collection, id string) error
}

type ImageService interface {
	Ingest(ctx context.Context, c models.Collection, filename string, r io.Reader) (string, error)
}

type AnalyticsService interface {
	Report(ctx context.Context) (*services.Report, error)
	Track(ctx context.Context, pv *models.PageView) error
}

type ContactService interface {
	Send(ctx context.Context, m services.ContactMessage) (string, error)
}

// Deps are the collaborators of the router. Limiters and Metrics may be nil.
type Deps struct {
	Auth      AuthService
	Profiles  ProfileReader
	Content   ContentService
	Images    ImageService
	Analytics AnalyticsService
	Contact   ContactService

	SecretKey string
	Logger    logging.Logger
	Metrics   metrics.Recorder
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// AuthLimiter guards sign-in and sign-up, PublicLimiter the anonymous
	// write endpoints.
	AuthLimiter   *RateLimiter
	PublicLimiter *RateLimiter
}

// MaxImageBytes caps a raw image upload.
const MaxImageBytes = 20 << 20

// maxJSONBytes caps every JSON request body.
const maxJSONBytes = 1 << 20

type handler struct {
	auth      AuthService
	profiles  ProfileReader
	content   ContentService
	images    ImageService
	analytics AnalyticsService
	contact   ContactService
	logger    logging.Logger
}

func limit(l *RateLimiter, route string) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware(route)
}

// NewRouter wires every route. Middleware order: instrument → recoverer,
// then per group authenticate → RequireAdmin.
func NewRouter(d Deps) http.Handler {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	logger := d.Logger.With("module", "http")

	h := &handler{
		auth:      d.Auth,
		profiles:  d.Profiles,
		content:   d.Content,
		images:    d.Images,
		analytics: d.Analytics,
		contact:   d.Contact,
		logger:    logger,
	}

	secret := []byte(d.SecretKey)
	authn := authenticate(secret, logger)

	r := chi.NewRouter()
	r.Use(instrument(logger, d.Metrics))
	r.Use(recoverer(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limit(d.AuthLimiter, "signup")).Post("/signup", h.signUp)
		r.With(limit(d.AuthLimiter, "signin")).Post("/signin", h.signIn)
		r.With(limit(d.AuthLimiter, "google")).Post("/google", h.signInWithGoogle)
		r.Post("/refresh", h.refresh)
		r.Post("/signout", h.signOut)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Get("/me", h.me)
			r.Patch("/me", h.updateMe)
		})
	})

	r.With(authn).Get("/api/profiles/{uid}", h.getProfile)

	r.Route("/api/content/{collection}", func(r chi.Router) {
		r.Get("/", h.listContent)
		r.Get("/{id}", h.getContent)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authn)
		r.Use(RequireAdmin(d.Profiles, logger))

		r.Route("/content/{collection}", func(r chi.Router) {
			r.Post("/", h.createContent)
			r.Patch("/{id}", h.updateContent)
			r.Delete("/{id}", h.deleteContent)
		})
		r.Post("/images/{collection}", h.uploadImage)
		r.Get("/analytics", h.analyticsReport)
	})

	r.With(limit(d.PublicLimiter, "track")).Post("/api/track", h.track)
	r.With(limit(d.PublicLimiter, "contact")).Post("/api/contact", h.sendContact)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, apiError{Code: "not_found", Message: "Not found."})
	})

	return r
}
