package httpapi

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/auth"
	"github.com/dmitrijs2005/folio/internal/server/metrics"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	userIDKey  ctxKey = "userID"
	profileKey ctxKey = "profile"
	infoKey    ctxKey = "requestInfo"
)

// requestInfo lets inner middleware report back to the outer logger.
type requestInfo struct {
	userID string
}

func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func profileFromContext(ctx context.Context) (*models.Profile, bool) {
	p, ok := ctx.Value(profileKey).(*models.Profile)
	return p, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument logs every request and records it in rec under its route
// pattern.
func instrument(logger logging.Logger, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			sr := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(sr, r.WithContext(context.WithValue(r.Context(), infoKey, info)))

			if sr.status == 0 {
				sr.status = http.StatusOK
			}
			d := time.Since(start)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			rec.RecordHTTPRequest(r.Method, route, sr.status, d)

			logger.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sr.status,
				"duration_ms", d.Milliseconds(),
				"user_id", info.userID,
			)
		})
	}
}

func recoverer(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error(r.Context(), "panic recovered",
						"panic", p,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(debug.Stack()),
					)
					writeAPIError(w, http.StatusInternalServerError, apiError{Code: "internal_error", Message: "Internal server error."})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate requires a valid bearer access token and puts the identity
// id into the request context.
func authenticate(secret []byte, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeaderName)
			if !strings.HasPrefix(header, common.BearerPrefix) {
				writeError(w, r, logger, common.ErrorUnauthorized)
				return
			}

			userID, err := auth.GetUserIDFromToken(strings.TrimPrefix(header, common.BearerPrefix), secret)
			if err != nil {
				if !errors.Is(err, common.ErrTokenExpired) {
					err = common.ErrInvalidToken
				}
				writeError(w, r, logger, err)
				return
			}

			if info, ok := r.Context().Value(infoKey).(*requestInfo); ok {
				info.userID = userID
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
		})
	}
}

// RequireAdmin resolves the caller's profile on every request. A caller
// without a profile is treated as signed out; any role but admin is
// forbidden.
func RequireAdmin(profiles ProfileReader, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userIDFromContext(r.Context())
			if !ok {
				writeError(w, r, logger, common.ErrorUnauthorized)
				return
			}

			p, err := profiles.Get(r.Context(), userID)
			if err != nil {
				if errors.Is(err, common.ErrorNotFound) {
					writeError(w, r, logger, common.ErrorUnauthorized)
					return
				}
				writeError(w, r, logger, err)
				return
			}
			if p.Role != common.RoleAdmin {
				writeError(w, r, logger, common.ErrorForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileKey, p)))
		})
	}
}
