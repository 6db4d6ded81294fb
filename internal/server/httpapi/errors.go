package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/dmitrijs2005/folio/internal/server/auth"
	"github.com/dmitrijs2005/folio/internal/server/services"
)

// apiError is the body of every error response.
type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Field   string            `json:"field,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, e apiError) {
	writeJSON(w, status, e)
}

var providerStatus = map[string]int{
	auth.CodeUserNotFound:       http.StatusUnauthorized,
	auth.CodeWrongPassword:      http.StatusUnauthorized,
	auth.CodeInvalidCredential:  http.StatusUnauthorized,
	auth.CodeInvalidIDToken:     http.StatusUnauthorized,
	auth.CodeTooManyRequests:    http.StatusTooManyRequests,
	auth.CodeUserDisabled:       http.StatusForbidden,
	auth.CodeEmailAlreadyInUse:  http.StatusConflict,
	auth.CodeInvalidEmail:       http.StatusBadRequest,
	auth.CodeWeakPassword:       http.StatusBadRequest,
	auth.CodeProviderNotEnabled: http.StatusBadRequest,
}

var providerField = map[string]string{
	auth.CodeInvalidEmail:      "email",
	auth.CodeEmailAlreadyInUse: "email",
	auth.CodeWeakPassword:      "password",
	auth.CodeWrongPassword:     "password",
}

// writeError translates a service error into a status code and body.
// Only unexpected failures are logged at error level.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var (
		pe  *auth.ProviderError
		fe  services.FieldErrors
		ie  *services.ImageError
		ice *services.ImageCleanupError
		mbe *http.MaxBytesError
	)

	switch {
	case errors.As(err, &pe):
		status, ok := providerStatus[pe.Code]
		if !ok {
			status = http.StatusUnauthorized
		}
		writeAPIError(w, status, apiError{Code: pe.Code, Message: pe.Message(), Field: providerField[pe.Code]})

	case errors.As(err, &ie):
		writeAPIError(w, http.StatusUnprocessableEntity, apiError{Code: "invalid_image", Message: ie.Message(), Field: "image"})

	case errors.As(err, &fe):
		keys := make([]string, 0, len(fe))
		for k := range fe {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e := apiError{Code: "validation_failed", Message: "Please correct the highlighted fields.", Fields: fe}
		if len(keys) > 0 {
			e.Field = keys[0]
			e.Message = fe[keys[0]]
		}
		writeAPIError(w, http.StatusUnprocessableEntity, e)

	case errors.As(err, &ice):
		logger.Warn(r.Context(), "image cleanup failed", "url", ice.ImageURL, "error", ice.Err)
		writeAPIError(w, http.StatusBadGateway, apiError{
			Code:    "image_cleanup_failed",
			Message: "The image could not be deleted. The record was kept; please retry.",
		})

	case errors.As(err, &mbe):
		writeAPIError(w, http.StatusRequestEntityTooLarge, apiError{Code: "too_large", Message: "Request body is too large."})

	case errors.Is(err, services.ErrProfileCreation):
		logger.Error(r.Context(), "profile creation failed", "error", err)
		writeAPIError(w, http.StatusServiceUnavailable, apiError{Code: "profile_creation_failed", Message: services.ErrProfileCreation.Error()})

	case errors.Is(err, services.ErrRelayRejected):
		writeAPIError(w, http.StatusBadGateway, apiError{Code: "relay_rejected", Message: "Something went wrong. Please try again."})

	case errors.Is(err, common.ErrVersionConflict):
		writeAPIError(w, http.StatusConflict, apiError{Code: "version_conflict", Message: "The record was changed by someone else. Reload and try again."})

	case errors.Is(err, common.ErrorNotFound):
		writeAPIError(w, http.StatusNotFound, apiError{Code: "not_found", Message: "Not found."})

	case errors.Is(err, common.ErrTokenExpired):
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: "token_expired", Message: "Access token expired."})

	case errors.Is(err, common.ErrRefreshTokenExpired):
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: "refresh_token_expired", Message: "Session expired. Please sign in again."})

	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorUnauthorized):
		writeAPIError(w, http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "Please sign in."})

	case errors.Is(err, common.ErrorForbidden):
		writeAPIError(w, http.StatusForbidden, apiError{Code: "forbidden", Message: "You are not authorized to access this page."})

	case errors.Is(err, common.ErrorValidation):
		writeAPIError(w, http.StatusBadRequest, apiError{Code: "bad_request", Message: err.Error()})

	case errors.Is(err, common.ErrUnavailable):
		logger.Error(r.Context(), "backend unavailable", "error", err)
		writeAPIError(w, http.StatusServiceUnavailable, apiError{Code: "unavailable", Message: "Service temporarily unavailable."})

	default:
		logger.Error(r.Context(), "request failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, apiError{Code: "internal_error", Message: "Internal server error."})
	}
}
