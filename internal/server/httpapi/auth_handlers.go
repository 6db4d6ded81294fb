package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/go-chi/chi/v5"
)

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	IDToken string `json:"idToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type updateMeRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	identity, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"identity": toIdentityJSON(identity)})
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(s))
}

func (h *handler) signInWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	s, err := h.auth.SignInWithGoogle(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(s))
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, h.logger, common.ErrInvalidToken)
		return
	}

	s, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(s))
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if req.RefreshToken != "" {
		if err := h.auth.SignOut(r.Context(), req.RefreshToken); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	identity, err := h.auth.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": toIdentityJSON(identity)})
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	identity, err := h.auth.UpdateProfile(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": toIdentityJSON(identity)})
}

// getProfile serves the caller's own profile to anyone signed in and any
// profile to admins.
func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	uid := chi.URLParam(r, "uid")

	if uid != userID {
		caller, err := h.profiles.Get(r.Context(), userID)
		if err != nil || caller.Role != common.RoleAdmin {
			writeError(w, r, h.logger, common.ErrorForbidden)
			return
		}
	}

	p, err := h.profiles.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileJSON(p))
}
