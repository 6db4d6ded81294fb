package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/services"
)

type trackRequest struct {
	Path       string `json:"path"`
	SessionID  string `json:"sessionId"`
	Country    string `json:"country"`
	Device     string `json:"device"`
	Source     string `json:"source"`
	DurationMS int64  `json:"durationMs"`
}

type contactRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Service     string `json:"service"`
	Description string `json:"description"`
}

func (h *handler) analyticsReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	pv := &models.PageView{
		Path:       req.Path,
		SessionID:  req.SessionID,
		Country:    orUnknown(req.Country),
		Device:     orUnknown(req.Device),
		Source:     orDirect(req.Source),
		DurationMS: req.DurationMS,
	}
	if err := h.analytics.Track(r.Context(), pv); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orUnknown(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func orDirect(s string) string {
	if s == "" {
		return "(direct)"
	}
	return s
}

func (h *handler) sendContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg, err := h.contact.Send(r.Context(), services.ContactMessage{
		Name:        req.Name,
		Email:       req.Email,
		Service:     req.Service,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}
