package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/server/models"
	"github.com/dmitrijs2005/folio/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// collectionParam accepts both "case_studies" and "case-studies".
func collectionParam(r *http.Request) (models.Collection, bool) {
	return models.ParseCollection(strings.ReplaceAll(chi.URLParam(r, "collection"), "-", "_"))
}

func (h *handler) listContent(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	recs, err := h.content.List(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]recordJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *handler) getContent(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	rec, err := h.content.Get(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (h *handler) createContent(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.content.Create(r.Context(), c, req.fields())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordJSON(rec))
}

func (h *handler) updateContent(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rec, err := h.content.Update(r.Context(), c, chi.URLParam(r, "id"), req.patch())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordJSON(rec))
}

func (h *handler) deleteContent(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	if err := h.content.Delete(r.Context(), c, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadImage ingests the multipart "image" part and answers with the URL
// to put into the record's imageUrl.
func (h *handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionParam(r)
	if !ok {
		writeError(w, r, h.logger, common.ErrorNotFound)
		return
	}

	// room for the multipart envelope on top of the image itself
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)

	file, header, err := r.FormFile("image")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, h.logger, err)
			return
		}
		writeError(w, r, h.logger, services.FieldErrors{"image": "Please choose an image"})
		return
	}
	defer file.Close()

	url, err := h.images.Ingest(r.Context(), c, header.Filename, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"imageUrl": url})
}
