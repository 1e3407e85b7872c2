package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) getContent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.content.All(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) putContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.session.CurrentPrincipal(r.Context())
	entry, err := h.content.Set(r.Context(), p, chi.URLParam(r, "key"), req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
