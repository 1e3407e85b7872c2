package httpapi

import (
	"net/http"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	seq, err := h.txs.Query(r.Context(), h.session.CurrentPrincipal(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, pageSize := pageParams(r)
	respondJSON(w, http.StatusOK, store.Paginate(seq, page, pageSize))
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	p := h.session.CurrentPrincipal(r.Context())
	tx, err := h.txs.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (h *Handler) updateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.TransactionStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.session.CurrentPrincipal(r.Context())
	tx, err := h.txs.UpdateStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (h *Handler) setPickupLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PickupLocation string `json:"pickup_location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.session.CurrentPrincipal(r.Context())
	tx, err := h.txs.SetPickupLocation(r.Context(), p, chi.URLParam(r, "id"), req.PickupLocation)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}
