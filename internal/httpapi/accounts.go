package httpapi

import (
	"net/http"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/auth"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Me(r.Context(), h.session.CurrentPrincipal(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.session.CurrentPrincipal(r.Context())
	user, err := h.accounts.UpdateLocation(r.Context(), p, req.Location)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
