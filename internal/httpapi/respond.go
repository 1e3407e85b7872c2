package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/auth"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON treats an empty body as an empty request.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrAuthRequired),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrForbidden), errors.Is(err, market.ErrSelfPurchase):
		return http.StatusForbidden
	case errors.Is(err, market.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrNotAvailable), errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, errKeyReused), errors.Is(err, errKeyInFlight):
		return http.StatusConflict
	case errors.Is(err, market.ErrDeliveryLocationRequired), errors.Is(err, market.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}
