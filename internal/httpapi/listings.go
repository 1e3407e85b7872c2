package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/redisx"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := market.Filter{
		Category: models.Category(q.Get("category")),
		Status:   models.ListingStatus(q.Get("status")),
		Search:   q.Get("q"),
		SellerID: q.Get("seller"),
		Newest:   q.Get("sort") == "newest",
	}

	seq, err := h.listings.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, pageSize := pageParams(r)
	respondJSON(w, http.StatusOK, store.Paginate(seq, page, pageSize))
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.listings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var draft market.Draft
	if err := decodeJSON(r, &draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	listing, err := h.listings.Create(r.Context(), h.session.CurrentPrincipal(r.Context()), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, listing)
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	var patch market.Patch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.session.CurrentPrincipal(r.Context())
	listing, err := h.listings.Update(r.Context(), p, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	p := h.session.CurrentPrincipal(r.Context())
	if err := h.listings.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	keyPollInterval = 25 * time.Millisecond
	keyWait         = 5 * time.Second
)

var (
	errKeyReused   = errors.New("idempotency key already used for another listing")
	errKeyInFlight = errors.New("a request with this idempotency key is still in progress")
)

// purchase honours an Idempotency-Key header. The key is claimed before purchasing, so
// a retry that races the first request waits for it and gets the same transaction back.
func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeliveryLocation string `json:"delivery_location"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	p := h.session.CurrentPrincipal(ctx)
	listingID := chi.URLParam(r, "id")
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	useKey := key != "" && h.idem != nil && p.Authenticated()

	if useKey {
		tx, err := h.claimKey(ctx, p, key, listingID)
		switch {
		case tx != nil:
			w.Header().Set("Idempotent-Replayed", "true")
			respondJSON(w, http.StatusOK, tx)
			return
		case errors.Is(err, errKeyReused), errors.Is(err, errKeyInFlight):
			h.fail(w, r, err)
			return
		case err != nil:
			h.logger.Warn("claim idempotency key", zap.Error(err))
			useKey = false
		}
	}

	tx, err := h.engine.Purchase(ctx, p, listingID, req.DeliveryLocation)
	if err != nil {
		if useKey {
			if err := h.idem.Release(context.WithoutCancel(ctx), p.ID, key); err != nil {
				h.logger.Warn("release idempotency key", zap.Error(err))
			}
		}
		h.fail(w, r, err)
		return
	}

	if useKey {
		if err := h.idem.Remember(context.WithoutCancel(ctx), p.ID, key, tx.ID); err != nil {
			h.logger.Warn("remember idempotency key", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}
	respondJSON(w, http.StatusCreated, tx)
}

// claimKey returns (nil, nil) once this request holds the key, or the transaction an
// earlier request with the same key produced.
func (h *Handler) claimKey(ctx context.Context, p market.Principal, key, listingID string) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, keyWait)
	defer cancel()

	ticker := time.NewTicker(keyPollInterval)
	defer ticker.Stop()

	for {
		claimed, err := h.idem.Claim(ctx, p.ID, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errKeyInFlight
			}
			return nil, err
		}
		if claimed {
			return nil, nil
		}

		txID, ok, err := h.idem.Lookup(ctx, p.ID, key)
		switch {
		case errors.Is(err, redisx.ErrPending), err == nil && !ok:
			// still in flight, or released after a failed purchase
		case err != nil:
			if ctx.Err() != nil {
				return nil, errKeyInFlight
			}
			return nil, err
		default:
			tx, err := h.txs.Get(ctx, p, txID)
			if err != nil {
				return nil, fmt.Errorf("replay transaction: %w", err)
			}
			if tx.ListingID != listingID {
				return nil, errKeyReused
			}
			return tx, nil
		}

		select {
		case <-ctx.Done():
			return nil, errKeyInFlight
		case <-ticker.C:
		}
	}
}
