package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/auth"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/content"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/market"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// IdempotencyStore maps a client idempotency key to the transaction it produced.
// Lookup returns redisx.ErrPending while the key is claimed but not yet resolved.
type IdempotencyStore interface {
	Claim(ctx context.Context, principalID, key string) (bool, error)
	Lookup(ctx context.Context, principalID, key string) (string, bool, error)
	Remember(ctx context.Context, principalID, key, txID string) error
	Release(ctx context.Context, principalID, key string) error
}

type Deps struct {
	Listings     *market.ListingStore
	Transactions *market.TransactionStore
	Engine       *market.Engine
	Accounts     *auth.Service
	Content      *content.Service
	// Idempotency is optional; without it Idempotency-Key headers are ignored.
	Idempotency IdempotencyStore
	Logger      *zap.Logger
}

type Handler struct {
	listings *market.ListingStore
	txs      *market.TransactionStore
	engine   *market.Engine
	accounts *auth.Service
	content  *content.Service
	idem     IdempotencyStore
	session  market.SessionProvider
	logger   *zap.Logger
}

func NewRouter(d Deps) *chi.Mux {
	logger := logging.OrNop(d.Logger)
	h := &Handler{
		listings: d.Listings,
		txs:      d.Transactions,
		engine:   d.Engine,
		accounts: d.Accounts,
		content:  d.Content,
		idem:     d.Idempotency,
		session:  market.ContextSession{},
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/auth/signup", h.signup)
	r.Post("/auth/login", h.login)
	r.Get("/me", h.me)
	r.Put("/me/location", h.updateLocation)

	r.Route("/listings", func(r chi.Router) {
		r.Get("/", h.listListings)
		r.Post("/", h.createListing)
		r.Get("/{id}", h.getListing)
		r.Patch("/{id}", h.updateListing)
		r.Delete("/{id}", h.deleteListing)
		r.Post("/{id}/purchase", h.purchase)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.listTransactions)
		r.Get("/{id}", h.getTransaction)
		r.Put("/{id}/status", h.updateTransactionStatus)
		r.Put("/{id}/pickup", h.setPickupLocation)
	})

	r.Get("/content", h.getContent)
	r.Put("/content/{key}", h.putContent)

	return r
}
