package market

import (
	"context"
	"strings"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine applies the purchase transition. It holds no state of its own.
type Engine struct {
	deps
	txs *TransactionStore
}

func NewEngine(backend store.Backend, txs *TransactionStore, opts ...Option) *Engine {
	return &Engine{deps: newDeps(backend, opts), txs: txs}
}

// Purchase marks the listing Sold and records the transaction in one unit of work.
// Preconditions are checked in this order and the first failure is returned:
// ErrAuthRequired, ErrNotFound, ErrSelfPurchase, ErrNotAvailable,
// ErrDeliveryLocationRequired.
func (e *Engine) Purchase(ctx context.Context, p Principal, listingID, deliveryLocation string) (*models.Transaction, error) {
	ctx, span := e.tracer.Start(ctx, "market.purchase",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("buyer.id", p.ID),
		),
	)
	defer span.End()

	tx, err := e.purchase(ctx, p, listingID, strings.TrimSpace(deliveryLocation))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Info("purchase rejected",
			zap.String("listing_id", listingID),
			zap.String("buyer_id", p.ID),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("transaction.id", tx.ID),
		attribute.String("seller.id", tx.SellerID),
		attribute.String("price", tx.Price.String()),
	)
	e.logger.Info("book purchased",
		zap.String("listing_id", listingID),
		zap.String("transaction_id", tx.ID),
		zap.String("buyer_id", tx.BuyerID),
		zap.String("seller_id", tx.SellerID),
		zap.Stringer("price", tx.Price),
	)
	e.publish(ctx, events.Event{
		Type:        events.TypeBookPurchased,
		AggregateID: listingID,
		Payload: events.PurchasePayload{
			TransactionID: tx.ID,
			ListingID:     tx.ListingID,
			BuyerID:       tx.BuyerID,
			SellerID:      tx.SellerID,
			Price:         tx.Price,
		},
	})
	return tx, nil
}

func (e *Engine) purchase(ctx context.Context, p Principal, listingID, location string) (*models.Transaction, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}

	var created *models.Transaction
	err := e.backend.Atomic(ctx, func(ctx context.Context, r store.Repos) error {
		listing, err := r.GetListing(ctx, listingID)
		if err != nil {
			return fromStore(err, "get listing")
		}
		if listing.SellerID == p.ID {
			return ErrSelfPurchase
		}
		if listing.Status != models.ListingAvailable {
			return ErrNotAvailable
		}
		if location == "" {
			return ErrDeliveryLocationRequired
		}

		tx := e.txs.create(listing, p, location)
		listing.Status = models.ListingSold
		listing.UpdatedAt = tx.CreatedAt
		if err := r.UpdateListing(ctx, listing); err != nil {
			return fromStore(err, "mark listing sold")
		}
		if err := r.InsertTransaction(ctx, tx); err != nil {
			return fromStore(err, "insert transaction")
		}
		created = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
