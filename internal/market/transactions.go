package market

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"go.uber.org/zap"
)

type TransactionStore struct {
	deps
}

func NewTransactionStore(backend store.Backend, opts ...Option) *TransactionStore {
	return &TransactionStore{deps: newDeps(backend, opts)}
}

// create copies the sale terms from l as they are right now. It is only reachable
// through Engine.Purchase.
func (s *TransactionStore) create(l *models.Listing, buyer Principal, deliveryLocation string) *models.Transaction {
	now := s.now()
	return &models.Transaction{
		ID:               s.newID(),
		ListingID:        l.ID,
		BookTitle:        l.Title,
		BuyerID:          buyer.ID,
		BuyerName:        buyer.Name,
		SellerID:         l.SellerID,
		SellerName:       l.SellerName,
		Price:            l.Price,
		Status:           models.TransactionPending,
		DeliveryLocation: deliveryLocation,
		PickupLocation:   models.PickupPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func visibleTo(p Principal, t models.Transaction) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsAdmin || p.ID == t.BuyerID || p.ID == t.SellerID
}

// UpdateStatus lets an admin move a transaction to any status. Anonymous callers get
// ErrAuthRequired and other non-admins ErrForbidden.
func (s *TransactionStore) UpdateStatus(ctx context.Context, p Principal, id string, status models.TransactionStatus) (*models.Transaction, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}
	if !p.IsAdmin {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	var updated *models.Transaction
	err := s.backend.Atomic(ctx, func(ctx context.Context, r store.Repos) error {
		t, err := r.GetTransaction(ctx, id)
		if err != nil {
			return fromStore(err, "get transaction")
		}
		t.Status = status
		t.UpdatedAt = s.now()
		if err := r.UpdateTransaction(ctx, t); err != nil {
			return fromStore(err, "update transaction")
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction status changed",
		zap.String("transaction_id", id),
		zap.String("status", string(status)),
		zap.String("admin_id", p.ID),
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeTransactionStatusChanged,
		AggregateID: updated.ListingID,
		Payload:     changedPayload(updated, p),
	})
	return updated, nil
}

// SetPickupLocation records where the buyer can collect the book. Only the seller or
// an admin may set it.
func (s *TransactionStore) SetPickupLocation(ctx context.Context, p Principal, id, location string) (*models.Transaction, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}

	var updated *models.Transaction
	err := s.backend.Atomic(ctx, func(ctx context.Context, r store.Repos) error {
		t, err := r.GetTransaction(ctx, id)
		if err != nil {
			return fromStore(err, "get transaction")
		}
		if !visibleTo(p, *t) {
			return ErrNotFound
		}
		if !p.owns(t.SellerID) {
			return ErrForbidden
		}

		location = strings.TrimSpace(location)
		if location == "" {
			return invalid("pickup_location", "must not be empty")
		}

		t.PickupLocation = location
		t.UpdatedAt = s.now()
		if err := r.UpdateTransaction(ctx, t); err != nil {
			return fromStore(err, "update transaction")
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pickup location set",
		zap.String("transaction_id", id),
		zap.String("principal_id", p.ID),
	)
	s.publish(ctx, events.Event{
		Type:        events.TypePickupLocationSet,
		AggregateID: updated.ListingID,
		Payload:     changedPayload(updated, p),
	})
	return updated, nil
}

// Get hides transactions the principal is not a party to behind ErrNotFound.
func (s *TransactionStore) Get(ctx context.Context, p Principal, id string) (*models.Transaction, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}

	t, err := s.backend.GetTransaction(ctx, id)
	if err != nil {
		return nil, fromStore(err, "get transaction")
	}
	if !visibleTo(p, *t) {
		return nil, ErrNotFound
	}
	return t, nil
}

// Query yields every transaction for admins, the ones where p is buyer or seller for
// everyone else, and nothing for anonymous principals.
func (s *TransactionStore) Query(ctx context.Context, p Principal) (iter.Seq[models.Transaction], error) {
	if !p.Authenticated() {
		return func(func(models.Transaction) bool) {}, nil
	}

	txs, err := s.backend.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	return func(yield func(models.Transaction) bool) {
		for _, t := range txs {
			if visibleTo(p, t) && !yield(t) {
				return
			}
		}
	}, nil
}

func changedPayload(t *models.Transaction, p Principal) events.TransactionChangedPayload {
	return events.TransactionChangedPayload{
		TransactionID:  t.ID,
		Status:         string(t.Status),
		PickupLocation: t.PickupLocation,
		ChangedBy:      p.ID,
	}
}
