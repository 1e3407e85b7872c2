package market

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prices are stored as NUMERIC(12, 2).
const priceScale = 2

var maxPrice = decimal.New(1, 10)

type Draft struct {
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	Category    models.Category  `json:"category"`
	Condition   models.Condition `json:"condition"`
	Price       decimal.Decimal  `json:"price"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
}

func (d Draft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return invalid("title", "must not be empty")
	}
	if strings.TrimSpace(d.Author) == "" {
		return invalid("author", "must not be empty")
	}
	if !d.Category.Valid() {
		return invalid("category", fmt.Sprintf("unknown category %q", d.Category))
	}
	if !d.Condition.Valid() {
		return invalid("condition", fmt.Sprintf("unknown condition %q", d.Condition))
	}
	if !d.Price.IsPositive() {
		return invalid("price", "must be greater than zero")
	}
	if !d.Price.Equal(d.Price.Round(priceScale)) {
		return invalid("price", fmt.Sprintf("must have at most %d decimal places", priceScale))
	}
	if d.Price.GreaterThanOrEqual(maxPrice) {
		return invalid("price", "must be less than "+maxPrice.String())
	}
	return nil
}

// Patch holds the fields an update may change. Nil fields are left alone. The listing
// id and seller cannot be patched.
type Patch struct {
	Title       *string               `json:"title,omitempty"`
	Author      *string               `json:"author,omitempty"`
	Category    *models.Category      `json:"category,omitempty"`
	Condition   *models.Condition     `json:"condition,omitempty"`
	Price       *decimal.Decimal      `json:"price,omitempty"`
	Description *string               `json:"description,omitempty"`
	Image       *string               `json:"image,omitempty"`
	Status      *models.ListingStatus `json:"status,omitempty"`
}

func (p Patch) apply(l *models.Listing) error {
	d := Draft{
		Title:       l.Title,
		Author:      l.Author,
		Category:    l.Category,
		Condition:   l.Condition,
		Price:       l.Price,
		Description: l.Description,
		Image:       l.Image,
	}
	if p.Title != nil {
		d.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		d.Author = strings.TrimSpace(*p.Author)
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Condition != nil {
		d.Condition = *p.Condition
	}
	if p.Price != nil {
		d.Price = *p.Price
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Image != nil {
		d.Image = *p.Image
	}
	if err := d.validate(); err != nil {
		return err
	}

	l.Title, l.Author = d.Title, d.Author
	l.Category, l.Condition = d.Category, d.Condition
	l.Price = d.Price
	l.Description, l.Image = d.Description, d.Image
	return nil
}

type Filter struct {
	// Category matches listings of that category and listings marked Both. Empty or
	// All matches everything.
	Category models.Category
	Status   models.ListingStatus
	// Search is matched case-insensitively against title and author.
	Search   string
	SellerID string
	// Newest orders by creation time, most recent first, instead of insertion order.
	Newest bool
}

func (f Filter) validate() error {
	if f.Category != "" && f.Category != models.CategoryAll && !f.Category.Valid() {
		return invalid("category", fmt.Sprintf("unknown category %q", f.Category))
	}
	if f.Status != "" && !f.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	return nil
}

func (f Filter) matches(l models.Listing) bool {
	if f.Category != "" && f.Category != models.CategoryAll {
		if l.Category != f.Category && l.Category != models.CategoryBoth {
			return false
		}
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.SellerID != "" && l.SellerID != f.SellerID {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		if !strings.Contains(strings.ToLower(l.Title), search) &&
			!strings.Contains(strings.ToLower(l.Author), search) {
			return false
		}
	}
	return true
}

type ListingStore struct {
	deps
}

func NewListingStore(backend store.Backend, opts ...Option) *ListingStore {
	return &ListingStore{deps: newDeps(backend, opts)}
}

func (s *ListingStore) Create(ctx context.Context, p Principal, d Draft) (*models.Listing, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Author = strings.TrimSpace(d.Author)
	if err := d.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	listing := &models.Listing{
		ID:          s.newID(),
		Title:       d.Title,
		Author:      d.Author,
		Category:    d.Category,
		Condition:   d.Condition,
		Price:       d.Price,
		Description: d.Description,
		Image:       d.Image,
		SellerID:    p.ID,
		SellerName:  p.Name,
		Status:      models.ListingAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.backend.InsertListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.logger.Info("listing created",
		zap.String("listing_id", listing.ID),
		zap.String("seller_id", p.ID),
	)
	s.publish(ctx, events.Event{Type: events.TypeListingCreated, AggregateID: listing.ID, Payload: listing})
	return listing, nil
}

func (s *ListingStore) Get(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := s.backend.GetListing(ctx, id)
	if err != nil {
		return nil, fromStore(err, "get listing")
	}
	return listing, nil
}

// Update applies patch as a single read-modify-write. Only admins may change the
// status, and never to Sold: a listing becomes Sold only through a purchase.
func (s *ListingStore) Update(ctx context.Context, p Principal, id string, patch Patch) (*models.Listing, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}

	var updated *models.Listing
	err := s.backend.Atomic(ctx, func(ctx context.Context, r store.Repos) error {
		listing, err := r.GetListing(ctx, id)
		if err != nil {
			return fromStore(err, "get listing")
		}
		if !p.owns(listing.SellerID) {
			return ErrForbidden
		}

		if patch.Status != nil {
			if !p.IsAdmin {
				return ErrForbidden
			}
			switch {
			case !patch.Status.Valid():
				return invalid("status", fmt.Sprintf("unknown status %q", *patch.Status))
			case *patch.Status == models.ListingSold && listing.Status != models.ListingSold:
				return invalid("status", "a listing becomes Sold only through a purchase")
			}
			listing.Status = *patch.Status
		}
		if err := patch.apply(listing); err != nil {
			return err
		}

		listing.UpdatedAt = s.now()
		if err := r.UpdateListing(ctx, listing); err != nil {
			return fromStore(err, "update listing")
		}
		updated = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("listing updated",
		zap.String("listing_id", id),
		zap.String("principal_id", p.ID),
	)
	s.publish(ctx, events.Event{Type: events.TypeListingUpdated, AggregateID: id, Payload: updated})
	return updated, nil
}

// Delete removes the listing. Transactions referencing it keep their own copy of the
// book title, seller and price.
func (s *ListingStore) Delete(ctx context.Context, p Principal, id string) error {
	if !p.Authenticated() {
		return ErrAuthRequired
	}

	err := s.backend.Atomic(ctx, func(ctx context.Context, r store.Repos) error {
		listing, err := r.GetListing(ctx, id)
		if err != nil {
			return fromStore(err, "get listing")
		}
		if !p.owns(listing.SellerID) {
			return ErrForbidden
		}
		if err := r.DeleteListing(ctx, id); err != nil {
			return fromStore(err, "delete listing")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("listing deleted",
		zap.String("listing_id", id),
		zap.String("principal_id", p.ID),
	)
	s.publish(ctx, events.Event{
		Type:        events.TypeListingDeleted,
		AggregateID: id,
		Payload:     events.ListingDeletedPayload{ListingID: id, DeletedBy: p.ID},
	})
	return nil
}

// Query returns the listings matching f over a snapshot taken at call time. The
// sequence can be ranged over any number of times.
func (s *ListingStore) Query(ctx context.Context, f Filter) (iter.Seq[models.Listing], error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	listings, err := s.backend.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	if f.Newest {
		slices.SortStableFunc(listings, func(a, b models.Listing) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	}

	return func(yield func(models.Listing) bool) {
		for _, l := range listings {
			if f.matches(l) && !yield(l) {
				return
			}
		}
	}, nil
}
