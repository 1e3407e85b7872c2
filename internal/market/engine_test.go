package market

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"
)

func TestPurchaseScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.mustCreate(t, seller, draft("Engineering Drawing", models.CategoryDrafter, 150))
	require.Equal(t, "1", l.ID)

	tx, err := f.engine.Purchase(ctx, buyer, "1", "  Area X, City  ")
	require.NoError(t, err)

	assert.Equal(t, "1", tx.ListingID)
	assert.Equal(t, "B", tx.BuyerID)
	assert.Equal(t, "S", tx.SellerID)
	assert.True(t, tx.Price.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, models.TransactionPending, tx.Status)
	assert.Equal(t, models.PickupPending, tx.PickupLocation)
	assert.Equal(t, "Area X, City", tx.DeliveryLocation)
	assert.Equal(t, "Engineering Drawing", tx.BookTitle)

	seq, err := f.listings.Query(ctx, Filter{Category: models.CategoryAll})
	require.NoError(t, err)
	listings := slices.Collect(seq)
	require.Len(t, listings, 1)
	assert.Equal(t, models.ListingSold, listings[0].Status)

	assert.Equal(t, []string{events.TypeListingCreated, events.TypeBookPurchased}, f.pub.types())
}

func TestPurchasePreconditionOrder(t *testing.T) {
	tests := []struct {
		name     string
		who      Principal
		listing  string
		location string
		setup    func(t *testing.T, f *fixture, id string)
		want     error
	}{
		{"anonymous beats missing listing", Principal{}, "missing", "", nil, ErrAuthRequired},
		{"missing listing", buyer, "missing", "", nil, ErrNotFound},
		{"self purchase beats blank location", seller, "", "", nil, ErrSelfPurchase},
		{"self purchase of sold listing", seller, "", "Home", func(t *testing.T, f *fixture, id string) {
			_, err := f.engine.Purchase(context.Background(), stranger, id, "Somewhere")
			require.NoError(t, err)
		}, ErrSelfPurchase},
		{"not available beats blank location", buyer, "", "  ", func(t *testing.T, f *fixture, id string) {
			_, err := f.listings.Update(context.Background(), admin, id, Patch{Status: ptr(models.ListingReserved)})
			require.NoError(t, err)
		}, ErrNotAvailable},
		{"blank location", buyer, "", " \t ", nil, ErrDeliveryLocationRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			l := f.mustCreate(t, seller, draft("Book", models.CategoryNK, 150))
			id := tt.listing
			if id == "" {
				id = l.ID
			}
			if tt.setup != nil {
				tt.setup(t, f, id)
			}
			before, err := f.backend.ListTransactions(context.Background())
			require.NoError(t, err)

			_, err = f.engine.Purchase(context.Background(), tt.who, id, tt.location)
			assert.ErrorIs(t, err, tt.want)

			after, err := f.backend.ListTransactions(context.Background())
			require.NoError(t, err)
			assert.Len(t, after, len(before))
		})
	}
}

func TestPurchaseBlankLocationLeavesListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.mustCreate(t, seller, draft("Book", models.CategoryNK, 150))

	_, err := f.engine.Purchase(ctx, buyer, l.ID, "   ")
	require.ErrorIs(t, err, ErrDeliveryLocationRequired)

	stored, err := f.listings.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingAvailable, stored.Status)

	seq, err := f.txs.Query(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestPurchaseTwiceFailsNotAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.mustCreate(t, seller, draft("Book", models.CategoryNK, 150))

	_, err := f.engine.Purchase(ctx, buyer, l.ID, "Raja Park")
	require.NoError(t, err)
	_, err = f.engine.Purchase(ctx, stranger, l.ID, "Bani Park")
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestConcurrentPurchaseSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.mustCreate(t, seller, draft("Book", models.CategoryNK, 150))

	const buyers = 32
	results := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := Principal{ID: fmt.Sprintf("buyer-%d", i), Name: "Buyer"}
			_, results[i] = f.engine.Purchase(ctx, p, l.ID, "Tonk Road")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrNotAvailable)
	}
	assert.Equal(t, 1, wins)

	txs, err := f.backend.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestPurchaseKeepsPriceAtPurchaseTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := f.mustCreate(t, seller, draft("Old Title", models.CategoryNK, 150))

	tx, err := f.engine.Purchase(ctx, buyer, l.ID, "Sodala")
	require.NoError(t, err)

	_, err = f.listings.Update(ctx, admin, l.ID, Patch{
		Title: ptr("New Title"),
		Price: ptr(decimal.NewFromInt(999)),
	})
	require.NoError(t, err)

	stored, err := f.txs.Get(ctx, buyer, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "Old Title", stored.BookTitle)
}

func TestPurchaseRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := context.Background()
	f := newFixture(t, WithTracer(tp.Tracer("test")))
	l := f.mustCreate(t, seller, draft("Book", models.CategoryNK, 150))

	tx, err := f.engine.Purchase(ctx, buyer, l.ID, "Jhotwara")
	require.NoError(t, err)
	_, err = f.engine.Purchase(ctx, buyer, l.ID, "Jhotwara")
	require.ErrorIs(t, err, ErrNotAvailable)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "market.purchase", ok.Name())
	assert.Contains(t, ok.Attributes(), attribute.String("transaction.id", tx.ID))
	assert.Contains(t, ok.Attributes(), attribute.String("listing.id", l.ID))
	assert.NotEqual(t, codes.Error, ok.Status().Code)

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, ErrNotAvailable.Error(), failed.Status().Description)
}

// Every Sold listing has exactly one transaction, and every transaction points at a
// Sold listing, whatever mix of purchase attempts ran.
func TestPurchaseInvariantProperty(t *testing.T) {
	principals := []Principal{seller, buyer, stranger, admin, {}}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		f := newFixture(t)

		n := rapid.IntRange(1, 5).Draw(t, "listings")
		var ids []string
		for i := 0; i < n; i++ {
			owner := rapid.SampledFrom(principals[:3]).Draw(t, "owner")
			ids = append(ids, f.mustCreate(t, owner, draft("Book", models.CategoryBoth, 50)).ID)
		}

		targets := append(slices.Clone(ids), "ghost")
		attempts := rapid.IntRange(0, 20).Draw(t, "attempts")
		for i := 0; i < attempts; i++ {
			who := rapid.SampledFrom(principals).Draw(t, "who")
			id := rapid.SampledFrom(targets).Draw(t, "listing")
			loc := rapid.SampledFrom([]string{"", "  ", "Malviya Nagar"}).Draw(t, "location")
			_, _ = f.engine.Purchase(ctx, who, id, loc)
		}

		listings, err := f.backend.ListListings(ctx)
		if err != nil {
			t.Fatalf("list listings: %v", err)
		}
		txs, err := f.backend.ListTransactions(ctx)
		if err != nil {
			t.Fatalf("list transactions: %v", err)
		}

		perListing := map[string]int{}
		for _, tx := range txs {
			perListing[tx.ListingID]++
			if tx.BuyerID == tx.SellerID {
				t.Fatalf("transaction %s has buyer == seller", tx.ID)
			}
		}
		for _, l := range listings {
			sold := l.Status == models.ListingSold
			if sold && perListing[l.ID] != 1 {
				t.Fatalf("sold listing %s has %d transactions", l.ID, perListing[l.ID])
			}
			if !sold && perListing[l.ID] != 0 {
				t.Fatalf("unsold listing %s has %d transactions", l.ID, perListing[l.ID])
			}
		}
	})
}
