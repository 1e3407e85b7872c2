//go:build integration

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))

	_, err = database.RunMigrations(ctx, db, "../../migrations", database.DirectionUp)
	require.NoError(t, err, "run migrations")

	p := NewPostgres(db)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func pgListing(id string) *models.Listing {
	l := newListing(id)
	now := time.Now().UTC().Truncate(time.Microsecond)
	l.SellerName = "Seller"
	l.CreatedAt = now
	l.UpdatedAt = now
	return l
}

func TestPostgresListingRoundTrip(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, p.InsertListing(ctx, pgListing(id)))
	}
	assert.ErrorIs(t, p.InsertListing(ctx, pgListing("a")), ErrDuplicate)

	got, err := p.GetListing(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Book a", got.Title)
	assert.True(t, got.Price.Equal(pgListing("a").Price))

	got.Title = "Renamed"
	require.NoError(t, p.UpdateListing(ctx, got))
	require.NoError(t, p.DeleteListing(ctx, "c"))
	assert.ErrorIs(t, p.DeleteListing(ctx, "c"), ErrNotFound)

	listings, err := p.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "b", listings[0].ID)
	assert.Equal(t, "Renamed", listings[1].Title)
}

func TestPostgresAtomicRollsBack(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, p.InsertListing(ctx, pgListing("1")))

	boom := errors.New("boom")
	err := p.Atomic(ctx, func(ctx context.Context, r Repos) error {
		l, err := r.GetListing(ctx, "1")
		if err != nil {
			return err
		}
		l.Status = models.ListingSold
		if err := r.UpdateListing(ctx, l); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	l, err := p.GetListing(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.ListingAvailable, l.Status)
}

func TestPostgresConcurrentAtomicClaimsOnce(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()
	require.NoError(t, p.InsertListing(ctx, pgListing("1")))

	errTaken := errors.New("taken")
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := p.Atomic(ctx, func(ctx context.Context, r Repos) error {
				l, err := r.GetListing(ctx, "1")
				if err != nil {
					return err
				}
				if l.Status != models.ListingAvailable {
					return errTaken
				}
				l.Status = models.ListingSold
				if err := r.UpdateListing(ctx, l); err != nil {
					return err
				}
				now := time.Now().UTC()
				return r.InsertTransaction(ctx, &models.Transaction{
					ID:               fmt.Sprintf("t%d", i),
					ListingID:        l.ID,
					BookTitle:        l.Title,
					BuyerID:          fmt.Sprintf("buyer-%d", i),
					BuyerName:        "Buyer",
					SellerID:         l.SellerID,
					SellerName:       l.SellerName,
					Price:            l.Price,
					Status:           models.TransactionPending,
					DeliveryLocation: "C-Scheme",
					PickupLocation:   models.PickupPending,
					CreatedAt:        now,
					UpdatedAt:        now,
				})
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	txs, err := p.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestPostgresUsersAndContent(t *testing.T) {
	p := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := &models.User{ID: "u1", Email: "Reader@Example.com", Name: "Reader", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, p.InsertUser(ctx, u, models.Credential{PasswordHash: "h", Salt: "s"}))
	err := p.InsertUser(ctx, &models.User{ID: "u2", Email: "reader@example.com", Name: "Dup", CreatedAt: now, UpdatedAt: now}, models.Credential{PasswordHash: "h", Salt: "s"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, cred, err := p.GetUserByEmail(ctx, "READER@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "s", cred.Salt)

	require.NoError(t, p.PutContent(ctx, models.ContentEntry{Key: "contact", Value: "x", UpdatedAt: now}))
	require.NoError(t, p.PutContent(ctx, models.ContentEntry{Key: "about", Value: "y", UpdatedAt: now}))
	require.NoError(t, p.PutContent(ctx, models.ContentEntry{Key: "contact", Value: "z", UpdatedAt: now}))

	entries, err := p.ListContent(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "about", entries[0].Key)
	assert.Equal(t, "z", entries[1].Value)
}
