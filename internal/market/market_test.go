package market

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/events"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	seller   = Principal{ID: "S", Name: "Seller"}
	buyer    = Principal{ID: "B", Name: "Buyer"}
	stranger = Principal{ID: "X", Name: "Stranger"}
	admin    = Principal{ID: "A", Name: "Admin", IsAdmin: true}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type fixture struct {
	backend  *store.Memory
	listings *ListingStore
	txs      *TransactionStore
	engine   *Engine
	pub      *recordingPublisher
}

func newFixture(t testingT, extra ...Option) *fixture {
	t.Helper()

	var seq atomic.Int64
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{}

	opts := append([]Option{
		WithPublisher(pub),
		WithIDGenerator(func() string { return strconv.FormatInt(seq.Add(1), 10) }),
		WithClock(func() time.Time { return base.Add(time.Duration(seq.Load()) * time.Minute) }),
	}, extra...)

	backend := store.NewMemory()
	txs := NewTransactionStore(backend, opts...)
	return &fixture{
		backend:  backend,
		listings: NewListingStore(backend, opts...),
		txs:      txs,
		engine:   NewEngine(backend, txs, opts...),
		pub:      pub,
	}
}

func draft(title string, category models.Category, price int64) Draft {
	return Draft{
		Title:     title,
		Author:    "R.S. Aggarwal",
		Category:  category,
		Condition: models.ConditionGood,
		Price:     decimal.NewFromInt(price),
	}
}

func (f *fixture) mustCreate(t testingT, p Principal, d Draft) *models.Listing {
	t.Helper()
	l, err := f.listings.Create(context.Background(), p, d)
	require.NoError(t, err)
	return l
}
