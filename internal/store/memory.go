package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

type memoryState struct {
	listings     map[string]models.Listing
	listingOrder []string
	transactions map[string]models.Transaction
	txOrder      []string
}

func newMemoryState() memoryState {
	return memoryState{
		listings:     make(map[string]models.Listing),
		transactions: make(map[string]models.Transaction),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		listings:     make(map[string]models.Listing, len(s.listings)),
		listingOrder: slices.Clone(s.listingOrder),
		transactions: make(map[string]models.Transaction, len(s.transactions)),
		txOrder:      slices.Clone(s.txOrder),
	}
	for id, l := range s.listings {
		out.listings[id] = l
	}
	for id, t := range s.transactions {
		out.transactions[id] = t
	}
	return out
}

type userRecord struct {
	user models.User
	cred models.Credential
}

// Memory keeps every record in process. Units of work run against a clone of the
// listing and transaction state which replaces the live state only when fn succeeds.
type Memory struct {
	mu      sync.RWMutex
	state   memoryState
	users   map[string]userRecord
	byEmail map[string]string
	content map[string]models.ContentEntry
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		state:   newMemoryState(),
		users:   make(map[string]userRecord),
		byEmail: make(map[string]string),
		content: make(map[string]models.ContentEntry),
	}
}

func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(ctx, stateRepos{state: &staged}); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) read() stateRepos {
	return stateRepos{state: &m.state}
}

func (m *Memory) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetListing(ctx, id)
}

func (m *Memory) ListListings(ctx context.Context) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListListings(ctx)
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetTransaction(ctx, id)
}

func (m *Memory) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListTransactions(ctx)
}

func (m *Memory) InsertListing(ctx context.Context, l *models.Listing) error {
	return m.Atomic(ctx, func(ctx context.Context, r Repos) error { return r.InsertListing(ctx, l) })
}

func (m *Memory) UpdateListing(ctx context.Context, l *models.Listing) error {
	return m.Atomic(ctx, func(ctx context.Context, r Repos) error { return r.UpdateListing(ctx, l) })
}

func (m *Memory) DeleteListing(ctx context.Context, id string) error {
	return m.Atomic(ctx, func(ctx context.Context, r Repos) error { return r.DeleteListing(ctx, id) })
}

func (m *Memory) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	return m.Atomic(ctx, func(ctx context.Context, r Repos) error { return r.InsertTransaction(ctx, t) })
}

func (m *Memory) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	return m.Atomic(ctx, func(ctx context.Context, r Repos) error { return r.UpdateTransaction(ctx, t) })
}

func (m *Memory) InsertUser(_ context.Context, u *models.User, cred models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := m.users[u.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.byEmail[email]; ok {
		return ErrDuplicate
	}

	cred.UserID = u.ID
	m.users[u.ID] = userRecord{user: *u, cred: cred}
	m.byEmail[email] = u.ID
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := rec.user
	return &u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*models.User, *models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil, ErrNotFound
	}
	rec := m.users[id]
	u, cred := rec.user, rec.cred
	return &u, &cred, nil
}

func (m *Memory) UpdateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	oldEmail := strings.ToLower(rec.user.Email)
	newEmail := strings.ToLower(u.Email)
	if oldEmail != newEmail {
		if _, taken := m.byEmail[newEmail]; taken {
			return ErrDuplicate
		}
		delete(m.byEmail, oldEmail)
		m.byEmail[newEmail] = u.ID
	}
	rec.user = *u
	m.users[u.ID] = rec
	return nil
}

func (m *Memory) ListContent(_ context.Context) ([]models.ContentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ContentEntry, 0, len(m.content))
	for _, e := range m.content {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) PutContent(_ context.Context, e models.ContentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[e.Key] = e
	return nil
}

// stateRepos operates on a memoryState without locking; callers hold Memory.mu.
type stateRepos struct {
	state *memoryState
}

func (r stateRepos) GetListing(_ context.Context, id string) (*models.Listing, error) {
	l, ok := r.state.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (r stateRepos) InsertListing(_ context.Context, l *models.Listing) error {
	if _, ok := r.state.listings[l.ID]; ok {
		return ErrDuplicate
	}
	r.state.listings[l.ID] = *l
	r.state.listingOrder = append(r.state.listingOrder, l.ID)
	return nil
}

func (r stateRepos) UpdateListing(_ context.Context, l *models.Listing) error {
	if _, ok := r.state.listings[l.ID]; !ok {
		return ErrNotFound
	}
	r.state.listings[l.ID] = *l
	return nil
}

func (r stateRepos) DeleteListing(_ context.Context, id string) error {
	if _, ok := r.state.listings[id]; !ok {
		return ErrNotFound
	}
	delete(r.state.listings, id)
	r.state.listingOrder = slices.DeleteFunc(r.state.listingOrder, func(v string) bool { return v == id })
	return nil
}

func (r stateRepos) ListListings(_ context.Context) ([]models.Listing, error) {
	out := make([]models.Listing, 0, len(r.state.listingOrder))
	for _, id := range r.state.listingOrder {
		out = append(out, r.state.listings[id])
	}
	return out, nil
}

func (r stateRepos) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	t, ok := r.state.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r stateRepos) InsertTransaction(_ context.Context, t *models.Transaction) error {
	if _, ok := r.state.transactions[t.ID]; ok {
		return ErrDuplicate
	}
	r.state.transactions[t.ID] = *t
	r.state.txOrder = append(r.state.txOrder, t.ID)
	return nil
}

func (r stateRepos) UpdateTransaction(_ context.Context, t *models.Transaction) error {
	if _, ok := r.state.transactions[t.ID]; !ok {
		return ErrNotFound
	}
	r.state.transactions[t.ID] = *t
	return nil
}

func (r stateRepos) ListTransactions(_ context.Context) ([]models.Transaction, error) {
	out := make([]models.Transaction, 0, len(r.state.txOrder))
	for _, id := range r.state.txOrder {
		out = append(out, r.state.transactions[id])
	}
	return out, nil
}
