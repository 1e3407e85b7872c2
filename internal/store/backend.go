package store

import (
	"context"
	"errors"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repos is the set of listing and transaction operations. Inside Backend.Atomic every
// write made through it is applied together with the others or not at all.
type Repos interface {
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	UpdateListing(ctx context.Context, l *models.Listing) error
	DeleteListing(ctx context.Context, id string) error
	// ListListings returns every listing in insertion order.
	ListListings(ctx context.Context) ([]models.Listing, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	// ListTransactions returns every transaction in insertion order.
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

type UserRepo interface {
	InsertUser(ctx context.Context, u *models.User, cred models.Credential) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	// GetUserByEmail matches the email case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*models.User, *models.Credential, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type ContentRepo interface {
	// ListContent returns entries ordered by key.
	ListContent(ctx context.Context) ([]models.ContentEntry, error)
	PutContent(ctx context.Context, e models.ContentEntry) error
}

type Backend interface {
	Repos
	UserRepo
	ContentRepo

	// Atomic runs fn as one unit of work. Concurrent units touching the same listing are
	// serialized, and fn must only use the Repos it is given.
	Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Close() error
}
