package store

import (
	"context"
	"database/sql"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres stores records in the schema under migrations/. Reads and single writes
// outside Atomic go straight to the pool.
type Postgres struct {
	pgRepos
	db     *sql.DB
	opts   database.TxOptions
	tracer trace.Tracer
}

var _ Backend = (*Postgres)(nil)

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		pgRepos: pgRepos{q: db},
		db:      db,
		opts:    database.DefaultTxOptions(),
		tracer:  otel.Tracer("bookbazaar/store"),
	}
}

// Atomic runs fn in a read committed transaction. Listings read through the supplied
// Repos are locked with FOR UPDATE until commit, which serializes competing purchases.
func (p *Postgres) Atomic(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	ctx, span := p.tracer.Start(ctx, "store.atomic")
	defer span.End()

	err := database.WithRetry(ctx, p.db, p.opts, func(tx *sql.Tx) error {
		return fn(ctx, pgRepos{q: tx, lock: true})
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type pgRepos struct {
	q    queryer
	lock bool
}

type rowScanner interface {
	Scan(dest ...any) error
}
