// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/ppiankov/dealdesk/internal/store"
)

var _ store.Store = (*Client)(nil)

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client is a postgres-backed store
type Client struct {
	pool *pgxpool.Pool
	q    querier
	tx   pgx.Tx
	now  func() time.Time
}

// New connects to the database named by a postgres:// DSN
func New(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Client{pool: pool, q: pool, now: time.Now}, nil
}

// Close closes the pool; closing a transaction-bound client is a no-op
func (c *Client) Close(ctx context.Context) error {
	if c.tx == nil {
		c.pool.Close()
	}
	return nil
}

// WithTx runs fn in a transaction
func (c *Client) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if c.tx != nil {
		return fn(c)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Client{pool: c.pool, q: tx, tx: tx, now: c.now}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit transaction")
}

func (c *Client) timestamp() time.Time {
	return c.now().UTC()
}
