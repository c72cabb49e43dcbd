// Package sqlite implements store.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/dealdesk/internal/store"
)

var _ store.Store = (*Client)(nil)

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Client is a sqlite-backed store. A Client returned to a WithTx callback
// runs every statement on that transaction.
type Client struct {
	db  *sql.DB
	q   querier
	tx  *sql.Tx
	now func() time.Time
}

// New opens the database named by a sqlite:// DSN
func New(ctx context.Context, dsn string) (*Client, error) {
	driverDSN, memory, err := parseDSN(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse DSN")
	}

	db, err := sql.Open("sqlite", driverDSN)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open database")
	}
	if memory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA foreign_keys = ON;",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: set pragma %q", pragma)
		}
	}

	return &Client{db: db, q: db, now: time.Now}, nil
}

// Close closes the database; closing a transaction-bound client is a no-op
func (c *Client) Close(ctx context.Context) error {
	if c.tx != nil {
		return nil
	}
	return c.db.Close()
}

// WithTx runs fn in a transaction
func (c *Client) WithTx(ctx context.Context, fn func(store.Store) error) error {
	if c.tx != nil {
		return fn(c)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transaction")
	}

	txClient := &Client{db: c.db, q: tx, tx: tx, now: c.now}
	if err := fn(txClient); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit transaction")
}

func (c *Client) timestamp() string {
	return store.FormatTime(c.now())
}
