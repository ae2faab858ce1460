package store

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql schema_sqlite.sql
var schema embed.FS

// DB is the Postgres ledger.
type DB struct {
	*pgxpool.Pool
	ledger
}

func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: p, ledger: ledger{c: pgConn{p}}}, nil
}

func (db *DB) Close()                         { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// pgConn adapts a pool or a transaction.
type pgConn struct {
	q interface {
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		Begin(ctx context.Context) (pgx.Tx, error)
	}
}

func (c pgConn) exec(ctx context.Context, q string, args ...any) error {
	_, err := c.q.Exec(ctx, q, args...)
	return err
}

func (c pgConn) queryRow(ctx context.Context, q string, args ...any) row {
	return pgRow{c.q.QueryRow(ctx, q, args...)}
}

func (c pgConn) query(ctx context.Context, q string, args ...any) (rows, error) {
	rs, err := c.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (c pgConn) tx(ctx context.Context, fn func(conn) error) error {
	tx, err := c.q.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // no-op once committed
	if err := fn(pgConn{tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgRow struct{ r pgx.Row }

func (r pgRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
