package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

// Lite is the embedded ledger for single-host runs.
type Lite struct {
	sqlDB *sql.DB
	ledger
}

// OpenSQLite opens path (or ":memory:"). One connection only, so an
// in-memory database stays a single database.
func OpenSQLite(ctx context.Context, path string) (*Lite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if path == ":memory:" {
		if _, err := sqlDB.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return &Lite{sqlDB: sqlDB, ledger: ledger{c: liteConn{sqlDB}}}, nil
}

func (l *Lite) Close() {
	if l == nil || l.sqlDB == nil {
		return
	}
	_ = l.sqlDB.Close()
}

func (l *Lite) Ping(ctx context.Context) error { return l.sqlDB.PingContext(ctx) }

func (l *Lite) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema_sqlite.sql")
	if err != nil {
		return err
	}
	_, err = l.sqlDB.ExecContext(ctx, string(sqlBytes))
	return err
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N into SQLite's numbered ?N.
func rebind(q string) string { return placeholder.ReplaceAllString(q, "?$1") }

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type liteConn struct{ q sqlQuerier }

func (c liteConn) exec(ctx context.Context, q string, args ...any) error {
	_, err := c.q.ExecContext(ctx, rebind(q), args...)
	return err
}

func (c liteConn) queryRow(ctx context.Context, q string, args ...any) row {
	return liteRow{c.q.QueryRowContext(ctx, rebind(q), args...)}
}

func (c liteConn) query(ctx context.Context, q string, args ...any) (rows, error) {
	rs, err := c.q.QueryContext(ctx, rebind(q), args...)
	if err != nil {
		return nil, err
	}
	return liteRows{rs}, nil
}

func (c liteConn) tx(ctx context.Context, fn func(conn) error) error {
	db, ok := c.q.(*sql.DB)
	if !ok {
		return fn(c)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(liteConn{tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type liteRow struct{ r *sql.Row }

func (r liteRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type liteRows struct{ *sql.Rows }

func (r liteRows) Close() { _ = r.Rows.Close() }
