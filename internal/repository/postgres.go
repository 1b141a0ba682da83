package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prasiddha/kinmel/db"
)

// migrationLockID is the advisory lock key serializing schema migration.
// Both the API server and the seed tool migrate on startup; whichever
// arrives second waits instead of racing the DDL.
const migrationLockID = 874002

// NewPool creates a pgxpool.Pool with shopspring/decimal support registered
// for NUMERIC columns and verifies connectivity before returning.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return pool, nil
}

// RunMigrations applies the embedded schema under an advisory lock. The DDL
// is idempotent (IF NOT EXISTS throughout), so reapplying is safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
			return errors.Wrap(err, "acquire migration lock")
		}
		if _, err := tx.Exec(ctx, db.Schema); err != nil {
			return errors.Wrap(err, "apply schema")
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}
