// Package db connects the optional Postgres settlement ledger. Unlike a
// primary datastore, this connection is best-effort: callers fall back to
// ledger.NoopLedger when it can't be established, so Connect reports the
// error instead of fataling the process out from under live rooms.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

