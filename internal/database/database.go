// Package database wraps a pgx connection pool with the queries and
// migrations the application needs.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool sizing for a single-user desktop deployment. A handful of
// connections covers the API, the import watcher, and the queue.
const (
	poolMaxConns        = 10
	poolMinConns        = 2
	poolMaxConnIdleTime = 5 * time.Minute

	healthCheckTimeout = 2 * time.Second
)

// DB owns the connection pool. All queries go through it.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens the pool and verifies the server is reachable before
// returning. The DSN is masked in logs.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("database connected")

	return &DB{Pool: pool, log: log}, nil
}

// HealthCheck pings with a short deadline so a wedged database turns
// into a degraded health report rather than a hung request.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// Close releases the pool.
func (db *DB) Close() {
	db.log.Info().Msg("closing database pool")
	db.Pool.Close()
}

// maskDSN hides the password component of a connection string so it can
// be logged.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
