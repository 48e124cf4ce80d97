// Package database wraps the PostgreSQL connection pool and the schema
// migration runner.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing used when the caller leaves a Config field zero. The engine
// holds long-lived agent connections plus short auth bursts; twenty
// connections covers both without starving local Postgres installs.
const (
	defaultMaxConns     = int32(20)
	defaultConnLifetime = 45 * time.Minute
	defaultConnIdleTime = 10 * time.Minute
)

// DB is the process-wide pgx pool. Repositories embed nothing else; every
// query in the engine runs through this handle.
type DB struct {
	*pgxpool.Pool
}

// Config sizes the pool. Zero fields fall back to the package defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c *Config) maxConns() int32 {
	if c.MaxConnections > 0 {
		return c.MaxConnections
	}
	return defaultMaxConns
}

func (c *Config) connLifetime() time.Duration {
	if c.MaxConnLifetime > 0 {
		return c.MaxConnLifetime
	}
	return defaultConnLifetime
}

func (c *Config) connIdleTime() time.Duration {
	if c.MaxConnIdleTime > 0 {
		return c.MaxConnIdleTime
	}
	return defaultConnIdleTime
}

// NewConnection dials the store and verifies it answers before handing the
// pool out. A pool that cannot ping is closed, not returned.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MaxConns = cfg.maxConns()
	poolCfg.MaxConnLifetime = cfg.connLifetime()
	poolCfg.MaxConnIdleTime = cfg.connIdleTime()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.Pool.Close()
}
