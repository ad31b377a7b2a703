// Package storage persists auction sessions, the purchase audit log and
// delivered alerts. SQLite serves a single operator laptop; PostgreSQL serves
// shared deployments.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"auction-advisor/internal/config"
	"auction-advisor/internal/ledger"
)

var (
	// ErrNotFound indicates the requested session does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrNotConfigured indicates the store was not initialised.
	ErrNotConfigured = errors.New("storage: not configured")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the persistence contract of a session.
type Store interface {
	// SaveSession inserts or replaces a session. An empty ID is assigned a
	// new UUID; the stored record is returned.
	SaveSession(ctx context.Context, rec SessionRecord) (SessionRecord, error)
	// LoadSession loads a session by ID, or the most recently updated one
	// when id is empty. The snapshot is sanitised before it is returned.
	LoadSession(ctx context.Context, id string) (SessionRecord, error)
	AppendPurchase(ctx context.Context, rec PurchaseRecord) error
	ListPurchases(ctx context.Context, sessionID string) ([]PurchaseRecord, error)
	ClearPurchases(ctx context.Context, sessionID string) error
	RecordAlert(ctx context.Context, rec AlertRecord) (AlertRecord, error)
	ListAlerts(ctx context.Context, sessionID string, limit int) ([]AlertRecord, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path)
	case DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// sanitize cleans a loaded snapshot the same way a ledger restore does.
func sanitize(rec SessionRecord) SessionRecord {
	rec.Snapshot, rec.Dropped = ledger.Sanitize(rec.Snapshot)
	return rec
}
