package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection and provides health checks
type DB struct {
	conn *sqlx.DB

	// routing overrides are read on every routed call
	overrideCache *LRUCache
}

// DBConfig holds database configuration
type DBConfig struct {
	URL string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Cache settings
	OverrideCacheSize int
	OverrideCacheTTL  time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() DBConfig {
	return DBConfig{
		URL: "postgres://postgres@localhost:5432/orchestrator?sslmode=disable",

		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,

		OverrideCacheSize: 256,
		OverrideCacheTTL:  30 * time.Second,
	}
}

// NewDB opens a Postgres connection pool
func NewDB(cfg DBConfig) (*DB, error) {
	conn, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return NewDBWithConn(conn, cfg), nil
}

// NewDBWithConn wraps an existing connection
func NewDBWithConn(conn *sqlx.DB, cfg DBConfig) *DB {
	return &DB{
		conn:          conn,
		overrideCache: NewLRUCache(cfg.OverrideCacheSize, cfg.OverrideCacheTTL),
	}
}

// Close closes the database connection and clears caches
func (db *DB) Close() error {
	db.overrideCache.Clear()
	return db.conn.Close()
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Health returns the health status of the database
func (db *DB) Health(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := db.conn.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("health check query failed: %w", err)
	}

	return nil
}

// NewRequestRepository creates a new request record repository
func (db *DB) NewRequestRepository() *RequestRepository {
	return NewRequestRepository(db)
}

// NewRoutingOverrideRepository creates a new routing override repository
func (db *DB) NewRoutingOverrideRepository() *RoutingOverrideRepository {
	return NewRoutingOverrideRepository(db)
}
