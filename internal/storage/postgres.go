package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/fleetdesk/fleetdesk-server/internal/config"
)

// PostgresStore implements Store on PostgreSQL. A zero tx means the
// store runs each statement directly on the pool; BeginTx hands out a
// copy bound to a transaction.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresStore opens the connection pool and verifies it. Pool
// limits come from the database config; zero values leave the
// database/sql defaults in place.
func NewPostgresStore(cfg *config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a transaction and returns a store bound to it
func (s *PostgresStore) BeginTx(ctx context.Context) (Store, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: s.db, tx: tx}, nil
}

// Commit commits the transaction
func (s *PostgresStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *PostgresStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}

// getDB returns tx if in transaction, otherwise db
func (s *PostgresStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}
