package reportstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/assessment-results-server/internal/domain"
)

// PostgresStore implements domain.ReportStore using PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore creates a new PostgreSQL report store.
// It expects the report_sessions table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, ttl: ttl}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL report store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db, ttl)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Get returns the payload stored under key, or domain.ErrNotFound when absent or expired.
func (s *PostgresStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if err := validateKey(sessionID, key); err != nil {
		return nil, err
	}

	query := `
		SELECT payload, updated_at
		FROM report_sessions
		WHERE session_id = $1 AND entry_key = $2
	`

	var payload []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, query, sessionID, key).Scan(&payload, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if s.ttl > 0 && time.Since(updatedAt) > s.ttl {
		return nil, domain.ErrNotFound
	}
	return payload, nil
}

// Set upserts the payload stored under key.
func (s *PostgresStore) Set(ctx context.Context, sessionID, key string, payload []byte) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}

	query := `
		INSERT INTO report_sessions (session_id, entry_key, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, entry_key) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, sessionID, key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}
	return nil
}

// Clear removes the entry stored under key.
func (s *PostgresStore) Clear(ctx context.Context, sessionID, key string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM report_sessions WHERE session_id = $1 AND entry_key = $2",
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to clear entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries older than the store TTL.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM report_sessions WHERE updated_at < $1",
		time.Now().UTC().Add(-s.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge entries: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
