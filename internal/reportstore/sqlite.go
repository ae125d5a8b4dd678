package reportstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/assessment-results-server/internal/domain"
)

// SQLiteStore implements domain.ReportStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	ttl    time.Duration
}

// NewSQLiteStore creates a new SQLite report store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string, ttl time.Duration) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
		ttl:    ttl,
	}, nil
}

// createSchema creates the session table and its expiry index.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS report_sessions (
		session_id TEXT NOT NULL,
		entry_key TEXT NOT NULL,
		payload BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, entry_key)
	);

	CREATE INDEX IF NOT EXISTS idx_report_sessions_updated_at ON report_sessions(updated_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Get returns the payload stored under key, or domain.ErrNotFound when absent or expired.
func (s *SQLiteStore) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	if err := validateKey(sessionID, key); err != nil {
		return nil, err
	}

	var payload []byte
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, updated_at FROM report_sessions WHERE session_id = ? AND entry_key = ?",
		sessionID, key,
	).Scan(&payload, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if s.expired(updatedAt) {
		return nil, domain.ErrNotFound
	}
	return payload, nil
}

// Set inserts or replaces the payload stored under key.
func (s *SQLiteStore) Set(ctx context.Context, sessionID, key string, payload []byte) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_sessions (session_id, entry_key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, entry_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, sessionID, key, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}
	return nil
}

// Clear removes the entry stored under key.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID, key string) error {
	if err := validateKey(sessionID, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM report_sessions WHERE session_id = ? AND entry_key = ?",
		sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to clear entry: %w", err)
	}
	return nil
}

// PurgeExpired deletes entries older than the store TTL and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM report_sessions WHERE updated_at < ?",
		time.Now().UTC().Add(-s.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge entries: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of stored entries, expired ones included.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM report_sessions").Scan(&count)
	return count, err
}

func (s *SQLiteStore) expired(updatedAt time.Time) bool {
	return s.ttl > 0 && time.Since(updatedAt) > s.ttl
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
