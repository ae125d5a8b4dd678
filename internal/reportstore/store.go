// Package reportstore provides session-scoped key-value storage for report documents and tab view state.
//
// Four backends implement domain.ReportStore:
//   - memory: an expiring LRU, for tests and single-process deployments
//   - sqlite: a local database file, used by the lite MCP server
//   - redis: shared sessions with native TTL
//   - postgres: durable sessions, schema created by migrations
//
// Every backend returns domain.ErrNotFound for an absent key.
package reportstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/database"
	"github.com/assessment-results-server/internal/domain"
)

// Supported store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Default limits applied when the configuration leaves them empty
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 10000
)

// Open creates the store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (domain.ReportStore, error) {
	storeCfg := cfg.Store
	ttl := storeCfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	driver := strings.ToLower(storeCfg.Driver)
	if driver == "" {
		driver = DriverMemory
	}

	logger.WithFields(logrus.Fields{
		"driver": driver,
		"ttl":    ttl,
	}).Info("Opening report store")

	switch driver {
	case DriverMemory:
		return NewMemoryStore(storeCfg.MaxEntries, ttl), nil
	case DriverSQLite:
		return NewSQLiteStore(storeCfg.SQLitePath, ttl)
	case DriverRedis:
		return NewRedisStore(ctx, cfg.Redis, ttl)
	case DriverPostgres:
		return NewPostgresStoreFromURL(database.ConfigFromDomain(cfg.Database).URL(), ttl)
	default:
		return nil, fmt.Errorf("unsupported report store driver %q", storeCfg.Driver)
	}
}

func validateKey(sessionID, key string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.NewValidationError("session_id", "session id is required", sessionID)
	}
	if strings.TrimSpace(key) == "" {
		return domain.NewValidationError("key", "key is required", key)
	}
	return nil
}
