// Package database manages the PostgreSQL pool behind the email delivery audit trail
// and the schema shared with the postgres report store.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/domain"
)

// Pool defaults used when the configuration leaves them empty
const (
	defaultMaxConns    = 10
	defaultConnLife    = time.Hour
	defaultConnIdle    = 30 * time.Minute
	defaultSSLMode     = "disable"
	schemaVersionQuery = `SELECT version, dirty FROM schema_migrations LIMIT 1`
)

// Config holds pool settings
type Config struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	MaxConns    int32
	MinConns    int32
	MaxConnLife time.Duration
	MaxConnIdle time.Duration
	SSLMode     string
}

// ConfigFromDomain maps the application database settings onto pool settings.
func ConfigFromDomain(cfg domain.DatabaseConfig) Config {
	maxConns := int32(cfg.MaxOpenConns)
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	life := cfg.ConnMaxLifetime
	if life <= 0 {
		life = defaultConnLife
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}
	return Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Database:    cfg.Database,
		Username:    cfg.Username,
		Password:    cfg.Password,
		MaxConns:    maxConns,
		MinConns:    min(int32(cfg.MaxIdleConns), maxConns),
		MaxConnLife: life,
		MaxConnIdle: defaultConnIdle,
		SSLMode:     sslMode,
	}
}

// URL renders the config as a postgres:// URL. The pool, the postgres report store
// and golang-migrate all connect through it.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// DB is the audit database pool
type DB struct {
	Pool *pgxpool.Pool
	log  *logrus.Logger
}

// Open connects the pool and verifies the server answers.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLife
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdle

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":      cfg.Host,
		"database":  cfg.Database,
		"max_conns": cfg.MaxConns,
	}).Info("Audit database connected")
	return &DB{Pool: pool, log: logger}, nil
}

// Close closes the pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health describes whether the audit database can take delivery records.
type Health struct {
	Reachable bool         `json:"reachable"`
	Schema    SchemaStatus `json:"schema"`
	Conns     int32        `json:"conns"`
	IdleConns int32        `json:"idle_conns"`
	Error     string       `json:"error,omitempty"`
}

// Ready reports whether records can be written.
func (h Health) Ready() bool {
	return h.Reachable && h.Schema.UpToDate()
}

// Health pings the server and compares the applied schema with the embedded one.
func (db *DB) Health(ctx context.Context) Health {
	stat := db.Pool.Stat()
	h := Health{Conns: stat.TotalConns(), IdleConns: stat.IdleConns()}

	latest, err := EmbeddedSchemaVersion()
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Schema.Latest = latest

	if err := db.Pool.Ping(ctx); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Reachable = true

	var version int64
	if err := db.Pool.QueryRow(ctx, schemaVersionQuery).Scan(&version, &h.Schema.Dirty); err != nil {
		// No schema_migrations table or row: nothing applied yet.
		db.log.WithError(err).Debug("Schema version unavailable")
		return h
	}
	if version > 0 {
		h.Schema.Current = uint(version)
	}
	return h
}
