// Package config provides configuration management for the results server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/assessment-results-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// Sessions live in a local SQLite file and no other service is required.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Session store settings
	StoreMaxEntries int           // Maximum entries kept by the memory store
	StoreTTL        time.Duration // Lifetime of stored reports and view state

	// Assessment definitions beyond the built-in set
	AssessmentsDir string

	// Optional email endpoint; empty disables email delivery
	EmailEndpoint string

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".assessment-results")

	return &LiteConfig{
		DataDir:         dataDir,
		StoreMaxEntries: 1000,
		StoreTTL:        24 * time.Hour,
		Transport:       "stdio",
		HTTPPort:        8080,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("RESULTS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("RESULTS_STORE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StoreMaxEntries = n
		}
	}
	if v := os.Getenv("RESULTS_STORE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StoreTTL = d
		}
	}

	cfg.AssessmentsDir = os.Getenv("RESULTS_ASSESSMENTS_DIR")
	cfg.EmailEndpoint = os.Getenv("RESULTS_EMAIL_ENDPOINT")

	if v := os.Getenv("RESULTS_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("RESULTS_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("RESULTS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RESULTS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// SessionDBPath returns the path to the SQLite session database.
func (c *LiteConfig) SessionDBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// ToConfig expands the lite settings into a full configuration backed by SQLite.
// Logs go to stderr because stdout carries the stdio transport.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host: "127.0.0.1",
			Port: c.HTTPPort,
			Mode: "release",
		},
		Store: domain.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: c.SessionDBPath(),
			TTL:        c.StoreTTL,
			MaxEntries: c.StoreMaxEntries,
		},
		Email: domain.EmailConfig{
			Endpoint:   c.EmailEndpoint,
			Timeout:    30 * time.Second,
			RateLimit:  5,
			RetryCount: 2,
		},
		Assessments: domain.AssessmentsConfig{
			Dir:     c.AssessmentsDir,
			Pattern: "**/*.{yaml,yml}",
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:     "assessment-results-lite",
			ServerVersion:  "1.0.0",
			RequestTimeout: 30 * time.Second,
		},
	}
}
