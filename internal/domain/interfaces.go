package domain

import (
	"context"
)

// ReportStore is the per-session key-value store holding report documents and view state.
// Get returns ErrNotFound when the key is absent.
type ReportStore interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, error)
	Set(ctx context.Context, sessionID, key string, payload []byte) error
	Clear(ctx context.Context, sessionID, key string) error
	Close() error
}

// EmailSender submits a delivery request to the email endpoint
type EmailSender interface {
	Send(ctx context.Context, req *DeliveryRequest) error
}

// DeliveryRecorder persists the outcome of each delivery attempt
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, record *DeliveryRecord) error
	ListDeliveries(ctx context.Context, sessionID string, limit int) ([]*DeliveryRecord, error)
}

// Notifier publishes user-visible notifications
type Notifier interface {
	Publish(ctx context.Context, n *Notification) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}

// ReportKey is the store key a report document is saved under.
func ReportKey(assessmentID string) string {
	return "report:" + assessmentID
}

// ViewKey is the store key a tab view state is saved under.
func ViewKey(assessmentID string) string {
	return "view:" + assessmentID
}
