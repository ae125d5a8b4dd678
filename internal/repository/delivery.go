package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/domain"
)

// Limits applied by ListDeliveries
const (
	DefaultDeliveryLimit = 20
	MaxDeliveryLimit     = 200
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DeliveryRepository records email delivery attempts in the email_deliveries table
type DeliveryRepository struct {
	db  Querier
	log *logrus.Logger
}

// NewDeliveryRepository creates a new delivery repository
func NewDeliveryRepository(db Querier, logger *logrus.Logger) *DeliveryRepository {
	return &DeliveryRepository{
		db:  db,
		log: logger,
	}
}

// RecordDelivery inserts one delivery attempt. ID and AttemptedAt are filled in when empty.
func (r *DeliveryRepository) RecordDelivery(ctx context.Context, record *domain.DeliveryRecord) error {
	if record == nil {
		return domain.NewValidationError("record", "delivery record is required", nil)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.AttemptedAt.IsZero() {
		record.AttemptedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_deliveries (
			id, report_id, session_id, assessment_id, recipient,
			success, error_message, duration_ms, attempted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.ReportID,
		record.SessionID,
		record.AssessmentID,
		record.Recipient,
		record.Success,
		record.Error,
		record.DurationMs,
		record.AttemptedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"delivery_id": record.ID,
			"report_id":   record.ReportID,
			"error":       err,
		}).Error("Failed to record email delivery")
		return fmt.Errorf("recording delivery: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"delivery_id": record.ID,
		"report_id":   record.ReportID,
		"success":     record.Success,
	}).Debug("Email delivery recorded")

	return nil
}

// ListDeliveries returns the most recent attempts for a session, newest first.
func (r *DeliveryRepository) ListDeliveries(ctx context.Context, sessionID string, limit int) ([]*domain.DeliveryRecord, error) {
	limit = normalizeLimit(limit)

	query := `
		SELECT id::text, report_id, session_id, assessment_id, recipient,
			   success, error_message, duration_ms, attempted_at
		FROM email_deliveries
		WHERE session_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}
	defer rows.Close()

	var records []*domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.ReportID,
			&rec.SessionID,
			&rec.AssessmentID,
			&rec.Recipient,
			&rec.Success,
			&rec.Error,
			&rec.DurationMs,
			&rec.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}

	return records, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultDeliveryLimit
	}
	if limit > MaxDeliveryLimit {
		return MaxDeliveryLimit
	}
	return limit
}
