package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

// ReportLoader reads stored reports for a session. Load performs a single read and never writes back.
type ReportLoader struct {
	store   domain.ReportStore
	catalog *assessment.Catalog
	logger  *logrus.Logger
	metrics *monitoring.Metrics
}

// NewReportLoader creates a new report loader
func NewReportLoader(store domain.ReportStore, catalog *assessment.Catalog, logger *logrus.Logger, metrics *monitoring.Metrics) *ReportLoader {
	return &ReportLoader{
		store:   store,
		catalog: catalog,
		logger:  logger,
		metrics: metrics,
	}
}

// Definition resolves an assessment id against the catalog.
func (l *ReportLoader) Definition(assessmentID string) (*assessment.Definition, error) {
	def, ok := l.catalog.Get(assessmentID)
	if !ok {
		return nil, domain.UnknownAssessment(assessmentID)
	}
	return def, nil
}

// Load reads and validates the stored report of an assessment.
// It fails with NO_REPORT_FOUND when nothing is stored and MALFORMED_REPORT when the
// document cannot be decoded or fails validation.
func (l *ReportLoader) Load(ctx context.Context, sessionID, assessmentID string) (*domain.OverallReport, error) {
	def, err := l.Definition(assessmentID)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"session_id": sessionID,
		"assessment": assessmentID,
	}

	payload, err := l.store.Get(ctx, sessionID, domain.ReportKey(assessmentID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.metrics.ObserveReportLoad(assessmentID, "not_found")
			l.logger.WithFields(fields).Info("No stored report found")
			return nil, domain.NoReportFound(sessionID, assessmentID)
		}
		l.metrics.ObserveReportLoad(assessmentID, "error")
		return nil, &storeError{op: "get", err: err}
	}

	report, err := ParseReport(payload, def)
	if err != nil {
		l.metrics.ObserveReportLoad(assessmentID, "malformed")
		l.logger.WithFields(fields).WithError(err).Warn("Stored report is malformed")
		return nil, domain.MalformedReport(err)
	}

	l.metrics.ObserveReportLoad(assessmentID, "ok")
	return report, nil
}

// Save validates a report document and stores it for the session.
// Saving a report starts a fresh results view, so any stored tab state is cleared.
func (l *ReportLoader) Save(ctx context.Context, sessionID, assessmentID string, payload []byte) (*domain.OverallReport, error) {
	def, err := l.Definition(assessmentID)
	if err != nil {
		return nil, err
	}

	report, err := ParseReport(payload, def)
	if err != nil {
		return nil, err
	}

	if report.ReportID == "" {
		report.ReportID = uuid.New().String()
	}
	if report.AssessmentID == "" {
		report.AssessmentID = assessmentID
	}
	if report.GeneratedAt == nil {
		now := time.Now().UTC()
		report.GeneratedAt = &now
	}

	stored, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := l.store.Set(ctx, sessionID, domain.ReportKey(assessmentID), stored); err != nil {
		return nil, &storeError{op: "set", err: err}
	}
	if err := l.store.Clear(ctx, sessionID, domain.ViewKey(assessmentID)); err != nil {
		return nil, &storeError{op: "clear", err: err}
	}

	l.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"assessment": assessmentID,
		"report_id":  report.ReportID,
		"categories": len(report.Categories),
	}).Info("Stored assessment report")
	return report, nil
}

// Clear discards the stored report and view state, as when a new assessment is started.
func (l *ReportLoader) Clear(ctx context.Context, sessionID, assessmentID string) error {
	if _, err := l.Definition(assessmentID); err != nil {
		return err
	}
	for _, key := range []string{domain.ReportKey(assessmentID), domain.ViewKey(assessmentID)} {
		if err := l.store.Clear(ctx, sessionID, key); err != nil {
			return &storeError{op: "clear", err: err}
		}
	}
	return nil
}

// ParseReport decodes a report document and validates it against the assessment's polarity.
// A report without a unit takes the assessment's overall unit.
func ParseReport(payload []byte, def *assessment.Definition) (*domain.OverallReport, error) {
	report, err := domain.DecodeReport(payload)
	if err != nil {
		return nil, domain.NewValidationError("report", "report is not valid JSON: "+err.Error(), nil)
	}
	if report.OverallUnit == "" {
		report.OverallUnit = def.OverallUnit
	}
	if err := report.Validate(def.Polarity); err != nil {
		return nil, err
	}
	return report, nil
}

// storeError marks failures of the backing report store
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("report store %s failed: %v", e.op, e.err)
}

func (e *storeError) Unwrap() error {
	return e.err
}

// IsStoreError reports whether err came from the report store backend.
func IsStoreError(err error) bool {
	var se *storeError
	return errors.As(err, &se)
}
