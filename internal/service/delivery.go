package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

const defaultDeliveryTimeout = 30 * time.Second

// DeliveryDispatcher sends reports to the email delivery endpoint without making the caller wait.
// Dispatch always reports the email as sent; the real outcome is only logged, counted,
// recorded and, on success, announced through a notification.
type DeliveryDispatcher struct {
	sender   domain.EmailSender
	recorder domain.DeliveryRecorder
	notifier domain.Notifier
	logger   *logrus.Logger
	metrics  *monitoring.Metrics
	timeout  time.Duration

	wg sync.WaitGroup
}

// DeliveryOption customizes a DeliveryDispatcher
type DeliveryOption func(*DeliveryDispatcher)

// WithDeliveryRecorder records every resolved delivery attempt.
func WithDeliveryRecorder(recorder domain.DeliveryRecorder) DeliveryOption {
	return func(d *DeliveryDispatcher) { d.recorder = recorder }
}

// WithNotifier publishes a notification when a delivery succeeds.
func WithNotifier(notifier domain.Notifier) DeliveryOption {
	return func(d *DeliveryDispatcher) { d.notifier = notifier }
}

// WithDeliveryTimeout bounds each background delivery.
func WithDeliveryTimeout(timeout time.Duration) DeliveryOption {
	return func(d *DeliveryDispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDeliveryDispatcher creates a new delivery dispatcher
func NewDeliveryDispatcher(sender domain.EmailSender, logger *logrus.Logger, metrics *monitoring.Metrics, opts ...DeliveryOption) *DeliveryDispatcher {
	d := &DeliveryDispatcher{
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		timeout: defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates the request and starts the delivery in the background.
// Only invalid input is returned as an error; delivery failures never reach the caller.
func (d *DeliveryDispatcher) Dispatch(ctx context.Context, sessionID, assessmentID string, req *domain.DeliveryRequest) (*domain.DeliveryReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	outgoing := *req
	if outgoing.ReportID == "" {
		outgoing.ReportID = uuid.New().String()
	}

	// The request context ends with the HTTP response; the delivery must outlive it.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.metrics.DeliveryStarted()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.deliver(bg, sessionID, assessmentID, &outgoing)
	}()

	return &domain.DeliveryReceipt{
		ReportID:    outgoing.ReportID,
		Sent:        true,
		RequestedAt: time.Now().UTC(),
	}, nil
}

// Wait blocks until every dispatched delivery has resolved.
func (d *DeliveryDispatcher) Wait() {
	d.wg.Wait()
}

func (d *DeliveryDispatcher) deliver(ctx context.Context, sessionID, assessmentID string, req *domain.DeliveryRequest) {
	start := time.Now()
	err := d.sender.Send(ctx, req)
	duration := time.Since(start)

	d.metrics.DeliveryFinished(err == nil)

	fields := logrus.Fields{
		"session_id":  sessionID,
		"assessment":  assessmentID,
		"report_id":   req.ReportID,
		"active_tab":  req.ActiveTab,
		"duration_ms": duration.Milliseconds(),
	}

	record := &domain.DeliveryRecord{
		ID:           uuid.New().String(),
		ReportID:     req.ReportID,
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		Recipient:    req.RecipientEmail,
		Success:      err == nil,
		AttemptedAt:  start.UTC(),
		DurationMs:   duration.Milliseconds(),
	}

	if err != nil {
		record.Error = err.Error()
		d.logger.WithFields(fields).WithError(err).Error("Email delivery failed")
	} else {
		d.logger.WithFields(fields).Info("Email delivery succeeded")
	}

	// Bookkeeping gets its own budget so a slow endpoint cannot starve it.
	bookkeeping, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if d.recorder != nil {
		if recErr := d.recorder.RecordDelivery(bookkeeping, record); recErr != nil {
			d.logger.WithFields(fields).WithError(recErr).Warn("Failed to record email delivery")
		}
	}

	if err == nil && d.notifier != nil {
		n := &domain.Notification{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Type:      domain.NotificationResultsReady,
			Message:   "Your results are ready and have been emailed to you.",
			ReportID:  req.ReportID,
			CreatedAt: time.Now().UTC(),
		}
		if pubErr := d.notifier.Publish(bookkeeping, n); pubErr != nil {
			d.logger.WithFields(fields).WithError(pubErr).Warn("Failed to publish results notification")
		}
	}
}

// EmailReportParams are the user-supplied parts of an email request
type EmailReportParams struct {
	RecipientEmail string     `json:"recipient_email"`
	RecipientName  string     `json:"recipient_name"`
	PageURL        string     `json:"page_url"`
	ActiveTab      domain.Tab `json:"active_tab"`
}

// DeliveryService emails a session's stored report
type DeliveryService struct {
	loader     *ReportLoader
	dispatcher *DeliveryDispatcher
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(loader *ReportLoader, dispatcher *DeliveryDispatcher) *DeliveryService {
	return &DeliveryService{
		loader:     loader,
		dispatcher: dispatcher,
	}
}

// EmailReport loads the stored report and dispatches it for delivery.
func (s *DeliveryService) EmailReport(ctx context.Context, sessionID, assessmentID string, params *EmailReportParams) (*domain.DeliveryReceipt, error) {
	def, err := s.loader.Definition(assessmentID)
	if err != nil {
		return nil, err
	}
	report, err := s.loader.Load(ctx, sessionID, assessmentID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	activeTab := params.ActiveTab
	if activeTab == "" {
		activeTab = domain.TabOverview
	}

	return s.dispatcher.Dispatch(ctx, sessionID, assessmentID, &domain.DeliveryRequest{
		RecipientEmail: params.RecipientEmail,
		RecipientName:  params.RecipientName,
		AssessmentType: def.Title,
		Report:         payload,
		ReportID:       report.ReportID,
		PageURL:        params.PageURL,
		ActiveTab:      activeTab,
	})
}
