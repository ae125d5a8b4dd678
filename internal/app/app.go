// Package app assembles the results services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/database"
	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
	"github.com/assessment-results-server/internal/notify"
	"github.com/assessment-results-server/internal/reportstore"
	"github.com/assessment-results-server/internal/repository"
	"github.com/assessment-results-server/internal/service"
	"github.com/assessment-results-server/pkg/external"
)

// App holds every long-lived component of a running server.
type App struct {
	Config     *domain.Config
	Logger     *logrus.Logger
	Metrics    *monitoring.Metrics
	Catalog    *assessment.Catalog
	Store      domain.ReportStore
	Hub        *notify.Hub
	Classifier *service.ClassifierService
	Loader     *service.ReportLoader
	Dashboards *service.DashboardService
	Tabs       *service.TabService
	Dispatcher *service.DeliveryDispatcher
	Delivery   *service.DeliveryService
	Deliveries domain.DeliveryRecorder
	Email      *external.EmailClient

	db *database.DB
}

// New builds the application. Optional backends that fail to start are logged and skipped;
// the report store is required.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: monitoring.NewMetrics(prometheus.NewRegistry()),
	}

	catalog, err := assessment.NewDefaultCatalog(logger, cfg.Assessments.Dir, cfg.Assessments.Pattern)
	if err != nil {
		return nil, fmt.Errorf("loading assessment catalog: %w", err)
	}
	a.Catalog = catalog

	store, err := reportstore.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening report store: %w", err)
	}
	a.Store = store

	var hubOpts []notify.HubOption
	hubOpts = append(hubOpts, notify.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	if cfg.Store.Driver == reportstore.DriverRedis {
		relay, err := notify.NewRedisRelay(ctx, cfg.Redis.URL, "", logger)
		if err != nil {
			logger.WithError(err).Warn("Notification relay unavailable, notifications stay local")
		} else {
			hubOpts = append(hubOpts, notify.WithRelay(relay))
		}
	}
	hub, err := notify.NewHub(logger, 0, hubOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating notification hub: %w", err)
	}
	if err := hub.Start(ctx); err != nil {
		logger.WithError(err).Warn("Notification relay subscription failed, notifications stay local")
	}
	a.Hub = hub

	if cfg.Database.AuditDeliveries {
		db, err := database.Open(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			logger.WithError(err).Warn("Delivery audit database unavailable, audit disabled")
		} else if health := db.Health(ctx); !health.Ready() {
			logger.WithFields(logrus.Fields{
				"schema_version": health.Schema.Current,
				"required":       health.Schema.Latest,
				"dirty":          health.Schema.Dirty,
			}).Warn("Delivery audit schema not current, run `resultsctl migrate up`; audit disabled")
			db.Close()
		} else {
			a.db = db
			a.Deliveries = repository.NewDeliveryRepository(db.Pool, logger)
		}
	}

	var sender domain.EmailSender = disabledSender{}
	if cfg.Email.Endpoint != "" {
		client, err := external.NewEmailClient(external.EmailClientConfig{
			Endpoint:   cfg.Email.Endpoint,
			Timeout:    cfg.Email.Timeout,
			RateLimit:  cfg.Email.RateLimit,
			RetryCount: cfg.Email.RetryCount,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating email client: %w", err)
		}
		a.Email = client
		sender = client
	} else {
		logger.Warn("No email endpoint configured, email deliveries will fail and be logged")
	}

	a.Classifier = service.NewClassifierService(logger, a.Metrics)
	a.Loader = service.NewReportLoader(store, catalog, logger, a.Metrics)
	a.Dashboards = service.NewDashboardService(a.Loader, service.NewDashboardBuilder(logger, a.Metrics))
	a.Tabs = service.NewTabService(store, catalog, logger, a.Metrics)

	dispatchOpts := []service.DeliveryOption{service.WithNotifier(hub)}
	if cfg.Email.Timeout > 0 {
		dispatchOpts = append(dispatchOpts, service.WithDeliveryTimeout(cfg.Email.Timeout*time.Duration(cfg.Email.RetryCount+1)))
	}
	if a.Deliveries != nil {
		dispatchOpts = append(dispatchOpts, service.WithDeliveryRecorder(a.Deliveries))
	}
	a.Dispatcher = service.NewDeliveryDispatcher(sender, logger, a.Metrics, dispatchOpts...)
	a.Delivery = service.NewDeliveryService(a.Loader, a.Dispatcher)

	return a, nil
}

// AuditHealth reports the delivery audit database, or nil when auditing is off.
func (a *App) AuditHealth(ctx context.Context) *database.Health {
	if a.db == nil {
		return nil
	}
	h := a.db.Health(ctx)
	return &h
}

// Close waits for in-flight deliveries and releases every backend.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	var errs []error
	if a.Hub != nil {
		errs = append(errs, a.Hub.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}

// disabledSender fails every delivery; it stands in when no endpoint is configured.
type disabledSender struct{}

func (disabledSender) Send(ctx context.Context, req *domain.DeliveryRequest) error {
	return fmt.Errorf("%w: no email endpoint configured", domain.ErrEmailDeliveryFailed)
}
