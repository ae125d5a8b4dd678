package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/app"
	"github.com/assessment-results-server/internal/middleware"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP server
type Server struct {
	app    *app.App
	router *gin.Engine
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(a *app.App) *Server {
	cfg := a.Config

	if cfg.Server.Mode == gin.DebugMode || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(a.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(a.Metrics.MetricsMiddleware())

	s := &Server{
		app:    a,
		router: router,
		logger: a.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.app.Config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.app.Config.Metrics.Enabled {
		path := s.app.Config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, s.app.Metrics.PrometheusHandler())
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RequestTimeout(s.app.Config.Server.RequestTimeout))
	{
		v1.GET("/assessments", s.handleListAssessments)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.POST("/classify", s.handleClassify)
		v1.POST("/benchmark", s.handleBenchmark)

		sessions := v1.Group("/sessions/:session")
		{
			sessions.PUT("/reports/:assessment", s.handlePutReport)
			sessions.GET("/reports/:assessment", s.handleGetDashboard)
			sessions.DELETE("/reports/:assessment", s.handleClearReport)
			sessions.POST("/reports/:assessment/email", s.handleEmailReport)

			sessions.GET("/views/:assessment", s.handleViewStatus)
			sessions.POST("/views/:assessment/tabs/:tab", s.handleSelectTab)
			sessions.POST("/views/:assessment/next", s.handleProceed)
			sessions.POST("/views/:assessment/back", s.handleBack)

			sessions.GET("/notifications", s.handleNotifications)
			sessions.GET("/deliveries", s.handleDeliveries)
		}
	}

	// The WebSocket stream is long-lived and sits outside the request timeout.
	s.router.GET("/api/v1/sessions/:session/notifications/ws", s.handleNotificationStream)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"version":     Version,
		"store":       s.app.Config.Store.Driver,
		"assessments": len(s.app.Catalog.List()),
	}
	if s.app.Email != nil {
		body["email_breaker"] = s.app.Email.BreakerState()
	}
	if audit := s.app.AuditHealth(c.Request.Context()); audit != nil {
		body["delivery_audit"] = audit
		if !audit.Ready() {
			body["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, body)
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.CorrelationIDKey)
}

