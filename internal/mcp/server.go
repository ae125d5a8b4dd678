// Package mcp exposes the results services as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/app"
	"github.com/assessment-results-server/internal/render"
)

// Transport types
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Server represents the assessment results MCP server
type Server struct {
	app       *app.App
	mcpServer *mcp.Server
	renderer  *render.Renderer
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance and registers every tool.
func NewServer(a *app.App) *Server {
	cfg := a.Config.MCP
	name := cfg.ServerName
	if name == "" {
		name = "assessment-results"
	}
	version := cfg.ServerVersion
	if version == "" {
		version = "1.0.0"
	}

	s := &Server{
		app:       a,
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		renderer:  render.NewRenderer(false),
		logger:    a.Logger,
	}
	s.registerTools()

	s.logger.WithFields(logrus.Fields{
		"server":     name,
		"tool_count": len(toolNames),
	}).Info("MCP server initialized")
	return s
}

// Start runs the server on the requested transport until ctx is cancelled.
func (s *Server) Start(ctx context.Context, transport string, httpPort int) error {
	switch transport {
	case "", TransportStdio:
		s.logger.Info("Starting MCP server on stdio")
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("MCP server failed: %w", err)
		}
		return nil
	case TransportHTTP:
		return s.serveHTTP(ctx, httpPort)
	default:
		return fmt.Errorf("unsupported transport %q", transport)
	}
}

func (s *Server) serveHTTP(ctx context.Context, port int) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("Starting MCP server on streamable HTTP")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("MCP HTTP transport failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Connect serves a single session over t. Tests use it with in-memory transports.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}
