package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/service"
)

// DefaultSessionID is used when a tool call names no session.
const DefaultSessionID = "mcp"

var toolNames = []string{
	"list_assessments",
	"classify_score",
	"position_benchmark",
	"save_report",
	"get_report_dashboard",
	"email_report",
}

// AssessmentSummary describes one available assessment
type AssessmentSummary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Polarity domain.Polarity `json:"polarity"`
	Tabs     []domain.Tab    `json:"tabs"`
}

// ListAssessmentsParams takes no arguments
type ListAssessmentsParams struct{}

// ListAssessmentsResult lists the catalog
type ListAssessmentsResult struct {
	Assessments []AssessmentSummary `json:"assessments"`
	Count       int                 `json:"count"`
}

// PositionBenchmarkParams defines parameters for the position_benchmark tool
type PositionBenchmarkParams struct {
	Your    float64                `json:"your" jsonschema:"the user's score"`
	Average float64                `json:"average" jsonschema:"population average score"`
	Optimal float64                `json:"optimal" jsonschema:"optimal score"`
	Window  domain.BenchmarkWindow `json:"window,omitempty" jsonschema:"average or optimal; anchors the visible window"`
}

// ReportRef names a stored report
type ReportRef struct {
	SessionID    string `json:"session_id,omitempty" jsonschema:"session holding the report, defaults to mcp"`
	AssessmentID string `json:"assessment_id" jsonschema:"assessment the report belongs to"`
}

// SaveReportParams defines parameters for the save_report tool
type SaveReportParams struct {
	SessionID    string         `json:"session_id,omitempty" jsonschema:"session to store the report in, defaults to mcp"`
	AssessmentID string         `json:"assessment_id" jsonschema:"assessment the report belongs to"`
	Report       map[string]any `json:"report" jsonschema:"the overall report document"`
}

// EmailReportParams defines parameters for the email_report tool
type EmailReportParams struct {
	SessionID      string `json:"session_id,omitempty"`
	AssessmentID   string `json:"assessment_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name,omitempty"`
	ActiveTab      string `json:"active_tab,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_assessments",
		Description: "List the assessments whose results can be presented, with their polarity and tabs",
	}, s.handleListAssessments)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_score",
		Description: "Classify a score into a qualitative rating band, using an assessment's scale, explicit bands or the stock scale",
	}, s.handleClassifyScore)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "position_benchmark",
		Description: "Compute display positions of a score against the population average and optimal score",
	}, s.handlePositionBenchmark)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_report",
		Description: "Validate and store an overall report for a session",
	}, s.handleSaveReport)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_report_dashboard",
		Description: "Build the results dashboard for a stored report",
	}, s.handleGetReportDashboard)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "email_report",
		Description: "Email a stored report. Delivery happens in the background and is always reported as sent",
	}, s.handleEmailReport)
}

func (s *Server) toolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := s.app.Config.MCP.RequestTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) handleListAssessments(ctx context.Context, req *mcp.CallToolRequest, _ ListAssessmentsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_assessments").Debug("Tool invoked")

	defs := s.app.Catalog.List()
	out := ListAssessmentsResult{Assessments: make([]AssessmentSummary, 0, len(defs)), Count: len(defs)}
	for _, def := range defs {
		out.Assessments = append(out.Assessments, AssessmentSummary{
			ID:       def.ID,
			Title:    def.Title,
			Polarity: def.Polarity,
			Tabs:     def.Tabs(),
		})
	}
	return nil, out, nil
}

func (s *Server) handleClassifyScore(ctx context.Context, req *mcp.CallToolRequest, params service.ClassifyScoreParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "classify_score").Debug("Tool invoked")

	scale, err := service.DefinitionScale(s.app.Catalog, &params)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	result, err := s.app.Classifier.ClassifyScore(&params, scale)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return nil, result, nil
}

func (s *Server) handlePositionBenchmark(ctx context.Context, req *mcp.CallToolRequest, params PositionBenchmarkParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "position_benchmark").Debug("Tool invoked")

	window := params.Window
	switch window {
	case "":
		window = domain.WindowAverage
	case domain.WindowAverage, domain.WindowOptimal:
	default:
		return s.createErrorResult(domain.NewValidationError("window", "window must be average or optimal", window)), nil, nil
	}
	return nil, service.PositionWithWindow(params.Your, params.Average, params.Optimal, window), nil
}

func (s *Server) handleSaveReport(ctx context.Context, req *mcp.CallToolRequest, params SaveReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "save_report").Debug("Tool invoked")

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	payload, err := json.Marshal(params.Report)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	report, err := s.app.Loader.Save(ctx, sessionOrDefault(params.SessionID), params.AssessmentID, payload)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return nil, report, nil
}

func (s *Server) handleGetReportDashboard(ctx context.Context, req *mcp.CallToolRequest, params ReportRef) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "get_report_dashboard").Debug("Tool invoked")

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	dashboard, err := s.app.Dashboards.Dashboard(ctx, sessionOrDefault(params.SessionID), params.AssessmentID)
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}

	var text strings.Builder
	if err := s.renderer.Dashboard(&text, dashboard); err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text.String()}},
	}, dashboard, nil
}

func (s *Server) handleEmailReport(ctx context.Context, req *mcp.CallToolRequest, params EmailReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "email_report").Debug("Tool invoked")

	ctx, cancel := s.toolContext(ctx)
	defer cancel()

	receipt, err := s.app.Delivery.EmailReport(ctx, sessionOrDefault(params.SessionID), params.AssessmentID, &service.EmailReportParams{
		RecipientEmail: params.RecipientEmail,
		RecipientName:  params.RecipientName,
		ActiveTab:      domain.Tab(params.ActiveTab),
	})
	if err != nil {
		return s.createErrorResult(err), nil, nil
	}
	return nil, receipt, nil
}

// createErrorResult creates a standardized error result for tool calls.
// Results errors carry their code and recovery destination so the client can act on them.
func (s *Server) createErrorResult(err error) *mcp.CallToolResult {
	text := fmt.Sprintf("Error: %v", err)
	if re, ok := domain.AsResultsError(err); ok {
		text = fmt.Sprintf("Error [%s]: %s", re.Code, re.Message)
		if re.Recovery != "" {
			text += fmt.Sprintf(" (go to %s)", re.Recovery)
		}
	}

	s.logger.WithError(err).Debug("Tool call failed")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func sessionOrDefault(id string) string {
	if strings.TrimSpace(id) == "" {
		return DefaultSessionID
	}
	return id
}
