package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/app"
	"github.com/assessment-results-server/internal/domain"
)

var surgeryReport = map[string]any{
	"overallScore": 74,
	"categories": []any{
		map[string]any{"name": "Physical Fitness", "score": 82, "maxScore": 100, "description": "Aerobic capacity", "recommendations": []any{"Walk daily"}},
		map[string]any{"name": "Nutritional Status", "score": 65, "maxScore": 100, "description": "Protein intake", "recommendations": []any{"More protein"}, "priority": "high"},
	},
	"summary": "Mostly ready",
}

func newTestSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg := &domain.Config{
		Store: domain.StoreConfig{Driver: "memory", TTL: time.Hour},
		MCP:   domain.MCPConfig{ServerName: "results-test", RequestTimeout: 5 * time.Second},
	}
	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	server := NewServer(a)
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func structured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestListTools(t *testing.T) {
	session := newTestSession(t)

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, toolNames, names)
}

func TestListAssessmentsTool(t *testing.T) {
	session := newTestSession(t)

	res := callTool(t, session, "list_assessments", nil)

	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, float64(4), structured(t, res)["count"])
}

func TestClassifyScoreTool(t *testing.T) {
	session := newTestSession(t)

	tests := []struct {
		name  string
		args  map[string]any
		level string
	}{
		{"stock ascending scale", map[string]any{"score": 74}, "high"},
		{"raw score out of max", map[string]any{"score": 18, "max_score": 20}, "optimal"},
		{"assessment scale", map[string]any{"score": 30, "assessment_id": "anaesthesia-risk"}, "moderate"},
		{"risk polarity", map[string]any{"score": 80, "polarity": "risk"}, "severe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, session, "classify_score", tt.args)
			require.False(t, res.IsError, resultText(t, res))

			rating := structured(t, res)["rating"].(map[string]any)
			assert.Equal(t, tt.level, rating["level"])
		})
	}
}

func TestClassifyScoreTool_UnknownAssessment(t *testing.T) {
	session := newTestSession(t)

	res := callTool(t, session, "classify_score", map[string]any{"score": 50, "assessment_id": "nope"})

	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), domain.ErrCodeUnknownAssessment)
}

func TestPositionBenchmarkTool(t *testing.T) {
	session := newTestSession(t)

	res := callTool(t, session, "position_benchmark", map[string]any{"your": 82, "average": 65, "optimal": 85})
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, float64(45), structured(t, res)["range_start"])

	res = callTool(t, session, "position_benchmark", map[string]any{"your": 1, "average": 2, "optimal": 3, "window": "median"})
	assert.True(t, res.IsError)
}

func TestReportDashboardTools(t *testing.T) {
	session := newTestSession(t)

	res := callTool(t, session, "get_report_dashboard", map[string]any{"assessment_id": "surgery-readiness"})
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), domain.ErrCodeNoReportFound)
	assert.Contains(t, resultText(t, res), domain.DestinationAssessmentList)

	res = callTool(t, session, "save_report", map[string]any{"assessment_id": "surgery-readiness", "report": surgeryReport})
	require.False(t, res.IsError, resultText(t, res))
	assert.NotEmpty(t, structured(t, res)["reportId"])

	res = callTool(t, session, "get_report_dashboard", map[string]any{"assessment_id": "surgery-readiness"})
	require.False(t, res.IsError, resultText(t, res))
	assert.Contains(t, resultText(t, res), "Surgery Readiness Assessment")
	assert.Contains(t, resultText(t, res), "Physical Fitness")

	dashboard := structured(t, res)
	overall := dashboard["overall"].(map[string]any)
	assert.Equal(t, "high", overall["rating"].(map[string]any)["level"])

	// Other sessions do not see the report
	res = callTool(t, session, "get_report_dashboard", map[string]any{"session_id": "other", "assessment_id": "surgery-readiness"})
	assert.True(t, res.IsError)
}

func TestEmailReportTool(t *testing.T) {
	session := newTestSession(t)
	callTool(t, session, "save_report", map[string]any{"assessment_id": "surgery-readiness", "report": surgeryReport})

	// No endpoint is configured, yet the email is still reported as sent.
	res := callTool(t, session, "email_report", map[string]any{
		"assessment_id":   "surgery-readiness",
		"recipient_email": "pat@example.com",
	})
	require.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, true, structured(t, res)["sent"])

	res = callTool(t, session, "email_report", map[string]any{
		"assessment_id":   "surgery-readiness",
		"recipient_email": "invalid",
	})
	assert.True(t, res.IsError)
}
