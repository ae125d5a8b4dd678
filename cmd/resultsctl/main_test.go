package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const surgeryReport = `{
	"overallScore": 74,
	"categories": [
		{"name": "Physical Fitness", "score": 82, "maxScore": 100, "description": "Aerobic capacity", "recommendations": ["Walk daily"]},
		{"name": "Nutritional Status", "score": 65, "maxScore": 100, "description": "Protein intake", "recommendations": ["More protein"], "priority": "high"}
	],
	"summary": "Mostly ready"
}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd(t *testing.T) {
	cmd := newRootCmd()

	assert.Equal(t, "resultsctl", cmd.Use)
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"classify", "position", "render", "assessments", "migrate"})
}

func TestClassifyCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"percentage", []string{"classify", "74"}, "74% Good (high)"},
		{"raw score", []string{"classify", "18", "--max", "20"}, "90% Excellent (optimal)"},
		{"descending", []string{"classify", "80", "--polarity", "descending"}, "80% Severe Risk (severe)"},
		{"assessment scale", []string{"classify", "30", "--assessment", "anaesthesia-risk"}, "30% Moderate Risk (moderate)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestClassifyCmd_JSON(t *testing.T) {
	out, err := run(t, "", "classify", "55", "--json")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "moderate", result["rating"].(map[string]any)["level"])
}

func TestClassifyCmd_Errors(t *testing.T) {
	_, err := run(t, "", "classify", "abc")
	assert.Error(t, err)

	_, err = run(t, "", "classify", "50", "--polarity", "sideways")
	assert.Error(t, err)

	_, err = run(t, "", "classify", "50", "--assessment", "unknown")
	assert.Error(t, err)
}

func TestPositionCmd(t *testing.T) {
	out, err := run(t, "", "position", "82", "65", "85")
	require.NoError(t, err)
	assert.Contains(t, out, "window  45..100")

	_, err = run(t, "", "position", "82", "65", "85", "--window", "median")
	assert.Error(t, err)

	_, err = run(t, "", "position", "82", "65")
	assert.Error(t, err)
}

func TestRenderCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(surgeryReport), 0o644))

	out, err := run(t, "", "render", path, "--assessment", "surgery-readiness")
	require.NoError(t, err)
	assert.Contains(t, out, "Surgery Readiness Assessment")
	assert.Contains(t, out, "Overall: 74% [Good]")
	assert.Contains(t, out, "Nutritional Status")
}

func TestRenderCmd_Stdin(t *testing.T) {
	out, err := run(t, surgeryReport, "render", "-", "-a", "surgery-readiness", "--json")
	require.NoError(t, err)

	var dashboard map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &dashboard))
	assert.Equal(t, "surgery-readiness", dashboard["assessment_id"])
}

func TestRenderCmd_Errors(t *testing.T) {
	_, err := run(t, "{", "render", "-", "-a", "surgery-readiness")
	assert.Error(t, err)

	_, err = run(t, surgeryReport, "render", "-")
	assert.Error(t, err, "assessment flag is required")

	_, err = run(t, "", "render", filepath.Join(t.TempDir(), "missing.json"), "-a", "surgery-readiness")
	assert.Error(t, err)
}

func TestAssessmentsCmd(t *testing.T) {
	out, err := run(t, "", "assessments")
	require.NoError(t, err)

	for _, id := range []string{"surgery-readiness", "anaesthesia-risk", "biological-age", "inflammation-risk"} {
		assert.Contains(t, out, id)
	}
}

func TestMigrateCmd_RejectsUnknownDirection(t *testing.T) {
	_, err := run(t, "", "migrate", "sideways")
	assert.Error(t, err)
}
