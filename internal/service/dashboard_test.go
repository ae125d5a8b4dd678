package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

func TestDashboardService_Dashboard(t *testing.T) {
	// Arrange
	store := newFakeStore()
	store.put("sess-1", domain.ReportKey("surgery-readiness"), surgeryReport)
	loader := newTestLoader(t, store)
	svc := NewDashboardService(loader, NewDashboardBuilder(quietLogger(), monitoring.NewMetrics(nil)))

	// Act
	dash, err := svc.Dashboard(context.Background(), "sess-1", "surgery-readiness")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Surgery Readiness Assessment", dash.Title)
	assert.Equal(t, domain.DefaultTabs(true), dash.Tabs)
	assert.Equal(t, "Good", dash.Overall.Label)
	assert.Equal(t, domain.LevelHigh, dash.Overall.Rating.Level)
	assert.NotEmpty(t, dash.Disclaimers)
	assert.NotEmpty(t, dash.UniqueFeatures)

	require.Len(t, dash.Categories, 2)
	fitness := dash.Categories[0]
	assert.Equal(t, domain.LevelHigh, fitness.Rating.Level)
	assert.Equal(t, 82.0, fitness.Percent)
	require.NotNil(t, fitness.Benchmark)
	assert.Equal(t, 65.0, fitness.Benchmark.Average)
	assert.Equal(t, 100.0, fitness.Benchmark.Position.RangeEnd)
	assert.Equal(t, 45.0, fitness.Benchmark.Position.RangeStart)

	nutrition := dash.Categories[1]
	assert.Equal(t, domain.LevelModerate, nutrition.Rating.Level)
	assert.Equal(t, domain.PriorityHigh, nutrition.Priority)
}

func TestDashboardService_MissingReportRendersNothing(t *testing.T) {
	loader := newTestLoader(t, newFakeStore())
	svc := NewDashboardService(loader, NewDashboardBuilder(quietLogger(), nil))

	dash, err := svc.Dashboard(context.Background(), "sess-1", "surgery-readiness")

	assert.Nil(t, dash)
	assert.True(t, errors.Is(err, domain.ErrNoReportFound))
}

func TestDashboardBuilder_LevelMismatchIsKeptAndLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	builder := NewDashboardBuilder(logger, nil)

	def, ok := testCatalog(t).Get("surgery-readiness")
	require.True(t, ok)

	report := &domain.OverallReport{
		OverallScore:  86,
		OverallRating: "Ready",
		Categories: []domain.ScoreCategory{
			{Name: "Physical Fitness", Score: 85, MaxScore: 100, Level: domain.LevelHigh, Recommendations: []string{"r"}},
			{Name: "Mental Preparedness", Score: 88, MaxScore: 100, Level: domain.LevelOptimal, Recommendations: []string{"r"}},
		},
	}

	dash := builder.Build(def, report)

	assert.Equal(t, domain.LevelHigh, dash.Categories[0].Rating.Level)
	assert.Equal(t, domain.LevelOptimal, dash.Categories[0].ComputedLevel)
	assert.True(t, dash.Categories[0].LevelMismatch)
	assert.False(t, dash.Categories[1].LevelMismatch)
	assert.Equal(t, "Ready", dash.Overall.Label, "a stored overall rating label is shown as is")
	assert.Equal(t, domain.LevelOptimal, dash.Overall.Rating.Level)
	assert.Equal(t, "Aerobic capacity and strength ahead of surgery", dash.Categories[0].Description)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, "Physical Fitness", entry.Data["category"])
}

func TestDashboardBuilder_NonPercentOverall(t *testing.T) {
	builder := NewDashboardBuilder(quietLogger(), nil)
	def, ok := testCatalog(t).Get("biological-age")
	require.True(t, ok)

	report := &domain.OverallReport{
		OverallScore: 52,
		OverallUnit:  domain.UnitYears,
		Categories: []domain.ScoreCategory{
			{Name: "Sleep Quality", Score: 9, MaxScore: 10, Recommendations: []string{"r"}},
			{Name: "Activity Level", Score: 7, MaxScore: 10, Recommendations: []string{"r"}},
		},
	}

	dash := builder.Build(def, report)

	assert.Equal(t, 52.0, dash.Overall.Score)
	assert.Equal(t, domain.UnitYears, dash.Overall.Unit)
	assert.InDelta(t, 80.0, dash.Overall.Percent, 1e-9)
	assert.Equal(t, domain.LevelHigh, dash.Overall.Rating.Level)
	assert.Equal(t, domain.DefaultTabs(false), dash.Tabs)
}

func TestDashboardBuilder_RiskAssessmentUsesOptimalWindow(t *testing.T) {
	builder := NewDashboardBuilder(quietLogger(), nil)
	def, ok := testCatalog(t).Get("anaesthesia-risk")
	require.True(t, ok)

	report := &domain.OverallReport{
		OverallScore: 80,
		Categories: []domain.ScoreCategory{
			{Name: "Airway Risk", Score: 4, MaxScore: 10, Recommendations: []string{"r"}},
			{Name: "Medication Interactions", Score: 1, MaxScore: 10, Recommendations: []string{"r"}},
		},
	}

	dash := builder.Build(def, report)

	assert.Equal(t, domain.LevelSevere, dash.Overall.Rating.Level)
	airway := dash.Categories[0]
	assert.Equal(t, domain.LevelModerate, airway.Rating.Level)
	require.NotNil(t, airway.Benchmark)
	assert.Equal(t, domain.WindowOptimal, airway.Benchmark.Window)
	assert.Equal(t, 0.0, airway.Benchmark.Position.RangeStart)
	assert.Nil(t, dash.Categories[1].Benchmark)
}
