package assessment

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewDefaultCatalog_BuiltinDefinitions(t *testing.T) {
	catalog, err := NewDefaultCatalog(quietLogger(), "", "")
	require.NoError(t, err)

	ids := make([]string, 0)
	for _, def := range catalog.List() {
		ids = append(ids, def.ID)
	}
	assert.Equal(t, []string{"anaesthesia-risk", "biological-age", "inflammation-risk", "surgery-readiness"}, ids)

	surgery, ok := catalog.Get("surgery-readiness")
	require.True(t, ok)
	assert.Equal(t, domain.ASCENDING, surgery.Polarity)
	assert.Len(t, surgery.Tabs(), 4)

	risk, ok := catalog.Get("anaesthesia-risk")
	require.True(t, ok)
	assert.Equal(t, domain.DESCENDING, risk.Polarity)
	airway, ok := risk.Category("airway risk")
	require.True(t, ok)
	require.NotNil(t, airway.Benchmark)
	assert.Equal(t, domain.WindowOptimal, airway.Benchmark.Window)

	age, ok := catalog.Get("biological-age")
	require.True(t, ok)
	assert.Equal(t, domain.UnitYears, age.OverallUnit)
	assert.Len(t, age.Tabs(), 3)
}

func TestCatalog_DefaultInterpretationForPolarity(t *testing.T) {
	catalog, err := NewDefaultCatalog(quietLogger(), "", "")
	require.NoError(t, err)

	inflammation, ok := catalog.Get("inflammation-risk")
	require.True(t, ok)

	scale := inflammation.Scale()
	require.Len(t, scale.Bands, 4)
	assert.Equal(t, domain.LevelSevere, scale.Bands[0].Level)
	assert.Equal(t, domain.WindowAverage, inflammation.Categories[0].Benchmark.Window)
}

func TestCatalog_LoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"extra/sleep-health.yml": &fstest.MapFile{Data: []byte(`
title: Sleep Health
categories:
  - name: Sleep Duration
`)},
		"extra/readme.txt": &fstest.MapFile{Data: []byte("not a definition")},
	}

	catalog := NewCatalog(quietLogger())
	require.NoError(t, catalog.LoadFS(fsys, ""))

	def, ok := catalog.Get("sleep-health")
	require.True(t, ok, "id should default to the file name")
	assert.Equal(t, domain.ASCENDING, def.Polarity)
	assert.Equal(t, domain.UnitPercent, def.OverallUnit)
	assert.Len(t, catalog.List(), 1)
}

func TestCatalog_RejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
	}{
		{
			name: "missing title",
			def:  &Definition{ID: "x"},
		},
		{
			name: "severe band on ascending scale",
			def: &Definition{
				ID:    "x",
				Title: "X",
				Interpretation: []domain.RatingBand{
					{Threshold: 50, Level: domain.LevelSevere, Label: "Bad"},
					{Threshold: 0, Level: domain.LevelLow, Label: "Low"},
				},
			},
		},
		{
			name: "thresholds not decreasing",
			def: &Definition{
				ID:    "x",
				Title: "X",
				Interpretation: []domain.RatingBand{
					{Threshold: 50, Level: domain.LevelHigh, Label: "Good"},
					{Threshold: 70, Level: domain.LevelOptimal, Label: "Great"},
				},
			},
		},
		{
			name: "unknown benchmark window",
			def: &Definition{
				ID:    "x",
				Title: "X",
				Categories: []CategoryDefinition{
					{Name: "A", Benchmark: &domain.Benchmark{Average: 50, Optimal: 80, Window: "median"}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewCatalog(quietLogger())
			assert.Error(t, catalog.Register(tt.def))
			_, ok := catalog.Get("x")
			assert.False(t, ok)
		})
	}
}

func TestCatalog_LoadDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "clinic")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "frailty.yaml"), []byte(`
id: frailty
title: Frailty Screen
polarity: risk
timeline: true
categories:
  - name: Grip Strength
`), 0o644))

	catalog, err := NewDefaultCatalog(quietLogger(), dir, DefaultPattern)
	require.NoError(t, err)

	def, ok := catalog.Get("frailty")
	require.True(t, ok)
	assert.Equal(t, domain.DESCENDING, def.Polarity, "risk is an alias for descending")
	assert.Equal(t, domain.LevelSevere, def.Scale().Bands[0].Level)
}

func TestCatalog_LoadDirMissing(t *testing.T) {
	catalog := NewCatalog(quietLogger())
	assert.Error(t, catalog.LoadDir(filepath.Join(t.TempDir(), "missing"), ""))
}
