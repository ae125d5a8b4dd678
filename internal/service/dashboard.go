package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

// BenchmarkView pairs a category's reference scores with their display positions
type BenchmarkView struct {
	Average  float64                  `json:"average"`
	Optimal  float64                  `json:"optimal"`
	Window   domain.BenchmarkWindow   `json:"window"`
	Position domain.BenchmarkPosition `json:"position"`
}

// CategoryView is one rendered category
type CategoryView struct {
	Name             string                   `json:"name"`
	Description      string                   `json:"description"`
	Score            float64                  `json:"score"`
	MaxScore         float64                  `json:"max_score"`
	Percent          float64                  `json:"percent"`
	Rating           domain.Rating            `json:"rating"`
	ComputedLevel    domain.Level             `json:"computed_level"`
	LevelMismatch    bool                     `json:"level_mismatch"`
	Priority         domain.Priority          `json:"priority,omitempty"`
	Recommendations  []string                 `json:"recommendations"`
	RiskFactors      []string                 `json:"risk_factors,omitempty"`
	Timeline         string                   `json:"timeline,omitempty"`
	DetailedAnalysis *domain.DetailedAnalysis `json:"detailed_analysis,omitempty"`
	Benchmark        *BenchmarkView           `json:"benchmark,omitempty"`
}

// OverallView is the headline score of the dashboard. Score keeps the report's unit;
// Percent is the value that was classified.
type OverallView struct {
	Score   float64       `json:"score"`
	Unit    domain.Unit   `json:"unit"`
	Percent float64       `json:"percent"`
	Label   string        `json:"label"`
	Rating  domain.Rating `json:"rating"`
}

// Dashboard is the fully computed results view model
type Dashboard struct {
	AssessmentID   string          `json:"assessment_id"`
	Title          string          `json:"title"`
	Icon           string          `json:"icon,omitempty"`
	Polarity       domain.Polarity `json:"polarity"`
	ReportID       string          `json:"report_id,omitempty"`
	Overall        OverallView     `json:"overall"`
	Categories     []CategoryView  `json:"categories"`
	Summary        string          `json:"summary,omitempty"`
	Tabs           []domain.Tab    `json:"tabs"`
	Disclaimers    []string        `json:"disclaimers,omitempty"`
	NextSteps      []string        `json:"next_steps,omitempty"`
	UniqueFeatures []string        `json:"unique_features,omitempty"`
	GeneratedAt    *time.Time      `json:"generated_at,omitempty"`
}

// DashboardBuilder turns a validated report into the dashboard view model
type DashboardBuilder struct {
	logger  *logrus.Logger
	metrics *monitoring.Metrics
}

// NewDashboardBuilder creates a new dashboard builder
func NewDashboardBuilder(logger *logrus.Logger, metrics *monitoring.Metrics) *DashboardBuilder {
	return &DashboardBuilder{
		logger:  logger,
		metrics: metrics,
	}
}

// Build computes ratings and benchmark positions for every category of the report.
func (b *DashboardBuilder) Build(def *assessment.Definition, report *domain.OverallReport) *Dashboard {
	scale := def.Scale()

	categories := make([]CategoryView, 0, len(report.Categories))
	percents := make([]float64, 0, len(report.Categories))
	for _, cat := range report.Categories {
		view := b.buildCategory(def, scale, cat)
		percents = append(percents, view.Percent)
		categories = append(categories, view)
	}

	return &Dashboard{
		AssessmentID:   def.ID,
		Title:          def.Title,
		Icon:           def.Icon,
		Polarity:       def.Polarity,
		ReportID:       report.ReportID,
		Overall:        b.buildOverall(def, scale, report, percents),
		Categories:     categories,
		Summary:        report.Summary,
		Tabs:           def.Tabs(),
		Disclaimers:    def.Disclaimers,
		NextSteps:      def.NextSteps,
		UniqueFeatures: def.UniqueFeatures,
		GeneratedAt:    report.GeneratedAt,
	}
}

func (b *DashboardBuilder) buildCategory(def *assessment.Definition, scale domain.RatingScale, cat domain.ScoreCategory) CategoryView {
	res := ResolveLevel(cat, scale)
	if res.Mismatch {
		b.logger.WithFields(logrus.Fields{
			"assessment":     def.ID,
			"category":       cat.Name,
			"percent":        res.Percent,
			"explicit_level": cat.Level,
			"computed_level": res.Computed.Level,
		}).Debug("Stored level disagrees with score, keeping stored level")
	}
	b.metrics.ObserveClassification(def.ID, string(res.Rating.Level))

	view := CategoryView{
		Name:             cat.Name,
		Description:      cat.Description,
		Score:            cat.Score,
		MaxScore:         cat.MaxScore,
		Percent:          res.Percent,
		Rating:           res.Rating,
		ComputedLevel:    res.Computed.Level,
		LevelMismatch:    res.Mismatch,
		Priority:         cat.Priority,
		Recommendations:  cat.Recommendations,
		RiskFactors:      cat.RiskFactors,
		Timeline:         cat.Timeline,
		DetailedAnalysis: cat.DetailedAnalysis,
	}

	if catDef, ok := def.Category(cat.Name); ok {
		if view.Description == "" {
			view.Description = catDef.Description
		}
		if bm := catDef.Benchmark; bm != nil {
			view.Benchmark = &BenchmarkView{
				Average:  bm.Average,
				Optimal:  bm.Optimal,
				Window:   bm.Window,
				Position: PositionWithWindow(res.Percent, bm.Average, bm.Optimal, bm.Window),
			}
		}
	}
	return view
}

// buildOverall classifies the overall score. Scores in other units than percent are
// classified through the mean category percentage instead.
func (b *DashboardBuilder) buildOverall(def *assessment.Definition, scale domain.RatingScale, report *domain.OverallReport, percents []float64) OverallView {
	pct := report.OverallScore
	if !report.OverallUnit.IsPercent() {
		pct = mean(percents)
	}
	pct = clampPercent(pct)

	rating := Classify(pct, scale)
	label := rating.Label
	if report.OverallRating != "" {
		label = report.OverallRating
	}

	return OverallView{
		Score:   report.OverallScore,
		Unit:    report.OverallUnit,
		Percent: pct,
		Label:   label,
		Rating:  rating,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// DashboardService loads a session's report and builds its dashboard
type DashboardService struct {
	loader  *ReportLoader
	builder *DashboardBuilder
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(loader *ReportLoader, builder *DashboardBuilder) *DashboardService {
	return &DashboardService{
		loader:  loader,
		builder: builder,
	}
}

// Dashboard loads the stored report once and builds its view model.
func (s *DashboardService) Dashboard(ctx context.Context, sessionID, assessmentID string) (*Dashboard, error) {
	def, err := s.loader.Definition(assessmentID)
	if err != nil {
		return nil, err
	}
	report, err := s.loader.Load(ctx, sessionID, assessmentID)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(def, report), nil
}
