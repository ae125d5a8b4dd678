package service

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/assessment"
	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/monitoring"
)

// Classify maps a percentage score onto a rating scale.
// The first band whose threshold the score reaches wins, so boundaries are upper-inclusive.
// Out-of-range scores are clamped and NaN is treated as 0.
func Classify(scorePercent float64, scale domain.RatingScale) domain.Rating {
	if len(scale.Bands) == 0 {
		scale = domain.DefaultScale(scale.Polarity)
	}

	score := clampPercent(scorePercent)
	for _, band := range scale.Bands {
		if score >= band.Threshold {
			return band.Rating()
		}
	}
	return scale.Bands[len(scale.Bands)-1].Rating()
}

// Percent normalizes score/maxScore into [0,100]. A non-positive maxScore yields 0.
func Percent(score, maxScore float64) float64 {
	if maxScore <= 0 || math.IsNaN(score) || math.IsNaN(maxScore) {
		return 0
	}
	return clampPercent(score / maxScore * 100)
}

// LevelResolution is the outcome of reconciling a category's stored level with its score
type LevelResolution struct {
	Rating   domain.Rating
	Computed domain.Rating
	Percent  float64
	Mismatch bool
}

// ResolveLevel rates a category. An explicit level on the category takes precedence
// over the computed one; a disagreement is reported, never corrected.
func ResolveLevel(category domain.ScoreCategory, scale domain.RatingScale) LevelResolution {
	pct := Percent(category.Score, category.MaxScore)
	computed := Classify(pct, scale)

	res := LevelResolution{
		Rating:   computed,
		Computed: computed,
		Percent:  pct,
	}
	if category.Level == "" || category.Level == computed.Level {
		return res
	}

	res.Mismatch = true
	if band, ok := scale.BandFor(category.Level); ok {
		res.Rating = band.Rating()
	} else {
		res.Rating = domain.Rating{
			Level: category.Level,
			Label: titleCase(string(category.Level)),
		}
	}
	return res
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ClassifierService wraps the pure classifier with logging and metrics
type ClassifierService struct {
	logger  *logrus.Logger
	metrics *monitoring.Metrics
}

// NewClassifierService creates a new classifier service
func NewClassifierService(logger *logrus.Logger, metrics *monitoring.Metrics) *ClassifierService {
	return &ClassifierService{
		logger:  logger,
		metrics: metrics,
	}
}

// ClassifyScoreParams are the inputs of an ad-hoc classification
type ClassifyScoreParams struct {
	Score        float64             `json:"score"`
	MaxScore     float64             `json:"max_score,omitempty"`
	Polarity     domain.Polarity     `json:"polarity,omitempty"`
	Bands        []domain.RatingBand `json:"bands,omitempty"`
	AssessmentID string              `json:"assessment_id,omitempty"`
}

// ClassifyScoreResult is the outcome of an ad-hoc classification
type ClassifyScoreResult struct {
	Percent float64            `json:"percent"`
	Rating  domain.Rating      `json:"rating"`
	Scale   domain.RatingScale `json:"scale"`
}

// ClassifyScore classifies a raw or percentage score against either an explicit scale
// or the stock scale of the polarity.
func (c *ClassifierService) ClassifyScore(params *ClassifyScoreParams, scale *domain.RatingScale) (*ClassifyScoreResult, error) {
	if math.IsNaN(params.Score) || math.IsInf(params.Score, 0) {
		return nil, domain.NewValidationError("score", "score must be a finite number", params.Score)
	}

	resolved, err := c.resolveScale(params, scale)
	if err != nil {
		return nil, err
	}

	pct := params.Score
	if params.MaxScore != 0 {
		if params.MaxScore < 0 {
			return nil, domain.NewValidationError("max_score", "max_score must be positive", params.MaxScore)
		}
		pct = Percent(params.Score, params.MaxScore)
	}
	pct = clampPercent(pct)

	rating := Classify(pct, resolved)
	c.metrics.ObserveClassification(params.AssessmentID, string(rating.Level))

	c.logger.WithFields(logrus.Fields{
		"assessment": params.AssessmentID,
		"polarity":   resolved.Polarity,
		"percent":    pct,
		"level":      rating.Level,
	}).Debug("Classified score")

	return &ClassifyScoreResult{
		Percent: pct,
		Rating:  rating,
		Scale:   resolved,
	}, nil
}

func (c *ClassifierService) resolveScale(params *ClassifyScoreParams, scale *domain.RatingScale) (domain.RatingScale, error) {
	if scale != nil {
		return *scale, nil
	}

	polarity, err := domain.ParsePolarity(string(params.Polarity))
	if err != nil {
		return domain.RatingScale{}, domain.NewValidationError("polarity", "polarity must be ascending or descending", params.Polarity)
	}
	if len(params.Bands) == 0 {
		return domain.DefaultScale(polarity), nil
	}
	return domain.NewRatingScale(polarity, params.Bands)
}

// DefinitionScale returns the rating scale of params.AssessmentID when the caller named an
// assessment without supplying bands of their own. It returns nil when the stock scale applies.
func DefinitionScale(catalog *assessment.Catalog, params *ClassifyScoreParams) (*domain.RatingScale, error) {
	if params.AssessmentID == "" || len(params.Bands) > 0 {
		return nil, nil
	}
	def, ok := catalog.Get(params.AssessmentID)
	if !ok {
		return nil, domain.UnknownAssessment(params.AssessmentID)
	}
	scale, err := def.RatingScale()
	if err != nil {
		return nil, err
	}
	return &scale, nil
}
