// Package assessment holds the static per-assessment configuration table: titles, the overall
// score interpretation, category benchmarks and the copy shown around the results dashboard.
package assessment

import (
	"fmt"
	"strings"

	"github.com/assessment-results-server/internal/domain"
)

// CategoryDefinition describes one category the assessment scores
type CategoryDefinition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Benchmark   *domain.Benchmark `yaml:"benchmark" json:"benchmark,omitempty"`
}

// Definition is the configuration record of one assessment
type Definition struct {
	ID              string               `yaml:"id" json:"id"`
	Title           string               `yaml:"title" json:"title"`
	Icon            string               `yaml:"icon" json:"icon,omitempty"`
	Polarity        domain.Polarity      `yaml:"polarity" json:"polarity"`
	OverallUnit     domain.Unit          `yaml:"overall_unit" json:"overall_unit,omitempty"`
	Interpretation  []domain.RatingBand  `yaml:"overall_score_interpretation" json:"overall_score_interpretation"`
	Categories      []CategoryDefinition `yaml:"categories" json:"categories"`
	Timeline        bool                 `yaml:"timeline" json:"timeline"`
	Disclaimers     []string             `yaml:"disclaimers" json:"disclaimers,omitempty"`
	NextSteps       []string             `yaml:"next_steps" json:"next_steps,omitempty"`
	UniqueFeatures  []string             `yaml:"unique_features" json:"unique_features,omitempty"`
	NextDestination string               `yaml:"next_destination" json:"next_destination,omitempty"`
}

// Normalize canonicalizes the polarity and fills in the unit and the stock interpretation.
func (d *Definition) Normalize() {
	d.ID = strings.TrimSpace(d.ID)
	if p, err := domain.ParsePolarity(string(d.Polarity)); err == nil {
		d.Polarity = p
	}
	if d.OverallUnit == "" {
		d.OverallUnit = domain.UnitPercent
	}
	if len(d.Interpretation) == 0 {
		d.Interpretation = domain.DefaultScale(d.Polarity).Bands
	}
	for i := range d.Categories {
		if b := d.Categories[i].Benchmark; b != nil && b.Window == "" {
			b.Window = domain.WindowAverage
		}
	}
}

// Validate checks the definition after Normalize.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return domain.NewValidationError("id", "assessment id is required", nil)
	}
	if d.Title == "" {
		return domain.NewValidationError("title", "title is required", d.ID)
	}
	if _, err := d.RatingScale(); err != nil {
		return fmt.Errorf("assessment %s: %w", d.ID, err)
	}
	for i, c := range d.Categories {
		if c.Name == "" {
			return domain.NewValidationError(fmt.Sprintf("categories[%d].name", i), "category name is required", d.ID)
		}
		if c.Benchmark == nil {
			continue
		}
		switch c.Benchmark.Window {
		case domain.WindowAverage, domain.WindowOptimal:
		default:
			return domain.NewValidationError(fmt.Sprintf("categories[%d].benchmark.window", i), "unknown benchmark window", c.Benchmark.Window)
		}
	}
	return nil
}

// RatingScale returns the validated overall score interpretation.
func (d *Definition) RatingScale() (domain.RatingScale, error) {
	return domain.NewRatingScale(d.Polarity, d.Interpretation)
}

// Scale returns the interpretation without validation. Definitions in a Catalog are already validated.
func (d *Definition) Scale() domain.RatingScale {
	return domain.RatingScale{Polarity: d.Polarity, Bands: d.Interpretation}
}

// Tabs returns the result tabs of the assessment in display order.
func (d *Definition) Tabs() []domain.Tab {
	return domain.DefaultTabs(d.Timeline)
}

// Category looks up a category definition by name, case-insensitively.
func (d *Definition) Category(name string) (*CategoryDefinition, bool) {
	for i := range d.Categories {
		if strings.EqualFold(d.Categories[i].Name, name) {
			return &d.Categories[i], true
		}
	}
	return nil, false
}
