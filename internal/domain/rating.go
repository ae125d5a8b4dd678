package domain

import (
	"fmt"
)

// RatingScale is the data-driven threshold table of one assessment.
// Bands are ordered by strictly decreasing threshold; the last band is the fallback.
type RatingScale struct {
	Polarity Polarity     `json:"polarity" yaml:"polarity"`
	Bands    []RatingBand `json:"bands" yaml:"bands"`
}

// NewRatingScale validates and returns a scale.
func NewRatingScale(polarity Polarity, bands []RatingBand) (RatingScale, error) {
	scale := RatingScale{Polarity: polarity, Bands: append([]RatingBand(nil), bands...)}
	if err := scale.Validate(); err != nil {
		return RatingScale{}, err
	}
	return scale, nil
}

// Validate checks band ordering and that every level belongs to the polarity.
func (s RatingScale) Validate() error {
	if !s.Polarity.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPolarity, s.Polarity)
	}
	if len(s.Bands) == 0 {
		return NewValidationError("bands", "at least one band is required", nil)
	}

	seen := make(map[Level]bool, len(s.Bands))
	for i, band := range s.Bands {
		field := fmt.Sprintf("bands[%d]", i)
		if !band.Level.ValidFor(s.Polarity) {
			return NewValidationError(field+".level", fmt.Sprintf("level is not valid for %s scales", s.Polarity), band.Level)
		}
		if seen[band.Level] {
			return NewValidationError(field+".level", "duplicate level", band.Level)
		}
		seen[band.Level] = true

		if band.Label == "" {
			return NewValidationError(field+".label", "label is required", nil)
		}
		if band.Threshold < 0 || band.Threshold > 100 {
			return NewValidationError(field+".threshold", "threshold must be within [0, 100]", band.Threshold)
		}
		if i > 0 && band.Threshold >= s.Bands[i-1].Threshold {
			return NewValidationError(field+".threshold", "thresholds must be strictly decreasing", band.Threshold)
		}
	}
	return nil
}

// BandFor returns the band carrying the given level, if the scale has one.
func (s RatingScale) BandFor(level Level) (RatingBand, bool) {
	for _, band := range s.Bands {
		if band.Level == level {
			return band, true
		}
	}
	return RatingBand{}, false
}

// DefaultScale returns the stock scale for a polarity.
func DefaultScale(polarity Polarity) RatingScale {
	if polarity == DESCENDING {
		return RatingScale{
			Polarity: DESCENDING,
			Bands: []RatingBand{
				{Threshold: 75, Level: LevelSevere, Label: "Severe Risk", Description: "Significant risk factors need attention before proceeding", Color: "#dc2626", Icon: "alert-octagon"},
				{Threshold: 50, Level: LevelHigh, Label: "High Risk", Description: "Several risk factors should be addressed with your care team", Color: "#ea580c", Icon: "alert-triangle"},
				{Threshold: 25, Level: LevelModerate, Label: "Moderate Risk", Description: "Some risk factors are present and worth monitoring", Color: "#ca8a04", Icon: "info"},
				{Threshold: 0, Level: LevelLow, Label: "Low Risk", Description: "Few risk factors were identified", Color: "#16a34a", Icon: "shield-check"},
			},
		}
	}
	return RatingScale{
		Polarity: ASCENDING,
		Bands: []RatingBand{
			{Threshold: 85, Level: LevelOptimal, Label: "Excellent", Description: "You are in excellent shape in this area", Color: "#16a34a", Icon: "star"},
			{Threshold: 70, Level: LevelHigh, Label: "Good", Description: "A solid result with some room to improve", Color: "#2563eb", Icon: "check-circle"},
			{Threshold: 55, Level: LevelModerate, Label: "Fair", Description: "Targeted changes would make a real difference", Color: "#ca8a04", Icon: "info"},
			{Threshold: 0, Level: LevelLow, Label: "Needs Improvement", Description: "This area needs attention and support", Color: "#dc2626", Icon: "alert-triangle"},
		},
	}
}
