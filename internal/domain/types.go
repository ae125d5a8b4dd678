// Package domain contains the core entities shared by the assessment results server:
// score categories, overall reports, qualitative levels, rating scales and tab view state.
//
// Reports are produced upstream by the quiz scoring flow and are treated as read-only input.
// Everything in this package is free of I/O so it can be used from the HTTP API, the MCP tools
// and the command line alike.
package domain

import (
	"errors"
	"strings"
)

// Polarity describes whether a higher score means a better or a worse outcome.
type Polarity string

const (
	// ASCENDING assessments improve with the score (readiness, fitness).
	ASCENDING Polarity = "ascending"
	// DESCENDING assessments get worse with the score (risk style).
	DESCENDING Polarity = "descending"
)

// Level is the qualitative band a score falls into.
// The closed set of members depends on the assessment polarity.
type Level string

const (
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelOptimal  Level = "optimal"
	LevelSevere   Level = "severe"
)

// Priority ranks how urgently a category's recommendations should be acted on.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// Tab identifies one result tab of the dashboard.
type Tab string

const (
	TabOverview        Tab = "overview"
	TabDetailed        Tab = "detailed"
	TabRecommendations Tab = "recommendations"
	TabTimeline        Tab = "timeline"
)

// Unit is the unit the overall score is expressed in.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitYears   Unit = "years"
)

// Validation errors for enum parsing
var (
	ErrInvalidPolarity = errors.New("invalid polarity")
	ErrInvalidLevel    = errors.New("invalid level")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrUnknownTab      = errors.New("unknown tab")
)

// IsValid reports whether the polarity is one of the two supported directions.
func (p Polarity) IsValid() bool {
	switch p {
	case ASCENDING, DESCENDING:
		return true
	default:
		return false
	}
}

// String returns the string representation of the polarity.
func (p Polarity) String() string {
	return string(p)
}

// Levels returns the closed level set for the polarity, ordered from best to worst outcome.
func (p Polarity) Levels() []Level {
	switch p {
	case ASCENDING:
		return []Level{LevelOptimal, LevelHigh, LevelModerate, LevelLow}
	case DESCENDING:
		return []Level{LevelLow, LevelModerate, LevelHigh, LevelSevere}
	default:
		return nil
	}
}

// ParsePolarity parses a polarity name case-insensitively. "risk" is accepted as descending.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascending", "":
		return ASCENDING, nil
	case "descending", "risk":
		return DESCENDING, nil
	default:
		return "", ErrInvalidPolarity
	}
}

// IsValid reports whether the level is a known level for any polarity.
func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelModerate, LevelHigh, LevelOptimal, LevelSevere:
		return true
	default:
		return false
	}
}

// ValidFor reports whether the level belongs to the level set of the given polarity.
func (l Level) ValidFor(p Polarity) bool {
	for _, candidate := range p.Levels() {
		if candidate == l {
			return true
		}
	}
	return false
}

// Severity orders levels within a polarity: 0 is the best outcome, larger is worse.
// It returns -1 when the level does not belong to the polarity.
func (l Level) Severity(p Polarity) int {
	for i, candidate := range p.Levels() {
		if candidate == l {
			return i
		}
	}
	return -1
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// IsValid validates the priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityImmediate, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// IsValid reports whether the tab is one of the four dashboard tabs.
func (t Tab) IsValid() bool {
	switch t {
	case TabOverview, TabDetailed, TabRecommendations, TabTimeline:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tab.
func (t Tab) String() string {
	return string(t)
}

// DefaultTabs returns the dashboard tabs in display order.
// The timeline tab only exists for assessments that produce a timeline.
func DefaultTabs(withTimeline bool) []Tab {
	tabs := []Tab{TabOverview, TabDetailed, TabRecommendations}
	if withTimeline {
		tabs = append(tabs, TabTimeline)
	}
	return tabs
}

// IsPercent reports whether the unit is a percentage (the default when empty).
func (u Unit) IsPercent() bool {
	return u == "" || u == UnitPercent
}

// String returns the unit, defaulting to percent.
func (u Unit) String() string {
	if u == "" {
		return string(UnitPercent)
	}
	return string(u)
}
