package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Report Models
//
// The report document is produced by the quiz flow in the browser and stored verbatim,
// so its JSON keys follow the client's camelCase naming.

// DetailedAnalysis carries the optional clinical drill-down for a category
type DetailedAnalysis struct {
	ClinicalContext string   `json:"clinicalContext"`
	Strengths       []string `json:"strengths,omitempty"`
	RiskFactors     []string `json:"riskFactors,omitempty"`
	Timeline        string   `json:"timeline,omitempty"`
}

// ScoreCategory is one scored dimension of an assessment
type ScoreCategory struct {
	Name             string            `json:"name"`
	Score            float64           `json:"score"`
	MaxScore         float64           `json:"maxScore"`
	Level            Level             `json:"level,omitempty"`
	Description      string            `json:"description"`
	Recommendations  []string          `json:"recommendations"`
	RiskFactors      []string          `json:"riskFactors,omitempty"`
	Timeline         string            `json:"timeline,omitempty"`
	Priority         Priority          `json:"priority,omitempty"`
	DetailedAnalysis *DetailedAnalysis `json:"detailedAnalysis,omitempty"`
}

// OverallReport is the previously computed report for one assessment
type OverallReport struct {
	ReportID      string          `json:"reportId,omitempty"`
	AssessmentID  string          `json:"assessmentId,omitempty"`
	OverallScore  float64         `json:"overallScore"`
	OverallUnit   Unit            `json:"overallUnit,omitempty"`
	OverallRating string          `json:"overallRating,omitempty"`
	Categories    []ScoreCategory `json:"categories"`
	Summary       string          `json:"summary,omitempty"`
	GeneratedAt   *time.Time      `json:"generatedAt,omitempty"`
}

// Validate checks a category against the report shape contract.
// Levels are checked against the assessment polarity when one is given.
func (c *ScoreCategory) Validate(index int, polarity Polarity) error {
	field := func(name string) string {
		return fmt.Sprintf("categories[%d].%s", index, name)
	}

	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError(field("name"), "name is required", c.Name)
	}
	if !isFinite(c.Score) || !isFinite(c.MaxScore) {
		return NewValidationError(field("score"), "score and maxScore must be finite numbers", c.Score)
	}
	if c.MaxScore <= 0 {
		return NewValidationError(field("maxScore"), "maxScore must be positive", c.MaxScore)
	}
	if c.Score < 0 || c.Score > c.MaxScore {
		return NewValidationError(field("score"), fmt.Sprintf("score must be within [0, %g]", c.MaxScore), c.Score)
	}
	if len(c.Recommendations) == 0 {
		return NewValidationError(field("recommendations"), "at least one recommendation is required", nil)
	}
	if c.Level != "" {
		if polarity.IsValid() && !c.Level.ValidFor(polarity) {
			return NewValidationError(field("level"), fmt.Sprintf("level is not valid for %s assessments", polarity), c.Level)
		}
		if !c.Level.IsValid() {
			return NewValidationError(field("level"), "unknown level", c.Level)
		}
	}
	if c.Priority != "" && !c.Priority.IsValid() {
		return NewValidationError(field("priority"), "unknown priority", c.Priority)
	}
	return nil
}

// Validate ensures the report can be rendered without holes.
func (r *OverallReport) Validate(polarity Polarity) error {
	if !isFinite(r.OverallScore) {
		return NewValidationError("overallScore", "overallScore must be a finite number", r.OverallScore)
	}
	if r.OverallUnit.IsPercent() && (r.OverallScore < 0 || r.OverallScore > 100) {
		return NewValidationError("overallScore", "percentage score must be within [0, 100]", r.OverallScore)
	}
	if len(r.Categories) == 0 {
		return NewValidationError("categories", "at least one category is required", nil)
	}
	for i := range r.Categories {
		if err := r.Categories[i].Validate(i, polarity); err != nil {
			return err
		}
	}
	return nil
}

// DecodeReport parses a stored report document.
func DecodeReport(payload []byte) (*OverallReport, error) {
	var report OverallReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Rating Models

// Rating is the qualitative interpretation of a score
type Rating struct {
	Level       Level  `json:"level"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

// RatingBand is one breakpoint of a rating scale. Scores at or above Threshold fall into the band.
type RatingBand struct {
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	Level       Level   `json:"level" yaml:"level"`
	Label       string  `json:"label" yaml:"label"`
	Description string  `json:"description" yaml:"description"`
	Color       string  `json:"color,omitempty" yaml:"color"`
	Icon        string  `json:"icon,omitempty" yaml:"icon"`
}

// Rating converts the band into the rating it yields.
func (b RatingBand) Rating() Rating {
	return Rating{
		Level:       b.Level,
		Label:       b.Label,
		Description: b.Description,
		Color:       b.Color,
		Icon:        b.Icon,
	}
}

// Benchmark Models

// BenchmarkWindow selects how the zoomed display window is anchored
type BenchmarkWindow string

const (
	// WindowAverage anchors the window 20 points below the population average.
	WindowAverage BenchmarkWindow = "average"
	// WindowOptimal anchors the window 10 points below the optimal target.
	WindowOptimal BenchmarkWindow = "optimal"
)

// Benchmark holds the reference scores plotted next to a user's score
type Benchmark struct {
	Average float64         `json:"average" yaml:"average"`
	Optimal float64         `json:"optimal" yaml:"optimal"`
	Window  BenchmarkWindow `json:"window,omitempty" yaml:"window"`
}

// BenchmarkPosition is where the three markers fall on the display bar
type BenchmarkPosition struct {
	RangeStart    float64  `json:"range_start"`
	RangeEnd      float64  `json:"range_end"`
	YourPct       float64  `json:"your_pct"`
	AveragePct    float64  `json:"average_pct"`
	OptimalPct    float64  `json:"optimal_pct"`
	LabelsOverlap bool     `json:"labels_overlap"`
	Collisions    []string `json:"collisions,omitempty"`
}

// Navigation Models

// Navigation is an opaque destination handed to the router collaborator
type Navigation struct {
	Destination string `json:"destination"`
}

// Well-known navigation destinations
const (
	DestinationAssessmentList = "assessment-list"
)

// Delivery Models

// DeliveryRequest is the payload sent to the email delivery endpoint
type DeliveryRequest struct {
	RecipientEmail string          `json:"recipientEmail"`
	RecipientName  string          `json:"recipientName"`
	AssessmentType string          `json:"assessmentType"`
	Report         json.RawMessage `json:"report"`
	ReportID       string          `json:"reportId"`
	PageURL        string          `json:"pageUrl"`
	ActiveTab      Tab             `json:"activeTab"`
}

// Validate checks the fields the delivery endpoint requires.
func (r *DeliveryRequest) Validate() error {
	if strings.TrimSpace(r.RecipientEmail) == "" || !strings.Contains(r.RecipientEmail, "@") {
		return NewValidationError("recipientEmail", "a valid email address is required", r.RecipientEmail)
	}
	if len(r.Report) == 0 {
		return NewValidationError("report", "report payload is required", nil)
	}
	if r.ActiveTab != "" && !r.ActiveTab.IsValid() {
		return NewValidationError("activeTab", "unknown tab", r.ActiveTab)
	}
	return nil
}

// DeliveryReceipt is what the user sees right after requesting an email.
// Sent is optimistic: it does not wait for the delivery endpoint.
type DeliveryReceipt struct {
	ReportID    string    `json:"report_id"`
	Sent        bool      `json:"sent"`
	RequestedAt time.Time `json:"requested_at"`
}

// DeliveryRecord is the audit entry written once a delivery attempt resolves
type DeliveryRecord struct {
	ID           string    `json:"id"`
	ReportID     string    `json:"report_id"`
	SessionID    string    `json:"session_id"`
	AssessmentID string    `json:"assessment_id"`
	Recipient    string    `json:"recipient"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	AttemptedAt  time.Time `json:"attempted_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// Notification Models

// NotificationType names a notification banner
type NotificationType string

const (
	NotificationResultsReady NotificationType = "results_ready"
)

// Notification is pushed to a session when something worth a banner happens
type Notification struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	ReportID  string           `json:"report_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
