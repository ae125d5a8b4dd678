package domain

import (
	"errors"
	"fmt"
	"time"
)

// ResultsError represents a standardized error response
type ResultsError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Recovery  string    `json:"recovery,omitempty"`

	cause error
}

// Error implements the error interface
func (e *ResultsError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel or underlying cause.
func (e *ResultsError) Unwrap() error {
	return e.cause
}

// Error codes for different failure scenarios
const (
	ErrCodeNoReportFound       = "NO_REPORT_FOUND"
	ErrCodeMalformedReport     = "MALFORMED_REPORT"
	ErrCodeEmailDelivery       = "EMAIL_DELIVERY_FAILED"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeStore               = "STORE_ERROR"
	ErrCodeUnknownAssessment   = "UNKNOWN_ASSESSMENT"
	ErrCodeTabGateClosed       = "TAB_GATE_CLOSED"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeInternalServerError = "INTERNAL_SERVER_ERROR"
)

// Sentinel errors
var (
	ErrNotFound            = errors.New("not found")
	ErrNoReportFound       = errors.New("no report found")
	ErrMalformedReport     = errors.New("malformed report")
	ErrEmailDeliveryFailed = errors.New("email delivery failed")
	ErrUnknownAssessment   = errors.New("unknown assessment")
	ErrTabGateClosed       = errors.New("not all tabs have been viewed")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewResultsError creates a new ResultsError with timestamp
func NewResultsError(code, message, details, requestID string) *ResultsError {
	return &ResultsError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// NoReportFound builds the recoverable error returned when the stored report is absent.
func NoReportFound(sessionID, assessmentID string) *ResultsError {
	return &ResultsError{
		Code:      ErrCodeNoReportFound,
		Message:   "no stored report for this assessment",
		Details:   fmt.Sprintf("session %s has no %s report", sessionID, assessmentID),
		Timestamp: time.Now().UTC(),
		Recovery:  DestinationAssessmentList,
		cause:     ErrNoReportFound,
	}
}

// MalformedReport builds the recoverable error returned when the stored report cannot be used.
func MalformedReport(cause error) *ResultsError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &ResultsError{
		Code:      ErrCodeMalformedReport,
		Message:   "stored report could not be read",
		Details:   details,
		Timestamp: time.Now().UTC(),
		Recovery:  DestinationAssessmentList,
		cause:     errors.Join(ErrMalformedReport, cause),
	}
}

// UnknownAssessment builds the error for an assessment id missing from the catalog.
func UnknownAssessment(assessmentID string) *ResultsError {
	return &ResultsError{
		Code:      ErrCodeUnknownAssessment,
		Message:   "unknown assessment",
		Details:   assessmentID,
		Timestamp: time.Now().UTC(),
		Recovery:  DestinationAssessmentList,
		cause:     ErrUnknownAssessment,
	}
}

// TabGateClosed builds the error returned when proceeding before every tab was viewed.
func TabGateClosed(remaining string) *ResultsError {
	return &ResultsError{
		Code:      ErrCodeTabGateClosed,
		Message:   "view every results tab before continuing",
		Details:   "remaining: " + remaining,
		Timestamp: time.Now().UTC(),
		cause:     ErrTabGateClosed,
	}
}

// AsResultsError extracts a ResultsError from an error chain.
func AsResultsError(err error) (*ResultsError, bool) {
	var re *ResultsError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
