package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/service"
)

// statusByCode maps ResultsError codes onto HTTP statuses.
var statusByCode = map[string]int{
	domain.ErrCodeNoReportFound:     http.StatusNotFound,
	domain.ErrCodeUnknownAssessment: http.StatusNotFound,
	domain.ErrCodeMalformedReport:   http.StatusUnprocessableEntity,
	domain.ErrCodeTabGateClosed:     http.StatusConflict,
	domain.ErrCodeInvalidInput:      http.StatusBadRequest,
	domain.ErrCodeValidation:        http.StatusBadRequest,
	domain.ErrCodeEmailDelivery:     http.StatusBadGateway,
	domain.ErrCodePayloadTooLarge:   http.StatusRequestEntityTooLarge,
}

// writeError renders err as a ResultsError body with the matching status.
func (s *Server) writeError(c *gin.Context, err error) {
	status, body := s.toResponse(c, err)
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func (s *Server) toResponse(c *gin.Context, err error) (int, *domain.ResultsError) {
	reqID := requestID(c)

	if re, ok := domain.AsResultsError(err); ok {
		out := *re
		out.RequestID = reqID
		status, known := statusByCode[re.Code]
		if !known {
			status = http.StatusInternalServerError
		}
		return status, &out
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		re := domain.NewResultsError(domain.ErrCodeValidation, verr.Message, verr.Field, reqID)
		return http.StatusBadRequest, re
	}

	if service.IsStoreError(err) {
		s.logger.WithError(err).WithField("correlation_id", reqID).Error("Report store failure")
		return http.StatusInternalServerError,
			domain.NewResultsError(domain.ErrCodeStore, "report store unavailable", "", reqID)
	}

	s.logger.WithError(err).WithField("correlation_id", reqID).Error("Unhandled request error")
	return http.StatusInternalServerError,
		domain.NewResultsError(domain.ErrCodeInternalServerError, "internal server error", "", reqID)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	re := domain.NewResultsError(domain.ErrCodeInvalidInput, "invalid request body", err.Error(), requestID(c))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": re})
}
