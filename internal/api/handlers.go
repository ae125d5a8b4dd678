package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assessment-results-server/internal/domain"
	"github.com/assessment-results-server/internal/service"
)

const maxReportBytes = 1 << 20

func (s *Server) handleListAssessments(c *gin.Context) {
	defs := s.app.Catalog.List()
	c.JSON(http.StatusOK, gin.H{
		"assessments": defs,
		"count":       len(defs),
	})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	def, ok := s.app.Catalog.Get(c.Param("id"))
	if !ok {
		s.writeError(c, domain.UnknownAssessment(c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, def)
}

func (s *Server) handleClassify(c *gin.Context) {
	var params service.ClassifyScoreParams
	if err := c.ShouldBindJSON(&params); err != nil {
		s.badRequest(c, err)
		return
	}

	scale, err := service.DefinitionScale(s.app.Catalog, &params)
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.app.Classifier.ClassifyScore(&params, scale)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// benchmarkRequest is the body of POST /benchmark
type benchmarkRequest struct {
	Your    float64                `json:"your"`
	Average float64                `json:"average"`
	Optimal float64                `json:"optimal"`
	Window  domain.BenchmarkWindow `json:"window"`
}

func (s *Server) handleBenchmark(c *gin.Context) {
	var req benchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	switch req.Window {
	case "":
		req.Window = domain.WindowAverage
	case domain.WindowAverage, domain.WindowOptimal:
	default:
		s.writeError(c, domain.NewValidationError("window", "window must be average or optimal", req.Window))
		return
	}
	c.JSON(http.StatusOK, service.PositionWithWindow(req.Your, req.Average, req.Optimal, req.Window))
}

func (s *Server) handlePutReport(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, domain.NewResultsError(domain.ErrCodePayloadTooLarge,
				"report exceeds the size limit", fmt.Sprintf("limit is %d bytes", tooLarge.Limit), ""))
			return
		}
		s.badRequest(c, err)
		return
	}

	report, err := s.app.Loader.Save(c.Request.Context(), c.Param("session"), c.Param("assessment"), payload)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (s *Server) handleGetDashboard(c *gin.Context) {
	dashboard, err := s.app.Dashboards.Dashboard(c.Request.Context(), c.Param("session"), c.Param("assessment"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) handleClearReport(c *gin.Context) {
	if err := s.app.Loader.Clear(c.Request.Context(), c.Param("session"), c.Param("assessment")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEmailReport(c *gin.Context) {
	var params service.EmailReportParams
	if err := c.ShouldBindJSON(&params); err != nil {
		s.badRequest(c, err)
		return
	}

	receipt, err := s.app.Delivery.EmailReport(c.Request.Context(), c.Param("session"), c.Param("assessment"), &params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, receipt)
}

func (s *Server) handleViewStatus(c *gin.Context) {
	status, err := s.app.Tabs.Status(c.Request.Context(), c.Param("session"), c.Param("assessment"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleSelectTab(c *gin.Context) {
	status, err := s.app.Tabs.Select(c.Request.Context(), c.Param("session"), c.Param("assessment"), domain.Tab(c.Param("tab")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleProceed(c *gin.Context) {
	nav, err := s.app.Tabs.Proceed(c.Request.Context(), c.Param("session"), c.Param("assessment"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nav)
}

func (s *Server) handleBack(c *gin.Context) {
	nav, err := s.app.Tabs.Back(c.Request.Context(), c.Param("session"), c.Param("assessment"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nav)
}

func (s *Server) handleNotifications(c *gin.Context) {
	notifications := s.app.Hub.Recent(c.Param("session"))
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (s *Server) handleDeliveries(c *gin.Context) {
	if s.app.Deliveries == nil {
		c.JSON(http.StatusOK, gin.H{"deliveries": []*domain.DeliveryRecord{}, "audit_enabled": false})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := s.app.Deliveries.ListDeliveries(c.Request.Context(), c.Param("session"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if records == nil {
		records = []*domain.DeliveryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": records, "audit_enabled": true})
}

func (s *Server) handleNotificationStream(c *gin.Context) {
	s.app.Hub.ServeWS(c.Writer, c.Request, c.Param("session"))
}
