package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessment-results-server/internal/app"
	"github.com/assessment-results-server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const surgeryReport = `{
	"overallScore": 74,
	"categories": [
		{"name": "Physical Fitness", "score": 82, "maxScore": 100, "description": "Aerobic capacity", "recommendations": ["Walk daily"]},
		{"name": "Nutritional Status", "score": 65, "maxScore": 100, "description": "Protein intake", "recommendations": ["More protein"], "priority": "high"}
	],
	"summary": "Mostly ready"
}`

// emailEndpoint records requests made to the fake delivery service.
type emailEndpoint struct {
	mu       sync.Mutex
	requests []map[string]interface{}
	status   int
}

func (e *emailEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	e.mu.Lock()
	e.requests = append(e.requests, body)
	status := e.status
	e.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write([]byte(`{"success":true}`))
}

func (e *emailEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

func newTestServer(t *testing.T, endpoint string) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg := &domain.Config{
		Server:  domain.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}, RequestTimeout: 5 * time.Second},
		Store:   domain.StoreConfig{Driver: "memory", TTL: time.Hour, MaxEntries: 100},
		Email:   domain.EmailConfig{Endpoint: endpoint, Timeout: 2 * time.Second, RateLimit: 100},
		Logging: domain.LoggingConfig{Level: "info"},
		Metrics: domain.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return NewServer(a)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	return errBody["code"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "memory", body["store"])
	assert.Equal(t, float64(4), body["assessments"])
	assert.NotContains(t, body, "delivery_audit", "audit is off")
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodGet, "/health", "")

	w := do(t, s, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAssessments(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/api/v1/assessments", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decode(t, w)["count"])

	w = do(t, s, http.MethodGet, "/api/v1/assessments/anaesthesia-risk", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "descending", decode(t, w)["polarity"])

	w = do(t, s, http.MethodGet, "/api/v1/assessments/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrCodeUnknownAssessment, errorCode(t, w))
}

func TestClassify(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPost, "/api/v1/classify", `{"score": 74}`)
	require.Equal(t, http.StatusOK, w.Code)
	rating := decode(t, w)["rating"].(map[string]interface{})
	assert.Equal(t, "high", rating["level"])
	assert.Equal(t, "Good", rating["label"])

	w = do(t, s, http.MethodPost, "/api/v1/classify", `{"score": 18, "max_score": 25, "polarity": "descending"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(72), body["percent"])
	assert.Equal(t, "high", body["rating"].(map[string]interface{})["level"])

	w = do(t, s, http.MethodPost, "/api/v1/classify", `{"score": 90, "assessment_id": "anaesthesia-risk"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "severe", decode(t, w)["rating"].(map[string]interface{})["level"])

	w = do(t, s, http.MethodPost, "/api/v1/classify", `{"score": 50, "polarity": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeValidation, errorCode(t, w))

	w = do(t, s, http.MethodPost, "/api/v1/classify", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeInvalidInput, errorCode(t, w))
}

func TestBenchmark(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPost, "/api/v1/benchmark", `{"your": 82, "average": 65, "optimal": 85}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(45), body["range_start"])
	assert.Equal(t, float64(100), body["range_end"])

	w = do(t, s, http.MethodPost, "/api/v1/benchmark", `{"your": 1, "average": 2, "optimal": 3, "window": "zoomed"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportLifecycle(t *testing.T) {
	s := newTestServer(t, "")
	path := "/api/v1/sessions/s1/reports/surgery-readiness"

	// Nothing stored yet
	w := do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	errBody := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, domain.ErrCodeNoReportFound, errBody["code"])
	assert.Equal(t, domain.DestinationAssessmentList, errBody["recovery"])

	w = do(t, s, http.MethodPut, path, surgeryReport)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["reportId"])

	w = do(t, s, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	dashboard := decode(t, w)
	overall := dashboard["overall"].(map[string]interface{})
	assert.Equal(t, "high", overall["rating"].(map[string]interface{})["level"])
	categories := dashboard["categories"].([]interface{})
	require.Len(t, categories, 2)
	first := categories[0].(map[string]interface{})
	assert.Equal(t, "Physical Fitness", first["name"])
	assert.NotNil(t, first["benchmark"])
	assert.Len(t, dashboard["tabs"], 4)

	w = do(t, s, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutReport_Invalid(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPut, "/api/v1/sessions/s1/reports/surgery-readiness", `{"overallScore": "high"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrCodeValidation, errorCode(t, w))
}

func TestPutReport_TooLarge(t *testing.T) {
	s := newTestServer(t, "")
	body := `{"overallScore": 74, "summary": "` + strings.Repeat("x", maxReportBytes) + `"}`

	w := do(t, s, http.MethodPut, "/api/v1/sessions/s1/reports/surgery-readiness", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, domain.ErrCodePayloadTooLarge, errorCode(t, w))

	w = do(t, s, http.MethodGet, "/api/v1/sessions/s1/reports/surgery-readiness", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "nothing was stored")
}

func TestTabGate(t *testing.T) {
	s := newTestServer(t, "")
	base := "/api/v1/sessions/s1/views/surgery-readiness"

	w := do(t, s, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "overview", status["active_tab"])
	assert.Equal(t, false, status["can_proceed"])

	w = do(t, s, http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.ErrCodeTabGateClosed, errorCode(t, w))

	for _, tab := range []string{"detailed", "recommendations", "timeline"} {
		w = do(t, s, http.MethodPost, base+"/tabs/"+tab, "")
		require.Equal(t, http.StatusOK, w.Code, tab)
	}
	assert.Equal(t, true, decode(t, w)["can_proceed"])

	w = do(t, s, http.MethodPost, base+"/next", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prehab-plan", decode(t, w)["destination"])

	w = do(t, s, http.MethodPost, base+"/tabs/summary", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, base+"/back", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.DestinationAssessmentList, decode(t, w)["destination"])
}

func TestEmailReport(t *testing.T) {
	endpoint := &emailEndpoint{}
	mail := httptest.NewServer(endpoint)
	defer mail.Close()

	s := newTestServer(t, mail.URL)
	do(t, s, http.MethodPut, "/api/v1/sessions/s1/reports/surgery-readiness", surgeryReport)

	w := do(t, s, http.MethodPost, "/api/v1/sessions/s1/reports/surgery-readiness/email",
		`{"recipient_email": "pat@example.com", "recipient_name": "Pat", "page_url": "https://results.example.com", "active_tab": "detailed"}`)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["sent"])

	require.Eventually(t, func() bool { return endpoint.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	endpoint.mu.Lock()
	sent := endpoint.requests[0]
	endpoint.mu.Unlock()
	assert.Equal(t, "Surgery Readiness Assessment", sent["assessmentType"])
	assert.Equal(t, "detailed", sent["activeTab"])

	require.Eventually(t, func() bool {
		w := do(t, s, http.MethodGet, "/api/v1/sessions/s1/notifications", "")
		return strings.Contains(w.Body.String(), string(domain.NotificationResultsReady))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmailReport_FailureStillAccepted(t *testing.T) {
	endpoint := &emailEndpoint{status: http.StatusBadRequest}
	mail := httptest.NewServer(endpoint)
	defer mail.Close()

	s := newTestServer(t, mail.URL)
	do(t, s, http.MethodPut, "/api/v1/sessions/s1/reports/surgery-readiness", surgeryReport)

	w := do(t, s, http.MethodPost, "/api/v1/sessions/s1/reports/surgery-readiness/email",
		`{"recipient_email": "pat@example.com"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, true, decode(t, w)["sent"])

	s.app.Dispatcher.Wait()
	w = do(t, s, http.MethodGet, "/api/v1/sessions/s1/notifications", "")
	assert.Empty(t, decode(t, w)["notifications"])
}

func TestEmailReport_Validation(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, http.MethodPut, "/api/v1/sessions/s1/reports/surgery-readiness", surgeryReport)

	w := do(t, s, http.MethodPost, "/api/v1/sessions/s1/reports/surgery-readiness/email", `{"recipient_email": "nobody"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeliveries_AuditDisabled(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/api/v1/sessions/s1/deliveries", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["audit_enabled"])
}
