package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/assessment-results-server/internal/domain"
)

// EmailClientConfig configures the email delivery endpoint client
type EmailClientConfig struct {
	Endpoint   string
	Timeout    time.Duration
	RateLimit  int // requests per second
	RetryCount int
}

// EmailClient posts delivery requests to the external email endpoint.
type EmailClient struct {
	endpoint   string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	logger     *logrus.Logger
}

// emailResponse is the endpoint's reply. Only the success flag is interpreted.
type emailResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message,omitempty"`
}

// errEndpointRejected marks a response the endpoint answered but refused; it is not retried.
var errEndpointRejected = errors.New("email endpoint rejected request")

// endpointHealthy keeps per-recipient refusals from tripping the breaker shared by all deliveries.
func endpointHealthy(err error) bool {
	return err == nil || errors.Is(err, errEndpointRejected)
}

// NewEmailClient creates a new email endpoint client
func NewEmailClient(config EmailClientConfig, logger *logrus.Logger) (*EmailClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("email endpoint is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}

	breakerCfg := DefaultCircuitBreakerConfig("EmailDelivery")
	breakerCfg.IsSuccessful = endpointHealthy

	return &EmailClient{
		endpoint: config.Endpoint,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:   NewCircuitBreaker(breakerCfg, logger),
		retries:   config.RetryCount,
		logger:    logger,
	}, nil
}

// Send posts req to the endpoint. A 2xx reply whose success flag is not false counts as delivered.
func (c *EmailClient) Send(ctx context.Context, req *domain.DeliveryRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode delivery request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.Join(domain.ErrEmailDeliveryFailed, ctx.Err())
			}
		}

		_, lastErr = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.post(ctx, body)
		})
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, errEndpointRejected) ||
			errors.Is(lastErr, gobreaker.ErrOpenState) ||
			errors.Is(lastErr, gobreaker.ErrTooManyRequests) {
			break
		}

		c.logger.WithFields(logrus.Fields{
			"attempt":   attempt + 1,
			"report_id": req.ReportID,
			"error":     lastErr,
		}).Debug("Email delivery attempt failed")
	}

	return errors.Join(domain.ErrEmailDeliveryFailed, lastErr)
}

func (c *EmailClient) post(ctx context.Context, body []byte) error {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("email endpoint returned status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errEndpointRejected, resp.StatusCode)
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	var parsed emailResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Non-JSON 2xx bodies are treated as success.
		return nil
	}
	if parsed.Success != nil && !*parsed.Success {
		return fmt.Errorf("%w: %s", errEndpointRejected, parsed.Message)
	}
	return nil
}

// BreakerState reports the circuit breaker state for health output.
func (c *EmailClient) BreakerState() string {
	return c.breaker.State().String()
}
