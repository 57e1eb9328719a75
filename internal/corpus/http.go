package corpus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
)

// HTTPClientConfig holds configuration for the corpus HTTP client
type HTTPClientConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	RateLimit         float64 // requests per second
	CircuitBreakerMax int     // consecutive failures before refusing requests
}

// DefaultHTTPClientConfig returns recommended defaults
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RateLimit:         2,
		CircuitBreakerMax: 5,
	}
}

// RateLimitedHTTPClient wraps retryablehttp.Client with a rate limiter and a
// consecutive-failure circuit breaker.
type RateLimitedHTTPClient struct {
	client            *retryablehttp.Client
	limiter           *rate.Limiter
	circuitBreakerMax int
	logger            *logrus.Entry

	mu                sync.Mutex
	consecutiveErrors int
	lastError         error
}

// NewRateLimitedHTTPClient creates a new rate-limited HTTP client
func NewRateLimitedHTTPClient(cfg HTTPClientConfig, log *logrus.Logger) *RateLimitedHTTPClient {
	if log == nil {
		log = logger.Discard()
	}
	entry := log.WithField("component", "corpus_http")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.CheckRetry = retryPolicy
	retryClient.Logger = nil

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	breaker := cfg.CircuitBreakerMax
	if breaker <= 0 {
		breaker = DefaultHTTPClientConfig().CircuitBreakerMax
	}

	return &RateLimitedHTTPClient{
		client:            retryClient,
		limiter:           rate.NewLimiter(limit, 1),
		circuitBreakerMax: breaker,
		logger:            entry,
	}
}

// Get executes a GET request after waiting for the limiter.
func (c *RateLimitedHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	c.mu.Lock()
	if c.consecutiveErrors >= c.circuitBreakerMax {
		err := c.lastError
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.client.Do(req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.consecutiveErrors++
		c.lastError = err
		if c.consecutiveErrors == c.circuitBreakerMax {
			c.logger.WithError(err).WithField("consecutive_errors", c.consecutiveErrors).Warn("Circuit breaker opened")
		}
		return nil, err
	}
	if resp.StatusCode < 500 {
		c.consecutiveErrors = 0
	}
	return resp, nil
}

// Close closes idle connections
func (c *RateLimitedHTTPClient) Close() error {
	c.client.HTTPClient.CloseIdleConnections()
	return nil
}

// retryPolicy retries network errors, 429 and 5xx gateway failures.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, err
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// HTTPSource downloads a CSV corpus.
type HTTPSource struct {
	client *RateLimitedHTTPClient
	url    string
	format Format
}

// NewHTTPSource creates an HTTP source using client.
func NewHTTPSource(client *RateLimitedHTTPClient, url string, format Format) *HTTPSource {
	return &HTTPSource{client: client, url: url, format: format}
}

// Name returns the name of the source
func (s *HTTPSource) Name() string {
	return "http:" + s.url
}

// Load downloads, parses and validates the corpus.
func (s *HTTPSource) Load(ctx context.Context) ([]models.Observation, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, newSourceError(s.Name(), ErrCodeNetworkError, "failed to download corpus", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, newSourceError(s.Name(), ErrCodeNotFound, "corpus not found", nil)
	case resp.StatusCode >= 500:
		return nil, newSourceError(s.Name(), ErrCodeServerError, fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, newSourceError(s.Name(), ErrCodeNetworkError, fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
	}

	obs, err := Parse(resp.Body, s.format)
	if err != nil {
		return nil, newSourceError(s.Name(), ErrCodeInvalidData, "failed to parse corpus", err)
	}
	if err := Validate(obs); err != nil {
		return nil, newSourceError(s.Name(), ErrCodeInvalidData, "corpus failed validation", err)
	}
	return obs, nil
}
