// Package gql provides a typed GraphQL client for the Twitch GQL API.
// It handles connection pooling, persisted-query request building, error
// handling with retries, and a circuit breaker for sustained outages.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/auth"
	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/logger"
)

// ErrCircuitOpen is returned when the circuit breaker is open and requests
// are being skipped to avoid hammering a failing API.
var ErrCircuitOpen = errors.New("circuit breaker open: API requests temporarily suspended")

// ErrProxyUnreachable marks a connect or timeout failure while a proxy is
// configured, so the user-facing message can point at the proxy.
var ErrProxyUnreachable = errors.New("proxy unreachable")

// GQLError carries the messages of a GQL response errors array. Treated as
// transient by the watch loop and the scheduler.
type GQLError struct {
	Operation string
	Messages  []string
}

func (e *GQLError) Error() string {
	return fmt.Sprintf("GQL %s returned errors: %s", e.Operation, strings.Join(e.Messages, "; "))
}

// circuitBreaker tracks consecutive failures and backs off when the API
// keeps failing.
type circuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	lastFailure      time.Time
	cooldownUntil    time.Time
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	cb.consecutiveFails = 0
	cb.mu.Unlock()
}

// recordFailure increments the failure counter and, after 10 consecutive
// failures, opens the breaker with a growing cooldown capped at 5 minutes.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	cb.consecutiveFails++
	cb.lastFailure = time.Now()
	if cb.consecutiveFails >= 10 {
		backoff := time.Duration(cb.consecutiveFails-9) * 30 * time.Second
		if backoff > 5*time.Minute {
			backoff = 5 * time.Minute
		}
		cb.cooldownUntil = time.Now().Add(backoff)
	}
	cb.mu.Unlock()
}

func (cb *circuitBreaker) shouldSkip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.cooldownUntil)
}

// Client is the Twitch GQL HTTP client with connection pooling, circuit
// breaker, and retry logic. The underlying pool is shared with the
// telemetry pulser and the channel-page scraper.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	auth       auth.Provider
	log        *logger.Logger
	breaker    *circuitBreaker

	gqlURL  string
	proxied bool

	maxRetries int
	mu         sync.RWMutex
}

// NewClient creates a GQL Client with a pooled HTTP transport. A non-empty
// proxyURL routes all requests through the proxy; the pool is built once
// per proxy configuration and is read-only thereafter.
func NewClient(authenticator auth.Provider, log *logger.Logger, proxyURL string) (*Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	proxied := false
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
		proxied = true
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   constants.DefaultHTTPTimeout,
	}

	return &Client{
		httpClient: httpClient,
		transport:  transport,
		auth:       authenticator,
		log:        log,
		breaker:    &circuitBreaker{},
		gqlURL:     constants.GQLURL,
		proxied:    proxied,
		maxRetries: constants.DefaultMaxRetries,
	}, nil
}

func (c *Client) getMaxRetries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxRetries
}

// HTTPClient returns the underlying *http.Client for reuse by other
// packages that need the same connection pool and proxy configuration.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// AuthProvider returns the authentication provider backing this client.
func (c *Client) AuthProvider() auth.Provider {
	return c.auth
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    *gqlExtensions `json:"extensions,omitempty"`
	Query         string         `json:"query,omitempty"`
}

type gqlExtensions struct {
	PersistedQuery *persistedQuery `json:"persistedQuery"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// PostGQL sends a single GQL operation and returns the "data" portion of
// the response. It builds the persisted-query body, adds auth headers, and
// retries transient failures (429, 5xx) with exponential backoff. A
// response carrying an errors array fails with *GQLError.
func (c *Client) PostGQL(ctx context.Context, op constants.GQLOperation, variables map[string]any) (json.RawMessage, error) {
	reqBody := c.buildRequestBody(op, variables)
	return c.doGQLRequest(ctx, reqBody, op.OperationName)
}

// PostGQLBatch sends multiple GQL operations in a single HTTP request.
// Twitch accepts batched GQL requests as a JSON array.
func (c *Client) PostGQLBatch(ctx context.Context, ops []constants.GQLOperation, varsList []map[string]any) ([]json.RawMessage, error) {
	if len(ops) != len(varsList) {
		return nil, fmt.Errorf("ops and varsList must have the same length")
	}

	batch := make([]gqlRequest, len(ops))
	for i, op := range ops {
		batch[i] = c.buildRequestBody(op, varsList[i])
	}

	jsonBody, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch GQL request: %w", err)
	}

	respBody, err := c.doHTTPRequest(ctx, jsonBody, "batch")
	if err != nil {
		return nil, err
	}

	var responses []gqlResponse
	if err := json.Unmarshal(respBody, &responses); err != nil {
		return nil, fmt.Errorf("parsing batch GQL response: %w", err)
	}

	results := make([]json.RawMessage, len(responses))
	for i, r := range responses {
		if len(r.Errors) > 0 {
			c.log.Warn("GQL batch error",
				"index", i,
				"error", r.Errors[0].Message)
		}
		results[i] = r.Data
	}

	return results, nil
}

func (c *Client) buildRequestBody(op constants.GQLOperation, variables map[string]any) gqlRequest {
	req := gqlRequest{
		OperationName: op.OperationName,
		Variables:     variables,
	}

	if op.Query != "" {
		req.Query = op.Query
	} else {
		req.Extensions = &gqlExtensions{
			PersistedQuery: &persistedQuery{
				Version:    1,
				SHA256Hash: op.SHA256Hash,
			},
		}
	}

	return req
}

func (c *Client) doGQLRequest(ctx context.Context, reqBody gqlRequest, opName string) (json.RawMessage, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling GQL request: %w", err)
	}

	respBody, err := c.doHTTPRequest(ctx, jsonBody, opName)
	if err != nil {
		return nil, err
	}

	var response gqlResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("parsing GQL response for %s: %w", opName, err)
	}

	if len(response.Errors) > 0 {
		messages := make([]string, len(response.Errors))
		for i, e := range response.Errors {
			messages[i] = e.Message
		}
		c.log.Warn("GQL operation returned errors",
			"operation", opName,
			"error", messages[0])
		return response.Data, &GQLError{Operation: opName, Messages: messages}
	}

	return response.Data, nil
}

// doHTTPRequest performs the actual HTTP POST with auth headers and retry
// logic for transient errors. Individual retries are logged at DEBUG;
// only the final failure is logged at WARN.
func (c *Client) doHTTPRequest(ctx context.Context, jsonBody []byte, opName string) ([]byte, error) {
	if c.breaker.shouldSkip() {
		c.log.Debug("Circuit breaker open, skipping request", "operation", opName)
		return nil, ErrCircuitOpen
	}

	maxRetries := c.getMaxRetries()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.log.Debug("Retrying GQL request",
				"operation", opName,
				"attempt", fmt.Sprintf("%d/%d", attempt, maxRetries),
				"backoff", backoff)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL,
			bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("creating GQL request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.auth.GetAuthHeaders() {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < maxRetries {
				c.log.Debug("GQL request failed, will retry",
					"operation", opName,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries),
					"error", err)
				continue
			}
			c.log.Warn("GQL request failed after all retries",
				"operation", opName,
				"attempts", maxRetries+1,
				"error", err)
			c.breaker.recordFailure()
			if c.proxied {
				return nil, fmt.Errorf("%w: %v", ErrProxyUnreachable, err)
			}
			return nil, fmt.Errorf("GQL request for %s failed: %w", opName, err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if readErr != nil {
			if attempt < maxRetries {
				c.log.Debug("Failed to read GQL response, will retry",
					"operation", opName,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries),
					"error", readErr)
				continue
			}
			return nil, fmt.Errorf("reading GQL response for %s: %w", opName, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt < maxRetries {
				c.log.Debug("GQL request returned retryable status, will retry",
					"operation", opName,
					"status", resp.StatusCode,
					"attempt", fmt.Sprintf("%d/%d", attempt+1, maxRetries))
				continue
			}
			c.log.Warn("GQL request returned retryable status after all retries",
				"operation", opName,
				"status", resp.StatusCode,
				"attempts", maxRetries+1)
			c.breaker.recordFailure()
			return nil, fmt.Errorf("GQL request for %s returned status %d after %d retries",
				opName, resp.StatusCode, maxRetries)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GQL request for %s returned status %d: %s",
				opName, resp.StatusCode, string(body))
		}

		c.breaker.recordSuccess()
		c.log.Debug("GQL request completed",
			"operation", opName,
			"status", resp.StatusCode)

		return body, nil
	}

	c.breaker.recordFailure()
	return nil, fmt.Errorf("GQL request for %s exhausted retries", opName)
}
