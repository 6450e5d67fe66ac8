// Package request is the HTTP request primitive the client is built on.
//
// A Client resolves paths against a base URL, encodes query parameters and JSON
// bodies, applies a per-attempt timeout and retries transient failures with
// exponential backoff. Failures come back as *Error, which carries the HTTP
// status (if any) and the raw response body.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second

	// RequestIDHeader is sent with every attempt; retries of one call share its value
	RequestIDHeader = "X-Request-ID"
)

// Options describes one logical request
type Options struct {
	Method  string
	Params  url.Values
	Body    any
	Headers map[string]string
	// Timeout overrides the client timeout for each attempt of this request
	Timeout time.Duration
}

// Requester is the contract consumed by the rest of the client.
// Do decodes a JSON response body into out when out is non-nil.
type Requester interface {
	Do(ctx context.Context, path string, opts Options, out any) error
}

// Config controls addressing, timeouts and retry behaviour
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFactor   float64 // 0.0-1.0
	Headers        map[string]string
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
}

// Client implements Requester over net/http
type Client struct {
	cfg        Config
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a request client for the API at cfg.BaseURL
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", apperrors.ErrInvalidInput)
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", apperrors.ErrInvalidInput, cfg.BaseURL)
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{},
		logger:     logger.Named("request"),
	}, nil
}

// BaseURL returns the API root every path is resolved against
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do executes the request, retrying transient failures, and decodes the JSON
// response into out
func (c *Client) Do(ctx context.Context, path string, opts Options, out any) error {
	body, err := c.DoRaw(ctx, path, opts)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Method: methodOf(opts),
			Path:   path,
			Status: http.StatusOK,
			Body:   body,
			Err:    fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

// DoRaw is Do without decoding; it returns the raw response body
func (c *Client) DoRaw(ctx context.Context, path string, opts Options) ([]byte, error) {
	method := methodOf(opts)
	endpoint := c.buildURL(path, opts.Params)

	var payload []byte
	if opts.Body != nil {
		var err error
		payload, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to encode request body: %v", apperrors.ErrInvalidInput, err)
		}
	}

	timeout := c.cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	requestID := uuid.NewString()
	logger := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID))

	delay := c.cfg.InitialBackoff
	var lastErr *Error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		body, err := c.attempt(ctx, method, endpoint, payload, opts.Headers, requestID, timeout)
		if err == nil {
			logger.Debug("Request succeeded", zap.Int("attempt", attempt))
			return body, nil
		}

		err.Method = method
		err.Path = path
		err.Attempts = attempt
		lastErr = err

		// the caller gave up; nothing left to retry for
		if ctxErr := ctx.Err(); ctxErr != nil {
			err.Err = ctxErr
			return nil, err
		}
		if !err.Retryable() || attempt == c.cfg.MaxAttempts {
			break
		}

		wait := applyJitter(delay, c.cfg.JitterFactor)
		logger.Warn("Request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("status", err.Status),
			zap.Duration("backoff", wait),
			zap.Error(err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			lastErr.Err = ctx.Err()
			return nil, lastErr
		}
		delay = time.Duration(math.Min(float64(delay)*c.cfg.Multiplier, float64(c.cfg.MaxBackoff)))
	}

	logger.Debug("Request failed", zap.Int("attempts", lastErr.Attempts), zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, payload []byte, headers map[string]string, requestID string, timeout time.Duration) ([]byte, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &Error{Err: fmt.Errorf("request timed out after %s: %w", timeout, context.DeadlineExceeded)}
		}
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (c *Client) buildURL(path string, params url.Values) string {
	u := *c.baseURL
	// path segments arrive already escaped (record ids); keep them that way
	joined := strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	if raw, err := url.PathUnescape(joined); err == nil {
		u.Path = raw
		u.RawPath = joined
	} else {
		u.Path = joined
		u.RawPath = ""
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func methodOf(opts Options) string {
	if opts.Method == "" {
		return http.MethodGet
	}
	return opts.Method
}

// applyJitter spreads delay by +/- delay*factor
func applyJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	jitter := float64(delay) * factor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}
