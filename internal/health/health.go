// Package health reports on the backend's operational status.
package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Yrrrrrf/ts-forge/internal/request"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

const (
	PathHealth     = "/health"
	PathPing       = "/health/ping"
	PathCache      = "/health/cache"
	PathClearCache = "/health/clear-cache"
)

// Requester is the request primitive plus raw body access, which ping needs
// because some backends answer it with plain text
type Requester interface {
	request.Requester
	DoRaw(ctx context.Context, path string, opts request.Options) ([]byte, error)
}

// Reporter is the health capability exposed by the facade
type Reporter interface {
	Health(ctx context.Context) (*schema.HealthStatus, error)
	Ping(ctx context.Context) (string, error)
	Cache(ctx context.Context) (*schema.CacheStatus, error)
	ClearCache(ctx context.Context) (*schema.ClearCacheResult, error)
}

// Client calls the backend health endpoints
type Client struct {
	req    Requester
	logger *zap.Logger
}

var _ Reporter = (*Client)(nil)

// NewClient creates a health client
func NewClient(req Requester, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{req: req, logger: logger.Named("health")}
}

// Health fetches the overall status report
func (c *Client) Health(ctx context.Context) (*schema.HealthStatus, error) {
	var status schema.HealthStatus
	if err := c.req.Do(ctx, PathHealth, request.Options{Method: http.MethodGet}, &status); err != nil {
		return nil, fmt.Errorf("failed to check health: %w", err)
	}
	return &status, nil
}

// Ping returns the backend's ping answer, whether sent as a JSON string or plain text
func (c *Client) Ping(ctx context.Context) (string, error) {
	body, err := c.req.DoRaw(ctx, PathPing, request.Options{Method: http.MethodGet})
	if err != nil {
		return "", fmt.Errorf("failed to ping: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return s, nil
		}
	}
	return string(body), nil
}

// Cache fetches the backend's metadata cache report
func (c *Client) Cache(ctx context.Context) (*schema.CacheStatus, error) {
	var status schema.CacheStatus
	if err := c.req.Do(ctx, PathCache, request.Options{Method: http.MethodGet}, &status); err != nil {
		return nil, fmt.Errorf("failed to check cache: %w", err)
	}
	return &status, nil
}

// ClearCache asks the backend to drop its metadata cache
func (c *Client) ClearCache(ctx context.Context) (*schema.ClearCacheResult, error) {
	var result schema.ClearCacheResult
	if err := c.req.Do(ctx, PathClearCache, request.Options{Method: http.MethodPost}, &result); err != nil {
		return nil, fmt.Errorf("failed to clear cache: %w", err)
	}
	c.logger.Info("Backend cache cleared", zap.String("status", result.Status))
	return &result, nil
}
