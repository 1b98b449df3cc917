// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxBodySize limits how much of an upstream response body is read.
// Roster payloads are small; anything larger is pathological.
const maxBodySize = 1 << 20 // 1MB

// Response is one upstream HTTP result: status plus the (bounded) body.
// Transport failures are returned as errors instead.
type Response struct {
	Status int
	Body   []byte
}

// ClientConfig holds the upstream connection settings.
type ClientConfig struct {
	// BaseURL is the upstream API root, without trailing slash.
	BaseURL string

	// AttemptTimeout bounds each individual data request. Default: 10s.
	AttemptTimeout time.Duration

	// HealthTimeout bounds health-check pings. Default: 3s.
	HealthTimeout time.Duration

	// RatePerSecond throttles outgoing requests across all callers.
	// Zero disables throttling.
	RatePerSecond float64

	// RateBurst is the limiter burst size. Default: 5 when throttled.
	RateBurst int
}

// Client performs bearer-authorized GETs against the upstream API.
// Each attempt gets its own context deadline so a timeout abandons the
// underlying connection rather than just a client-side timer.
//
// Thread safety: safe for concurrent use; each request is independent.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	attemptTimeout time.Duration
	healthTimeout  time.Duration
}

// NewClient creates an upstream API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 3 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		// No Timeout on the http.Client itself: cancellation comes from
		// the per-attempt context so partially-read bodies are covered.
		httpClient:     &http.Client{},
		limiter:        limiter,
		attemptTimeout: cfg.AttemptTimeout,
		healthTimeout:  cfg.HealthTimeout,
	}
}

// Get performs one bearer-authorized GET of the given resource path.
// The attempt is bounded by the configured attempt timeout in addition
// to any deadline already on ctx.
func (c *Client) Get(ctx context.Context, path, accessToken string) (*Response, error) {
	return c.get(ctx, path, accessToken, c.attemptTimeout)
}

// Ping performs a minimal authorized request with the short health
// timeout. Used by the health check only.
func (c *Client) Ping(ctx context.Context, path, accessToken string) (*Response, error) {
	return c.get(ctx, path, accessToken, c.healthTimeout)
}

func (c *Client) get(ctx context.Context, path, accessToken string, timeout time.Duration) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}
