// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/rosterline/internal/logging"
	"github.com/tomtom215/rosterline/internal/metrics"
	"github.com/tomtom215/rosterline/internal/roster"
)

// Terminal fetch errors. The caller's user-facing messaging differs for
// each, so they are distinct: unauthorized means re-login, unavailable
// means transient trouble, unrecognized means the payload defeated the
// parser.
var (
	ErrUnauthorized        = errors.New("upstream unauthorized")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrShapeUnrecognized   = errors.New("upstream payload shape unrecognized")
)

// PathVariant is one upstream addressing shape for a logical resource.
// Variants are tried in slice order; the first that parses to a
// non-empty roster wins.
type PathVariant struct {
	// Name tags the variant in attempt records and metrics.
	Name string

	// Path is the resource path relative to the client base URL.
	Path string

	// Week is the scoring period this variant addresses; zero means the
	// upstream default/current window.
	Week int
}

// Attempt is the diagnostic record of one upstream HTTP attempt. The
// trail is for operator visibility only and never drives correctness.
type Attempt struct {
	Variant  string        `json:"variant"`
	Path     string        `json:"path"`
	Status   int           `json:"status"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// TokenSource supplies and refreshes access credentials.
// Implemented by token.Manager.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// AttemptPublisher receives attempt records as they happen. Publishing
// is fire-and-forget; implementations must not block the fetch path.
type AttemptPublisher interface {
	PublishAttempt(ctx context.Context, attempt Attempt)
}

// Orchestrator drives a logical roster fetch: token acquisition, the
// retry policy for transient failures, the one-shot 401
// refresh-and-retry, and the path-variant fallback chain.
type Orchestrator struct {
	client    *Client
	tokens    TokenSource
	policy    Policy
	publisher AttemptPublisher
}

// NewOrchestrator creates an orchestrator. publisher may be nil.
func NewOrchestrator(client *Client, tokens TokenSource, policy Policy, publisher AttemptPublisher) *Orchestrator {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	if policy.Retryable == nil {
		policy.Retryable = RetryServerErrors
	}

	return &Orchestrator{
		client:    client,
		tokens:    tokens,
		policy:    policy,
		publisher: publisher,
	}
}

// FetchRoster resolves one logical roster request through the variant
// chain. It returns the parsed roster (possibly empty), the attempt
// trail, and a terminal error from the package's error set.
//
// A variant that succeeds technically but parses to zero players is not
// final: the next variant is tried. The 401-refresh step happens at
// most once for the whole logical request.
func (o *Orchestrator) FetchRoster(ctx context.Context, userID string, variants []PathVariant) (*roster.Roster, []Attempt, error) {
	if len(variants) == 0 {
		return nil, nil, fmt.Errorf("%w: no path variants", ErrUpstreamUnavailable)
	}

	accessToken, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var (
		attempts  []Attempt
		refreshed bool
		lastErr   error
		emptyWeek = -1
	)

	for _, variant := range variants {
		body, err := o.fetchVariant(ctx, userID, variant, &accessToken, &refreshed, &attempts)
		if errors.Is(err, ErrUnauthorized) {
			// No other variant can succeed without credentials.
			return nil, attempts, err
		}
		if err != nil {
			lastErr = err
			continue
		}

		players, diag := roster.Parse(body)
		switch {
		case len(players) > 0:
			return &roster.Roster{Players: players, ResolvedWeek: variant.Week}, attempts, nil
		case diag == roster.DiagEmpty:
			// Legitimately empty for this variant; remember the most
			// specific one and keep trying.
			if emptyWeek < 0 {
				emptyWeek = variant.Week
			}
		default:
			logging.Ctx(ctx).Warn().
				Str("variant", variant.Name).
				Str("diagnostic", diag).
				Msg("Upstream payload shape unrecognized")
			lastErr = ErrShapeUnrecognized
		}
	}

	if emptyWeek >= 0 {
		return &roster.Roster{ResolvedWeek: emptyWeek}, attempts, nil
	}
	if lastErr != nil {
		return nil, attempts, lastErr
	}
	return nil, attempts, ErrUpstreamUnavailable
}

// Ping performs the minimal health-check call. Returns nil when the
// upstream answered with any non-5xx status.
func (o *Orchestrator) Ping(ctx context.Context, userID, path string) error {
	accessToken, err := o.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	resp, err := o.client.Ping(ctx, path, accessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.Status >= 500 {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.Status)
	}
	return nil
}

// fetchVariant runs the attempt loop for one variant. The access token
// and the refreshed flag are shared across variants so the one-time
// 401-refresh budget spans the whole logical request.
func (o *Orchestrator) fetchVariant(ctx context.Context, userID string, variant PathVariant, accessToken *string, refreshed *bool, attempts *[]Attempt) ([]byte, error) {
	for attempt := 0; attempt < o.policy.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := o.client.Get(ctx, variant.Path, *accessToken)
		o.record(ctx, variant, resp, err, time.Since(start), attempts)

		if err != nil {
			// The outer deadline is gone; backing off would only burn time.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, ctx.Err())
			}
			if attempt < o.policy.MaxAttempts-1 && o.policy.Retryable(0, err) {
				if werr := wait(ctx, o.policy.Delay(attempt)); werr != nil {
					return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, werr)
				}
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.Status == 401:
			if *refreshed {
				return nil, ErrUnauthorized
			}
			*refreshed = true

			newToken, rerr := o.tokens.ForceRefresh(ctx, userID)
			if rerr != nil || newToken == "" || newToken == *accessToken {
				// Refresh failed or changed nothing: terminal, never loop.
				return nil, ErrUnauthorized
			}
			*accessToken = newToken
			// The refreshed retry does not consume the transient budget.
			attempt--

		case resp.Status >= 200 && resp.Status < 300:
			return resp.Body, nil

		default:
			if attempt < o.policy.MaxAttempts-1 && o.policy.Retryable(resp.Status, nil) {
				if werr := wait(ctx, o.policy.Delay(attempt)); werr != nil {
					return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, werr)
				}
				continue
			}
			return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.Status)
		}
	}

	return nil, ErrUpstreamUnavailable
}

// record appends one attempt to the trail, publishes it, and updates
// metrics.
func (o *Orchestrator) record(ctx context.Context, variant PathVariant, resp *Response, err error, duration time.Duration, attempts *[]Attempt) {
	attempt := Attempt{
		Variant:  variant.Name,
		Path:     variant.Path,
		Duration: duration,
		At:       time.Now(),
	}
	if err != nil {
		attempt.Error = err.Error()
	} else {
		attempt.Status = resp.Status
		attempt.OK = resp.Status >= 200 && resp.Status < 300
	}
	*attempts = append(*attempts, attempt)

	metrics.UpstreamAttempts.WithLabelValues(variant.Name, metrics.StatusClass(attempt.Status)).Inc()
	metrics.UpstreamAttemptDuration.WithLabelValues(variant.Name).Observe(duration.Seconds())

	if o.publisher != nil {
		o.publisher.PublishAttempt(ctx, attempt)
	}

	logging.Ctx(ctx).Debug().
		Str("variant", variant.Name).
		Int("status", attempt.Status).
		Dur("duration", duration).
		Bool("ok", attempt.OK).
		Msg("Upstream attempt")
}
