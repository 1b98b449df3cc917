// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package gateway composes the cache, the upstream orchestrator, and
// the parser into the single externally visible roster operation. Each
// request walks a fixed ladder: success cache, error cache, upstream
// fetch, cache population.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/rosterline/internal/cache"
	"github.com/tomtom215/rosterline/internal/logging"
	"github.com/tomtom215/rosterline/internal/metrics"
	"github.com/tomtom215/rosterline/internal/roster"
	"github.com/tomtom215/rosterline/internal/upstream"
)

// Status classifies the terminal outcome of one roster request.
type Status string

const (
	// StatusOK means players were served.
	StatusOK Status = "ok"

	// StatusEmpty means the upstream answered well-formed data with
	// zero players. Not an error; the user-facing copy differs.
	StatusEmpty Status = "empty"

	// StatusUnauthorized means the credential was invalid and a refresh
	// did not help. Requires user action, never cached.
	StatusUnauthorized Status = "unauthorized"

	// StatusError means the upstream was unavailable or unparseable
	// after the full retry and variant budget.
	StatusError Status = "error"
)

// errorKeyPrefix namespaces negative-cache entries away from success
// entries so the two can carry different freshness windows in one
// store.
const errorKeyPrefix = "error:"

// Default freshness windows and the outer request deadline.
const (
	DefaultSuccessTTL     = 30 * time.Second
	DefaultErrorTTL       = 5 * time.Minute
	DefaultRequestTimeout = 45 * time.Second
)

// Result is the outcome of one roster request.
type Result struct {
	Status       Status             `json:"status"`
	Players      []roster.Player    `json:"players"`
	ResolvedWeek int                `json:"resolved_week"`
	Diagnostic   string             `json:"diagnostic,omitempty"`
	FromCache    bool               `json:"from_cache"`
	Attempts     []upstream.Attempt `json:"attempts,omitempty"`
}

// Health is the outcome of a health probe.
type Health struct {
	OK                bool `json:"ok"`
	UpstreamReachable bool `json:"upstream_reachable"`
}

// Fetcher is the upstream side of the facade. Implemented by
// upstream.Orchestrator.
type Fetcher interface {
	FetchRoster(ctx context.Context, userID string, variants []upstream.PathVariant) (*roster.Roster, []upstream.Attempt, error)
	Ping(ctx context.Context, userID, path string) error
}

// Config holds the facade's freshness and deadline settings. Zero
// values take the package defaults.
type Config struct {
	// SuccessTTL bounds how long a served roster stays fresh.
	SuccessTTL time.Duration

	// ErrorTTL bounds how long a recorded failure suppresses new
	// upstream attempts for the same key.
	ErrorTTL time.Duration

	// RequestTimeout is the outer wall-clock budget for one logical
	// request, covering all retries and variants.
	RequestTimeout time.Duration

	// HealthPath is the upstream resource probed by HealthCheck.
	HealthPath string
}

// entry is what the facade stores in the cache. Freshness is enforced
// here on lookup, not by the store.
type entry struct {
	payload    *roster.Roster
	status     Status
	diagnostic string
	storedAt   time.Time
}

// Facade is the gateway's public surface.
//
// Thread safety: safe for concurrent use. Two concurrent requests for
// the same cold key may both fetch upstream; the cache is populated
// last-writer-wins.
type Facade struct {
	cache   *cache.LRU
	fetcher Fetcher
	cfg     Config
	now     func() time.Time
}

// New creates the facade over a shared cache and an upstream fetcher.
func New(c *cache.LRU, fetcher Fetcher, cfg Config) *Facade {
	if cfg.SuccessTTL <= 0 {
		cfg.SuccessTTL = DefaultSuccessTTL
	}
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = DefaultErrorTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/game/nfl"
	}

	return &Facade{
		cache:   c,
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
	}
}

// FetchRoster serves one logical roster request: success cache, then
// error cache, then upstream with variant fallback, then cache
// population. week zero means the upstream default window; bust is a
// caller-supplied token that changes the cache key to force a miss.
func (f *Facade) FetchRoster(ctx context.Context, userID, teamKey string, week int, bust string) Result {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	key := cacheKey(teamKey, week, bust)

	if res, ok := f.lookup(key, f.cfg.SuccessTTL, "success"); ok {
		metrics.GatewayOutcomes.WithLabelValues(string(res.Status)).Inc()
		return res
	}

	if res, ok := f.lookup(errorKeyPrefix+key, f.cfg.ErrorTTL, "error"); ok {
		logging.Ctx(ctx).Debug().
			Str("team_key", teamKey).
			Str("diagnostic", res.Diagnostic).
			Msg("Request suppressed by error cache")
		metrics.GatewayOutcomes.WithLabelValues(string(res.Status)).Inc()
		return res
	}

	res := f.fetchAndPopulate(ctx, userID, teamKey, week, key)
	metrics.GatewayOutcomes.WithLabelValues(string(res.Status)).Inc()
	metrics.CacheEntries.Set(float64(f.cache.Len()))
	return res
}

// HealthCheck probes the upstream with a short deadline, bypassing
// both cache namespaces entirely.
func (f *Facade) HealthCheck(ctx context.Context, userID string) Health {
	err := f.fetcher.Ping(ctx, userID, f.cfg.HealthPath)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Upstream health probe failed")
		return Health{OK: false, UpstreamReachable: false}
	}
	return Health{OK: true, UpstreamReachable: true}
}

// lookup reads one cache namespace and enforces its freshness window.
// A stale hit is removed and treated as a miss.
func (f *Facade) lookup(key string, ttl time.Duration, namespace string) (Result, bool) {
	raw, ok := f.cache.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return Result{}, false
	}

	ent, ok := raw.(*entry)
	if !ok || f.now().Sub(ent.storedAt) > ttl {
		f.cache.Remove(key)
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return Result{}, false
	}

	metrics.CacheHits.WithLabelValues(namespace).Inc()

	res := Result{
		Status:     ent.status,
		Diagnostic: ent.diagnostic,
		FromCache:  true,
	}
	if ent.payload != nil {
		res.Players = ent.payload.Players
		res.ResolvedWeek = ent.payload.ResolvedWeek
	}
	return res, true
}

// fetchAndPopulate runs the upstream fetch and writes the outcome back
// to the appropriate cache namespace. Unauthorized outcomes are never
// cached; re-auth can happen at any moment.
func (f *Facade) fetchAndPopulate(ctx context.Context, userID, teamKey string, week int, key string) Result {
	got, attempts, err := f.fetcher.FetchRoster(ctx, userID, pathVariants(teamKey, week))

	switch {
	case err == nil:
		status := StatusOK
		diagnostic := ""
		if len(got.Players) == 0 {
			status = StatusEmpty
			diagnostic = roster.DiagEmpty
		}
		f.cache.Set(key, &entry{
			payload:    got,
			status:     status,
			diagnostic: diagnostic,
			storedAt:   f.now(),
		})
		return Result{
			Status:       status,
			Players:      got.Players,
			ResolvedWeek: got.ResolvedWeek,
			Diagnostic:   diagnostic,
			Attempts:     attempts,
		}

	case errors.Is(err, upstream.ErrUnauthorized):
		logging.Ctx(ctx).Warn().
			Str("team_key", teamKey).
			Msg("Roster fetch unauthorized")
		return Result{
			Status:     StatusUnauthorized,
			Diagnostic: "credential invalid or expired",
			Attempts:   attempts,
		}

	default:
		diagnostic := diagnosticFor(err)
		logging.Ctx(ctx).Error().
			Err(err).
			Str("team_key", teamKey).
			Int("attempts", len(attempts)).
			Msg("Roster fetch failed")
		f.cache.Set(errorKeyPrefix+key, &entry{
			status:     StatusError,
			diagnostic: diagnostic,
			storedAt:   f.now(),
		})
		return Result{
			Status:     StatusError,
			Diagnostic: diagnostic,
			Attempts:   attempts,
		}
	}
}

// diagnosticFor maps terminal fetch errors to the stable reason codes
// surfaced to callers. The raw error stays in the logs.
func diagnosticFor(err error) string {
	switch {
	case errors.Is(err, upstream.ErrShapeUnrecognized):
		return roster.DiagShapeUnrecognized
	default:
		return "upstream_unavailable"
	}
}

// cacheKey joins the request tuple into an opaque key. Any change to
// the bust token forces a distinct key and therefore a miss.
func cacheKey(teamKey string, week int, bust string) string {
	parts := []string{teamKey}
	if week > 0 {
		parts = append(parts, "w"+strconv.Itoa(week))
	}
	if bust != "" {
		parts = append(parts, "b"+bust)
	}
	return strings.Join(parts, "|")
}

// pathVariants builds the fallback chain for a logical roster query.
// A week-qualified request tries the explicit window first, then the
// upstream default window; an unqualified request has one variant.
func pathVariants(teamKey string, week int) []upstream.PathVariant {
	base := fmt.Sprintf("/team/%s/roster", teamKey)
	if week <= 0 {
		return []upstream.PathVariant{{Name: "current", Path: base, Week: 0}}
	}
	return []upstream.PathVariant{
		{Name: "week", Path: fmt.Sprintf("%s;week=%d", base, week), Week: week},
		{Name: "current", Path: base, Week: 0},
	}
}
