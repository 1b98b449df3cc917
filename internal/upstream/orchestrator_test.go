// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTokens is a TokenSource with canned tokens and call counters.
type fakeTokens struct {
	current      string
	next         string
	tokenErr     error
	refreshErr   error
	getCalls     atomic.Int64
	refreshCalls atomic.Int64
}

func (f *fakeTokens) GetValidAccessToken(_ context.Context, _ string) (string, error) {
	f.getCalls.Add(1)
	return f.current, f.tokenErr
}

func (f *fakeTokens) ForceRefresh(_ context.Context, _ string) (string, error) {
	f.refreshCalls.Add(1)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.next, nil
}

// testPolicy keeps retries fast in tests.
func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: RetryServerErrors}
}

// rosterPayload builds a canonical upstream payload with n players.
func rosterPayload(n int) string {
	var entries []string
	for i := 0; i < n; i++ {
		entries = append(entries, fmt.Sprintf(
			`"%d": {"player": [{"name": {"full": "Player %d"}}, {"selected_position": {"position": "BN"}}]}`, i, i))
	}
	entries = append(entries, fmt.Sprintf(`"count": %d`, n))
	return `{"fantasy_content": {"team": {"roster": {"players": {` + strings.Join(entries, ",") + `}}}}}`
}

func newOrchestratorForServer(srv *httptest.Server, tokens TokenSource) *Orchestrator {
	client := NewClient(ClientConfig{BaseURL: srv.URL, AttemptTimeout: 2 * time.Second})
	return NewOrchestrator(client, tokens, testPolicy(), nil)
}

func TestFetchRoster_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(rosterPayload(2)))
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok-1"})
	got, attempts, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	if len(got.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(got.Players))
	}
	if len(attempts) != 1 || !attempts[0].OK {
		t.Errorf("Attempt trail = %+v", attempts)
	}
}

func TestFetchRoster_401RefreshThenRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer fresh" {
			_, _ = w.Write([]byte(rosterPayload(1)))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{current: "stale", next: "fresh"}
	o := newOrchestratorForServer(srv, tokens)

	got, attempts, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	if len(got.Players) != 1 {
		t.Errorf("Expected 1 player, got %d", len(got.Players))
	}
	if tokens.refreshCalls.Load() != 1 {
		t.Errorf("Expected exactly one refresh, got %d", tokens.refreshCalls.Load())
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 upstream calls (401 + retry), got %d", calls.Load())
	}
	if len(attempts) != 2 || attempts[0].Status != 401 || !attempts[1].OK {
		t.Errorf("Attempt trail = %+v", attempts)
	}
}

func TestFetchRoster_401RefreshFailsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{current: "stale", refreshErr: errors.New("revoked")}
	o := newOrchestratorForServer(srv, tokens)

	_, _, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if tokens.refreshCalls.Load() != 1 {
		t.Errorf("Expected one refresh attempt, got %d", tokens.refreshCalls.Load())
	}
}

func TestFetchRoster_401AfterRefreshNeverLoops(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{current: "stale", next: "fresh-but-useless"}
	o := newOrchestratorForServer(srv, tokens)

	_, _, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if tokens.refreshCalls.Load() != 1 {
		t.Errorf("Expected exactly one refresh, got %d", tokens.refreshCalls.Load())
	}
	if calls.Load() != 2 {
		t.Errorf("Expected exactly 2 upstream calls, got %d", calls.Load())
	}
}

func TestFetchRoster_ServerErrorsExhaustRetryBudget(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})
	_, attempts, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected attempt count to equal the retry bound (3), got %d", calls.Load())
	}
	if len(attempts) != 3 {
		t.Errorf("Expected 3 recorded attempts, got %d", len(attempts))
	}
}

func TestFetchRoster_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})
	_, _, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single attempt for 404, got %d", calls.Load())
	}
}

func TestFetchRoster_EmptyVariantFallsBackToDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "week=3") {
			_, _ = w.Write([]byte(rosterPayload(0)))
			return
		}
		_, _ = w.Write([]byte(rosterPayload(15)))
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})
	variants := []PathVariant{
		{Name: "week", Path: "/roster?week=3", Week: 3},
		{Name: "current", Path: "/roster", Week: 0},
	}

	got, _, err := o.FetchRoster(context.Background(), "user-1", variants)
	if err != nil {
		t.Fatalf("FetchRoster failed: %v", err)
	}
	if len(got.Players) != 15 {
		t.Errorf("Expected fallback variant's 15 players, got %d", len(got.Players))
	}
	if got.ResolvedWeek != 0 {
		t.Errorf("Expected resolved week 0 (default window), got %d", got.ResolvedWeek)
	}
}

func TestFetchRoster_AllVariantsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rosterPayload(0)))
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})
	variants := []PathVariant{
		{Name: "week", Path: "/roster?week=3", Week: 3},
		{Name: "current", Path: "/roster", Week: 0},
	}

	got, _, err := o.FetchRoster(context.Background(), "user-1", variants)
	if err != nil {
		t.Fatalf("Expected empty roster to be a success, got %v", err)
	}
	if len(got.Players) != 0 {
		t.Errorf("Expected zero players, got %d", len(got.Players))
	}
	if got.ResolvedWeek != 3 {
		t.Errorf("Expected the requested week (most specific empty variant), got %d", got.ResolvedWeek)
	}
}

func TestFetchRoster_UnrecognizedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"totally": "different"}`))
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})
	_, _, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrShapeUnrecognized) {
		t.Errorf("Expected ErrShapeUnrecognized, got %v", err)
	}
}

func TestFetchRoster_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("Upstream must not be called without a token")
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{tokenErr: errors.New("no credential")})
	_, _, err := o.FetchRoster(context.Background(), "user-1", []PathVariant{{Name: "current", Path: "/roster"}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestPing(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	o := newOrchestratorForServer(srv, &fakeTokens{current: "tok"})

	if err := o.Ping(context.Background(), "user-1", "/meta"); err != nil {
		t.Errorf("Expected healthy ping, got %v", err)
	}

	status = http.StatusInternalServerError
	if err := o.Ping(context.Background(), "user-1", "/meta"); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable on 5xx, got %v", err)
	}
}
