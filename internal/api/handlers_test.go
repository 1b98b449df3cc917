// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/rosterline/internal/config"
	"github.com/tomtom215/rosterline/internal/gateway"
	"github.com/tomtom215/rosterline/internal/roster"
)

// stubService scripts facade results for handler tests.
type stubService struct {
	result     gateway.Result
	health     gateway.Health
	lastUserID string
	lastTeam   string
	lastWeek   int
	lastBust   string
}

func (s *stubService) FetchRoster(_ context.Context, userID, teamKey string, week int, bust string) gateway.Result {
	s.lastUserID = userID
	s.lastTeam = teamKey
	s.lastWeek = week
	s.lastBust = bust
	return s.result
}

func (s *stubService) HealthCheck(_ context.Context, _ string) gateway.Health {
	return s.health
}

func newTestServer(t *testing.T, svc RosterService) *httptest.Server {
	t.Helper()
	rt := NewRouter(NewHandler(svc), config.ServerConfig{
		CORSOrigins:     []string{"*"},
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
	})
	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func doGet(t *testing.T, url, userID string) (*http.Response, *APIResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("Create request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	return resp, &envelope
}

func TestGetRoster_OK(t *testing.T) {
	svc := &stubService{result: gateway.Result{
		Status:       gateway.StatusOK,
		Players:      []roster.Player{{Name: "QB One", Position: "QB", Points: 21.5}},
		ResolvedWeek: 4,
	}}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/461.l.12345.t.3?week=4&bust=v1", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if envelope.Status != "ok" {
		t.Errorf("Envelope status = %q", envelope.Status)
	}
	if svc.lastUserID != "user-1" || svc.lastTeam != "461.l.12345.t.3" || svc.lastWeek != 4 || svc.lastBust != "v1" {
		t.Errorf("Service called with %q %q %d %q", svc.lastUserID, svc.lastTeam, svc.lastWeek, svc.lastBust)
	}
	if envelope.Metadata.RequestID == "" {
		t.Error("Missing request ID in metadata")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Missing X-Request-ID header")
	}
}

func TestGetRoster_EmptyIs200(t *testing.T) {
	svc := &stubService{result: gateway.Result{
		Status:     gateway.StatusEmpty,
		Diagnostic: roster.DiagEmpty,
	}}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200 for empty roster", resp.StatusCode)
	}
	if envelope.Status != "empty" {
		t.Errorf("Envelope status = %q, want empty", envelope.Status)
	}

	// Players must serialize as [], not null.
	data, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("Re-marshal data: %v", err)
	}
	var payload struct {
		Players []roster.Player `json:"players"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("Unmarshal payload: %v", err)
	}
	if payload.Players == nil {
		t.Error("Players serialized as null")
	}
}

func TestGetRoster_Unauthorized(t *testing.T) {
	svc := &stubService{result: gateway.Result{Status: gateway.StatusUnauthorized}}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1", "user-1")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "UPSTREAM_UNAUTHORIZED" {
		t.Errorf("Error = %+v", envelope.Error)
	}
}

func TestGetRoster_UpstreamError(t *testing.T) {
	svc := &stubService{result: gateway.Result{Status: gateway.StatusError, Diagnostic: "upstream_unavailable"}}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1", "user-1")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d, want 503", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("Error = %+v", envelope.Error)
	}
}

func TestGetRoster_MissingUserHeader(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "MISSING_USER" {
		t.Errorf("Error = %+v", envelope.Error)
	}
}

func TestGetRoster_InvalidTeamKey(t *testing.T) {
	svc := &stubService{}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/roster/not%20a%20key", "user-1")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("Error = %+v", envelope.Error)
	}
	if svc.lastTeam != "" {
		t.Error("Service called despite invalid team key")
	}
}

func TestGetRoster_InvalidWeekFallsBackToDefault(t *testing.T) {
	svc := &stubService{result: gateway.Result{Status: gateway.StatusOK}}
	srv := newTestServer(t, svc)

	resp, _ := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1?week=abc", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if svc.lastWeek != 0 {
		t.Errorf("Week = %d, want 0 for unparseable qualifier", svc.lastWeek)
	}
}

func TestHealthEndpoints(t *testing.T) {
	svc := &stubService{health: gateway.Health{OK: true, UpstreamReachable: true}}
	srv := newTestServer(t, svc)

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		resp, envelope := doGet(t, srv.URL+path, "")
		if resp.StatusCode != http.StatusOK || envelope.Status != "ok" {
			t.Errorf("%s: status=%d envelope=%q", path, resp.StatusCode, envelope.Status)
		}
	}

	resp, _ := doGet(t, srv.URL+"/api/v1/health/upstream", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Upstream health = %d, want 200", resp.StatusCode)
	}
}

func TestHealthUpstream_Degraded(t *testing.T) {
	svc := &stubService{health: gateway.Health{}}
	srv := newTestServer(t, svc)

	resp, envelope := doGet(t, srv.URL+"/api/v1/health/upstream", "user-1")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d, want 503", resp.StatusCode)
	}
	if envelope.Status != "degraded" {
		t.Errorf("Envelope status = %q, want degraded", envelope.Status)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	srv := newTestServer(t, &stubService{result: gateway.Result{Status: gateway.StatusOK}})

	resp, _ := doGet(t, srv.URL+"/api/v1/roster/461.l.1.t.1", "user-1")
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}
