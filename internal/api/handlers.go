// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/rosterline/internal/gateway"
	"github.com/tomtom215/rosterline/internal/roster"
	"github.com/tomtom215/rosterline/internal/validation"
)

// userIDHeader carries the caller's identity. Authentication itself is
// handled upstream of this service; the gateway only needs an opaque
// key to select the credential record.
const userIDHeader = "X-User-ID"

// RosterService is the facade surface the handlers call.
// Implemented by gateway.Facade.
type RosterService interface {
	FetchRoster(ctx context.Context, userID, teamKey string, week int, bust string) gateway.Result
	HealthCheck(ctx context.Context, userID string) gateway.Health
}

// rosterPayload is the data section of a roster response.
type rosterPayload struct {
	Players      []roster.Player `json:"players"`
	ResolvedWeek int             `json:"resolved_week"`
	Diagnostic   string          `json:"diagnostic,omitempty"`
	FromCache    bool            `json:"from_cache"`
}

// Handler holds the HTTP handlers.
type Handler struct {
	service RosterService
}

// NewHandler creates the handler set.
func NewHandler(service RosterService) *Handler {
	return &Handler{service: service}
}

// GetRoster serves GET /api/v1/roster/{teamKey}?week=&bust=.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, "MISSING_USER", "X-User-ID header is required")
		return
	}

	req := validation.RosterRequest{
		TeamKey: chi.URLParam(r, "teamKey"),
		Week:    getIntParam(r, "week", 0),
		Bust:    r.URL.Query().Get("bust"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
		return
	}

	res := h.service.FetchRoster(r.Context(), userID, req.TeamKey, req.Week, req.Bust)

	payload := &rosterPayload{
		Players:      res.Players,
		ResolvedWeek: res.ResolvedWeek,
		Diagnostic:   res.Diagnostic,
		FromCache:    res.FromCache,
	}
	if payload.Players == nil {
		payload.Players = []roster.Player{}
	}

	switch res.Status {
	case gateway.StatusOK, gateway.StatusEmpty:
		respondJSON(w, r, http.StatusOK, &APIResponse{
			Status: string(res.Status),
			Data:   payload,
		})
	case gateway.StatusUnauthorized:
		respondError(w, r, http.StatusUnauthorized, "UPSTREAM_UNAUTHORIZED",
			"upstream credential is invalid or expired; reconnect the account")
	default:
		respondError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE",
			"roster data is temporarily unavailable; try again shortly")
	}
}

// HealthLive reports process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "ok",
		Data:   map[string]string{"state": "alive"},
	})
}

// HealthReady reports readiness to serve. The gateway has no hard
// startup dependencies beyond its own wiring, so ready mirrors live.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "ok",
		Data:   map[string]string{"state": "ready"},
	})
}

// HealthUpstream probes the upstream provider, bypassing all caches.
func (h *Handler) HealthUpstream(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		respondError(w, r, http.StatusBadRequest, "MISSING_USER", "X-User-ID header is required")
		return
	}

	health := h.service.HealthCheck(r.Context(), userID)
	status := http.StatusOK
	state := "ok"
	if !health.OK {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respondJSON(w, r, status, &APIResponse{
		Status: state,
		Data:   health,
	})
}
