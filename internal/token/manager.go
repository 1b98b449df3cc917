// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package token

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/rosterline/internal/logging"
	"github.com/tomtom215/rosterline/internal/metrics"
)

// ErrNoCredential indicates the user has no usable credential: the
// record is absent, carries no refresh token, or the refresh exchange
// failed. Callers must treat this as "re-authentication required" and
// never retry the refresh themselves.
var ErrNoCredential = errors.New("no valid credential")

// DefaultExpiryBuffer is subtracted from the upstream-reported token
// lifetime, so a record that looks unexpired is actually usable for at
// least this window on any upstream call.
const DefaultExpiryBuffer = 2 * time.Minute

// maxRefreshBodySize bounds how much of a refresh response is read.
const maxRefreshBodySize = 64 * 1024

// ManagerConfig holds the refresh-endpoint settings.
type ManagerConfig struct {
	// TokenURL is the upstream OAuth token endpoint.
	TokenURL string

	// ClientID and ClientSecret identify this application to the
	// upstream during the refresh exchange.
	ClientID     string
	ClientSecret string

	// ExpiryBuffer overrides DefaultExpiryBuffer when positive.
	ExpiryBuffer time.Duration

	// HTTPTimeout bounds the refresh POST. Default: 10s.
	HTTPTimeout time.Duration
}

// Manager owns the credential lifecycle for all users: serve a valid
// access token without network traffic when possible, refresh when
// expired, and coalesce concurrent refreshes per user.
type Manager struct {
	store  Store
	cfg    ManagerConfig
	client *http.Client

	// group coalesces concurrent refresh exchanges per user so a burst
	// of 401s produces one upstream POST. Last writer wins on the
	// persisted record either way.
	group singleflight.Group
}

// NewManager creates a credential lifecycle manager.
func NewManager(store Store, cfg ManagerConfig) *Manager {
	if cfg.ExpiryBuffer <= 0 {
		cfg.ExpiryBuffer = DefaultExpiryBuffer
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	return &Manager{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// GetValidAccessToken returns a currently valid access token for the
// user, refreshing only if the stored record has expired. An unexpired
// record is returned with zero network calls.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}

	if cred.Valid(time.Now()) {
		return cred.AccessToken, nil
	}

	return m.refresh(ctx, userID)
}

// ForceRefresh bypasses the expiry check and always performs the
// refresh exchange. The orchestrator calls this when the upstream
// reports unauthorized despite a record that looked unexpired (clock
// skew, server-side revocation).
func (m *Manager) ForceRefresh(ctx context.Context, userID string) (string, error) {
	return m.refresh(ctx, userID)
}

// refresh performs one refresh exchange via the per-user in-flight
// guard. The record is re-read inside the guarded section so coalesced
// callers observe the freshest refresh token.
//
// The exchange runs detached from the initiating caller's cancellation
// so one caller hanging up cannot fail the coalesced peers; the HTTP
// client's own timeout still bounds it.
func (m *Manager) refresh(ctx context.Context, userID string) (string, error) {
	result, err, shared := m.group.Do(userID, func() (interface{}, error) {
		return m.doRefresh(context.WithoutCancel(ctx), userID)
	})
	if shared {
		metrics.TokenRefreshesDeduped.Inc()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// doRefresh performs the actual token exchange. Refresh failures are
// not retried here; retry policy belongs to the caller.
func (m *Manager) doRefresh(ctx context.Context, userID string) (string, error) {
	cred, err := m.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if cred.RefreshToken == "" {
		return "", ErrNoCredential
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", m.cfg.ClientID)
	if m.cfg.ClientSecret != "" {
		form.Set("client_secret", m.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("network_error").Inc()
		return "", fmt.Errorf("%w: refresh exchange: %v", ErrNoCredential, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBodySize))
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("read_error").Inc()
		return "", fmt.Errorf("%w: read refresh response: %v", ErrNoCredential, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		logging.Ctx(ctx).Warn().
			Int("status", resp.StatusCode).
			Str("user_id", userID).
			Msg("Token refresh rejected by upstream")
		return "", fmt.Errorf("%w: refresh returned status %d", ErrNoCredential, resp.StatusCode)
	}

	var exchange struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &exchange); err != nil {
		metrics.TokenRefreshes.WithLabelValues("parse_error").Inc()
		return "", fmt.Errorf("%w: parse refresh response: %v", ErrNoCredential, err)
	}
	if exchange.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("parse_error").Inc()
		return "", fmt.Errorf("%w: refresh response missing access token", ErrNoCredential)
	}

	updated := &Credential{
		AccessToken:  exchange.AccessToken,
		RefreshToken: exchange.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(exchange.ExpiresIn)*time.Second - m.cfg.ExpiryBuffer),
	}
	// Some providers omit the refresh token on rotation; keep the old one.
	if updated.RefreshToken == "" {
		updated.RefreshToken = cred.RefreshToken
	}

	if err := m.store.Put(ctx, userID, updated); err != nil {
		metrics.TokenRefreshes.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("persist refreshed credential: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Time("expires_at", updated.ExpiresAt).
		Msg("Credential refreshed")

	return updated.AccessToken, nil
}
