// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package main is the entry point for the Rosterline server.
//
// Rosterline is a read-through gateway between web clients and an
// unreliable fantasy-sports provider. It serves per-team roster data
// from a bounded in-memory cache, survives upstream flakiness with a
// declarative retry policy and a one-shot credential refresh, and
// normalizes heterogeneous upstream payload shapes into one stable
// roster model.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, env)
//  2. Credential store: BadgerDB with optional AES-GCM encryption
//  3. Token manager: validity checks plus de-duplicated refresh
//  4. Upstream client and orchestrator: retries, 401 refresh, variants
//  5. Cache and gateway facade: success/error namespaces with TTLs
//  6. Event bus: in-process attempt trail for operator logging
//  7. HTTP server: Chi router under a suture supervision tree
//
// # Configuration
//
// Required settings (fail fast when absent):
//   - UPSTREAM_BASE_URL: provider API root
//   - TOKEN_URL, TOKEN_CLIENT_ID, TOKEN_CLIENT_SECRET: refresh endpoint
//
// Common optional settings:
//   - HTTP_PORT (default 8640), LOG_LEVEL, LOG_FORMAT
//   - CACHE_CAPACITY, CACHE_SUCCESS_TTL, CACHE_ERROR_TTL
//   - TOKEN_STORE_PATH, TOKEN_MASTER_KEY (base64, enables encryption)
//   - TOKEN_IN_MEMORY=true for ephemeral development runs
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server stops
// accepting connections, in-flight requests drain within the shutdown
// timeout, then the event bus and credential store close.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/rosterline/internal/api"
	"github.com/tomtom215/rosterline/internal/cache"
	"github.com/tomtom215/rosterline/internal/config"
	"github.com/tomtom215/rosterline/internal/events"
	"github.com/tomtom215/rosterline/internal/gateway"
	"github.com/tomtom215/rosterline/internal/logging"
	"github.com/tomtom215/rosterline/internal/supervisor"
	"github.com/tomtom215/rosterline/internal/supervisor/services"
	"github.com/tomtom215/rosterline/internal/token"
	"github.com/tomtom215/rosterline/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Int("cache_capacity", cfg.Cache.Capacity).
		Msg("Starting Rosterline")

	db, err := openCredentialDB(cfg.Token)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open credential store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing credential store")
		}
	}()

	encryptor, err := token.NewEncryptor(cfg.Token.MasterKey)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid token master key")
	}
	if encryptor != nil {
		logging.Info().Msg("Credential encryption at rest enabled")
	} else {
		logging.Warn().Msg("TOKEN_MASTER_KEY not set; credentials stored unencrypted")
	}

	tokens := token.NewManager(token.NewBadgerStore(db, encryptor), token.ManagerConfig{
		TokenURL:     cfg.Token.TokenURL,
		ClientID:     cfg.Token.ClientID,
		ClientSecret: cfg.Token.ClientSecret,
		ExpiryBuffer: cfg.Token.ExpiryBuffer,
	})

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:        cfg.Upstream.BaseURL,
		AttemptTimeout: cfg.Upstream.AttemptTimeout,
		HealthTimeout:  cfg.Upstream.HealthTimeout,
		RatePerSecond:  cfg.Upstream.RatePerSecond,
		RateBurst:      cfg.Upstream.RateBurst,
	})
	orchestrator := upstream.NewOrchestrator(client, tokens, upstream.Policy{
		MaxAttempts: cfg.Upstream.RetryAttempts,
		BaseDelay:   cfg.Upstream.RetryBaseDelay,
		Retryable:   upstream.RetryServerErrors,
	}, bus)

	facade := gateway.New(cache.NewLRU(cfg.Cache.Capacity), orchestrator, gateway.Config{
		SuccessTTL:     cfg.Cache.SuccessTTL,
		ErrorTTL:       cfg.Cache.ErrorTTL,
		RequestTimeout: cfg.Gateway.RequestTimeout,
		HealthPath:     cfg.Upstream.HealthPath,
	})

	router := api.NewRouter(api.NewHandler(facade), cfg.Server)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddDataService(services.NewBadgerGCService(db, 10*time.Minute))
	tree.AddEventService(services.NewRelayService(bus))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// openCredentialDB opens the BadgerDB instance backing the credential
// store. In-memory mode is for development and tests only.
func openCredentialDB(cfg config.TokenConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.StorePath)
	}
	// Badger's own logger is noisy; supervision logs cover failures.
	return badger.Open(opts.WithLogger(nil))
}
